package dto

import "time"

// ExportFormat selects the renderer.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// RegionExportQuery bounds a region submission export.
type RegionExportQuery struct {
	RegionID string
	From     *time.Time
	To       *time.Time
	Format   ExportFormat
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
