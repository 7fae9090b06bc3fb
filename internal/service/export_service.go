package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/repository"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/export"
)

const exportPageSize = 100

type exportSubmissionReader interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	MonthlyMembers(ctx context.Context, locationIDs []string, since time.Time) ([]repository.MonthlyMembers, error)
}

type exportLocationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
	Children(ctx context.Context, parentID string) ([]models.Location, error)
}

type renderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders submission reports as downloadable files.
type ExportService struct {
	submissions exportSubmissionReader
	locations   exportLocationReader
	renderers   map[dto.ExportFormat]renderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(submissions exportSubmissionReader, locations exportLocationReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		submissions: submissions,
		locations:   locations,
		renderers: map[dto.ExportFormat]renderer{
			dto.ExportCSV: export.NewCSVExporter(),
			dto.ExportPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExportRegionSubmissions renders every submission of a region and its
// districts within the optional date range.
func (s *ExportService) ExportRegionSubmissions(ctx context.Context, query dto.RegionExportQuery) (*dto.ExportFile, error) {
	if query.Format == "" {
		query.Format = dto.ExportCSV
	}
	out, ok := s.renderers[query.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	region, names, err := s.regionScope(ctx, query.RegionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Submissions - %s", region.Name),
		Headers: []string{"Date", "Location", "Members", "Children", "Men", "Women", "Tithe", "Comment"},
	}
	var titheTotal float64
	filter := models.SubmissionFilter{LocationIDs: ids, From: query.From, To: query.To, PageSize: exportPageSize}
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.submissions.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
		}
		for _, sub := range items {
			comment := ""
			if sub.Comment != nil {
				comment = *sub.Comment
			}
			dataset.AddRow(
				sub.SubmittedAt.Format("2006-01-02"),
				names[sub.LocationID],
				strconv.Itoa(sub.Members),
				strconv.Itoa(sub.Children),
				strconv.Itoa(sub.Men),
				strconv.Itoa(sub.Women),
				strconv.FormatFloat(sub.TitheAmount, 'f', 2, 64),
				comment,
			)
			titheTotal += sub.TitheAmount
		}
		if len(items) == 0 || page*exportPageSize >= total {
			break
		}
	}
	dataset.Footer = fmt.Sprintf("%d submissions, tithe total %.2f", len(dataset.Rows), titheTotal)

	return s.render(out, dataset, "submissions_"+region.Code)
}

// ExportMonthlyMembers renders the member totals of the last twelve calendar
// months. An empty regionID aggregates every location.
func (s *ExportService) ExportMonthlyMembers(ctx context.Context, regionID string) (*dto.ExportFile, error) {
	var ids []string
	label := "all"
	title := "Monthly members - all regions"
	if regionID != "" {
		region, names, err := s.regionScope(ctx, regionID)
		if err != nil {
			return nil, err
		}
		for id := range names {
			ids = append(ids, id)
		}
		label = region.Code
		title = "Monthly members - " + region.Name
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	buckets, err := s.submissions.MonthlyMembers(ctx, ids, start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate members")
	}
	totals := make(map[string]int64, len(buckets))
	for _, bucket := range buckets {
		totals[bucket.Month.UTC().Format("2006-01")] += bucket.Members
	}

	dataset := export.Dataset{Title: title, Headers: []string{"Month", "Members"}}
	for i := 0; i < 12; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		dataset.AddRow(month, strconv.FormatInt(totals[month], 10))
	}
	return s.render(s.renderers[dto.ExportCSV], dataset, "monthly_members_"+label)
}

// regionScope returns the region and a name lookup for it and its districts.
func (s *ExportService) regionScope(ctx context.Context, regionID string) (*models.Location, map[string]string, error) {
	region, err := s.locations.FindByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	if !region.IsRegion() {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
	}
	districts, err := s.locations.Children(ctx, region.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load districts")
	}
	names := map[string]string{region.ID: region.Name}
	for _, district := range districts {
		names[district.ID] = district.Name
	}
	return region, names, nil
}

func (s *ExportService) render(out renderer, dataset export.Dataset, name string) (*dto.ExportFile, error) {
	payload, err := out.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s_%s.%s", sanitizeFilename(name), s.now().Format("20060102_150405"), out.Extension())
	s.logger.Info("export rendered", zap.String("file", filename), zap.Int("rows", len(dataset.Rows)))
	return &dto.ExportFile{Filename: filename, ContentType: out.ContentType(), Payload: payload}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
