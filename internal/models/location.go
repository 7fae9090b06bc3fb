package models

import "time"

// LocationType distinguishes the two levels of the hierarchy.
type LocationType string

const (
	LocationRegion   LocationType = "REG"
	LocationDistrict LocationType = "DIS"
)

// Location is a row of the flat location table. Children are derived by
// querying parent_id; a location never stores its children.
type Location struct {
	ID        string       `db:"id" json:"id"`
	Code      string       `db:"code" json:"code"`
	Name      string       `db:"name" json:"name"`
	Type      LocationType `db:"type" json:"type"`
	ParentID  *string      `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// IsRegion reports whether l is a root region.
func (l *Location) IsRegion() bool {
	return l != nil && l.Type == LocationRegion && l.ParentID == nil
}

// IsDistrict reports whether l is a district hanging under a region.
func (l *Location) IsDistrict() bool {
	return l != nil && l.Type == LocationDistrict && l.ParentID != nil && *l.ParentID != ""
}

// LocationFilter narrows location listings.
type LocationFilter struct {
	Type     LocationType
	ParentID string
}

// LocationNode is a read model for the region/district tree.
type LocationNode struct {
	Location
	TeamLead *string        `json:"team_lead,omitempty"`
	Children []LocationNode `json:"children,omitempty"`
}
