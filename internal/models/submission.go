package models

import (
	"strings"
	"time"
)

// Submission is a periodic numeric report filed by a user for a location.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	Members     int       `db:"members" json:"members"`
	Children    int       `db:"children" json:"children"`
	Men         int       `db:"men" json:"men"`
	Women       int       `db:"women" json:"women"`
	TitheAmount float64   `db:"tithe_amount" json:"tithe_amount"`
	Comment     *string   `db:"comment" json:"comment,omitempty"`
	SubmitterID string    `db:"submitter_id" json:"submitter_id"`
	LocationID  string    `db:"location_id" json:"location_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HasComment reports whether a non-blank comment was provided.
func (s Submission) HasComment() bool {
	return s.Comment != nil && strings.TrimSpace(*s.Comment) != ""
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	LocationIDs []string
	SubmitterID string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}
