package dto

import "time"

// SubmissionPayload is shared by create and edit.
type SubmissionPayload struct {
	SubmittedAt *time.Time `json:"submitted_at"`
	Members     int        `json:"members" validate:"gte=0"`
	Children    int        `json:"children" validate:"gte=0"`
	Men         int        `json:"men" validate:"gte=0"`
	Women       int        `json:"women" validate:"gte=0"`
	TitheAmount float64    `json:"tithe_amount" validate:"gte=0"`
	Comment     *string    `json:"comment" validate:"omitempty,max=2000"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	LocationID  string
	SubmitterID string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}
