package models

import "time"

// PromotionStatus captures the single-stage promotion workflow.
type PromotionStatus string

const (
	PromotionPending  PromotionStatus = "pending"
	PromotionAccepted PromotionStatus = "accepted"
	PromotionRejected PromotionStatus = "rejected"
)

// PromotionRequest asks for a data-entry user to become team lead of a region.
type PromotionRequest struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	RegionID    string          `db:"region_id" json:"region_id"`
	Status      PromotionStatus `db:"status" json:"status"`
	ReviewerID  *string         `db:"reviewer_id" json:"reviewer_id,omitempty"`
	RequestedAt time.Time       `db:"requested_at" json:"requested_at"`
	RespondedAt *time.Time      `db:"responded_at" json:"responded_at,omitempty"`
}

// PromotionFilter constrains listing queries.
type PromotionFilter struct {
	Status PromotionStatus
	UserID string
	Limit  int
	Offset int
}
