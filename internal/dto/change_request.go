package dto

import "github.com/noah-isme/region-ops-api/internal/models"

// CreateChangeRequest asks to move the caller to a target district.
type CreateChangeRequest struct {
	TargetDistrictID string `json:"target_district_id" validate:"required"`
	IsExchange       bool   `json:"is_exchange"`
}

// RejectChangeRequest carries the mandatory rejection reason.
type RejectChangeRequest struct {
	Reason string `json:"reason"`
}

// ChangeRequestQuery mirrors supported listing filters.
type ChangeRequestQuery struct {
	Status []models.ChangeRequestStatus
	Limit  int
	Offset int
}
