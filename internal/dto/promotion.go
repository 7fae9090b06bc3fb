package dto

// CreatePromotionRequest asks for the caller to lead a region.
type CreatePromotionRequest struct {
	RegionID string `json:"region_id" validate:"required"`
}

// ReviewPromotionRequest captures the reviewer decision.
type ReviewPromotionRequest struct {
	Accept bool `json:"accept"`
}
