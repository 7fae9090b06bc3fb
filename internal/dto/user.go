package dto

import "github.com/noah-isme/region-ops-api/internal/models"

// AssignUserRequest sets a user's role and location. A nil location unplaces
// the user.
type AssignUserRequest struct {
	Role       models.UserRole `json:"role" validate:"required"`
	LocationID *string         `json:"location_id"`
}
