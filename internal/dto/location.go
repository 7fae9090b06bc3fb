package dto

// CreateRegionRequest creates a root region.
type CreateRegionRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=120"`
}

// CreateDistrictRequest creates a district under an existing region.
type CreateDistrictRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=120"`
	RegionID string `json:"region_id" validate:"required"`
}
