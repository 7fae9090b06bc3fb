package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/service"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/response"
)

// LocationHandler serves the region/district hierarchy.
type LocationHandler struct {
	service *service.LocationService
}

// NewLocationHandler constructs the handler.
func NewLocationHandler(svc *service.LocationService) *LocationHandler {
	return &LocationHandler{service: svc}
}

// Tree godoc
// @Summary Location tree
// @Description Regions with their districts and team lead
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /locations/tree [get]
func (h *LocationHandler) Tree(c *gin.Context) {
	tree, err := h.service.Tree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, nil)
}

// List godoc
// @Summary List locations
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Param type query string false "REG or DIS"
// @Param parent_id query string false "Parent region"
// @Success 200 {object} response.Envelope
// @Router /locations [get]
func (h *LocationHandler) List(c *gin.Context) {
	filter := models.LocationFilter{Type: models.LocationType(c.Query("type")), ParentID: c.Query("parent_id")}
	locations, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// Get godoc
// @Summary Get location
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Location ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /locations/{id} [get]
func (h *LocationHandler) Get(c *gin.Context) {
	location, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, location, nil)
}

// CreateRegion godoc
// @Summary Create region
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateRegionRequest true "Region"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /locations/regions [post]
func (h *LocationHandler) CreateRegion(c *gin.Context) {
	var req dto.CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid region payload"))
		return
	}
	location, err := h.service.CreateRegion(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, location)
}

// CreateDistrict godoc
// @Summary Create district
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateDistrictRequest true "District"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /locations/districts [post]
func (h *LocationHandler) CreateDistrict(c *gin.Context) {
	var req dto.CreateDistrictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid district payload"))
		return
	}
	location, err := h.service.CreateDistrict(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, location)
}

// Delete godoc
// @Summary Delete location
// @Tags Locations
// @Security BearerAuth
// @Param id path string true "Location ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /locations/{id} [delete]
func (h *LocationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
