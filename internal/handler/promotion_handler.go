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

// PromotionHandler serves team lead promotion requests.
type PromotionHandler struct {
	service *service.PromotionService
}

// NewPromotionHandler constructs the handler.
func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: svc}
}

// Create godoc
// @Summary Request promotion
// @Tags Promotions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreatePromotionRequest true "Region"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /promotion-requests [post]
func (h *PromotionHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promotion payload"))
		return
	}
	promotion, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, promotion)
}

// List godoc
// @Summary List promotion requests
// @Tags Promotions
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted or rejected"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /promotion-requests [get]
func (h *PromotionHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.PromotionFilter{
		Status: models.PromotionStatus(c.Query("status")),
		Limit:  parseQueryInt(c, "limit", 50),
		Offset: parseQueryInt(c, "offset", 0),
	}
	items, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Review godoc
// @Summary Review promotion request
// @Tags Promotions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Promotion ID"
// @Param payload body dto.ReviewPromotionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /promotion-requests/{id}/review [post]
func (h *PromotionHandler) Review(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ReviewPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	promotion, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, promotion, nil)
}
