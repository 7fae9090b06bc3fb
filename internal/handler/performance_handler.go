package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/response"
)

type performanceService interface {
	Overview(ctx context.Context) ([]models.RegionalPerformance, error)
	ScoreRegion(ctx context.Context, regionID string) (*models.PerformanceScore, error)
	History(ctx context.Context, regionID string, limit int) ([]models.PerformanceMetric, error)
}

// PerformanceHandler serves regional scores.
type PerformanceHandler struct {
	service performanceService
}

// NewPerformanceHandler constructs the handler.
func NewPerformanceHandler(svc performanceService) *PerformanceHandler {
	return &PerformanceHandler{service: svc}
}

// Overview godoc
// @Summary Regional overview
// @Description Every region with its team lead and current score
// @Tags Performance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /performance/regions [get]
func (h *PerformanceHandler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Region godoc
// @Summary Region score
// @Tags Performance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Region ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /performance/regions/{id} [get]
func (h *PerformanceHandler) Region(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if !canViewRegion(claims, c.Param("id")) {
		response.Error(c, errRegionForbidden)
		return
	}
	score, err := h.service.ScoreRegion(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// History godoc
// @Summary Region score history
// @Tags Performance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Region ID"
// @Param limit query int false "Number of snapshots"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /performance/regions/{id}/history [get]
func (h *PerformanceHandler) History(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if !canViewRegion(claims, c.Param("id")) {
		response.Error(c, errRegionForbidden)
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("id"), parseQueryInt(c, "limit", 30))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
