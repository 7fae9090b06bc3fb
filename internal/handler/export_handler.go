package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/response"
)

type exportService interface {
	ExportRegionSubmissions(ctx context.Context, query dto.RegionExportQuery) (*dto.ExportFile, error)
	ExportMonthlyMembers(ctx context.Context, regionID string) (*dto.ExportFile, error)
}

// ExportHandler streams rendered reports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// RegionSubmissions godoc
// @Summary Export region submissions
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Region ID"
// @Param format query string false "csv or pdf"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/regions/{id}/submissions [get]
func (h *ExportHandler) RegionSubmissions(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	regionID := c.Param("id")
	if !canViewRegion(claims, regionID) {
		response.Error(c, errRegionForbidden)
		return
	}
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.ExportRegionSubmissions(c.Request.Context(), dto.RegionExportQuery{
		RegionID: regionID,
		From:     from,
		To:       to,
		Format:   dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportCSV))),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// MonthlyMembers godoc
// @Summary Export monthly members
// @Description Twelve monthly member totals for one region or all of them
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param region_id query string false "Region ID, empty for all"
// @Success 200 {file} file
// @Router /exports/monthly-members [get]
func (h *ExportHandler) MonthlyMembers(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	regionID := c.Query("region_id")
	if claims.Role == models.RoleTeamLead {
		if regionID == "" {
			regionID = claims.LocationID
		}
		if regionID != claims.LocationID {
			response.Error(c, errRegionForbidden)
			return
		}
	}
	file, err := h.service.ExportMonthlyMembers(c.Request.Context(), regionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
