package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/region-ops-api/internal/dto"
	"github.com/noah-isme/region-ops-api/internal/service"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/response"
)

// SubmissionHandler serves periodic reports.
type SubmissionHandler struct {
	service *service.SubmissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// Create godoc
// @Summary File a report
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmissionPayload true "Report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var payload dto.SubmissionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	submission, err := h.service.Create(c.Request.Context(), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Update godoc
// @Summary Edit a report
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body dto.SubmissionPayload true "Report"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var payload dto.SubmissionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	submission, err := h.service.Update(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// List godoc
// @Summary List reports
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param location_id query string false "Region or district"
// @Param submitter_id query string false "Submitter"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
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
	query := dto.SubmissionQuery{
		LocationID:  c.Query("location_id"),
		SubmitterID: c.Query("submitter_id"),
		From:        from,
		To:          to,
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "page_size", 20),
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
