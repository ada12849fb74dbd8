package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/response"
)

type recalcService interface {
	Recalculate(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error)
	RecalculateBatch(ctx context.Context, enrollmentIDs []string) (*models.RecalcBatchResult, error)
	RecalculateAll(ctx context.Context) (*models.RecalcJobStatus, error)
	JobStatus(ctx context.Context, jobID string) (*models.RecalcJobStatus, error)
}

// RecalcHandler exposes ledger recalculation endpoints.
type RecalcHandler struct {
	recalc recalcService
}

// NewRecalcHandler constructs RecalcHandler.
func NewRecalcHandler(recalc recalcService) *RecalcHandler {
	return &RecalcHandler{recalc: recalc}
}

// BatchRequest names the enrollments to recalculate.
type BatchRequest struct {
	EnrollmentIDs []string `json:"enrollment_ids"`
}

// Recalculate godoc
// @Summary Rebuild one enrollment from its payment ledger
// @Tags Recalculation
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/recalculate [post]
func (h *RecalcHandler) Recalculate(c *gin.Context) {
	enrollment, err := h.recalc.Recalculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Batch godoc
// @Summary Recalculate a set of enrollments
// @Tags Recalculation
// @Accept json
// @Produce json
// @Param payload body BatchRequest true "Enrollment ids"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /recalculations/batch [post]
func (h *RecalcHandler) Batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.recalc.RecalculateBatch(c.Request.Context(), req.EnrollmentIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// All godoc
// @Summary Start a school-wide recalculation
// @Tags Recalculation
// @Produce json
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /recalculations [post]
func (h *RecalcHandler) All(c *gin.Context) {
	status, err := h.recalc.RecalculateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// Status godoc
// @Summary Poll a school-wide recalculation
// @Tags Recalculation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /recalculations/{id} [get]
func (h *RecalcHandler) Status(c *gin.Context) {
	status, err := h.recalc.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
