package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fee-api/internal/models"
	"github.com/noah-isme/sma-fee-api/internal/service"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/response"
)

// TemplateHandler exposes the fee and scholarship template catalogs.
type TemplateHandler struct {
	templates *service.TemplateService
}

// NewTemplateHandler constructs TemplateHandler.
func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func templateFilterFrom(c *gin.Context) models.TemplateFilter {
	var filter models.TemplateFilter
	filter.Search = c.Query("search")
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &active
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// ListFees godoc
// @Summary List fee templates
// @Tags Templates
// @Produce json
// @Param search query string false "Name search"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-templates [get]
func (h *TemplateHandler) ListFees(c *gin.Context) {
	templates, pagination, err := h.templates.ListFeeTemplates(c.Request.Context(), templateFilterFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, pagination)
}

// CreateFee godoc
// @Summary Create fee template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-templates [post]
func (h *TemplateHandler) CreateFee(c *gin.Context) {
	var req service.CreateFeeTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.templates.CreateFeeTemplate(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// UpdateFee godoc
// @Summary Update fee template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.UpdateFeeTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-templates/{id} [put]
func (h *TemplateHandler) UpdateFee(c *gin.Context) {
	var req service.UpdateFeeTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.templates.UpdateFeeTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// DeactivateFee godoc
// @Summary Deactivate fee template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Security BearerAuth
// @Router /fee-templates/{id} [delete]
func (h *TemplateHandler) DeactivateFee(c *gin.Context) {
	if err := h.templates.DeactivateFeeTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListScholarships godoc
// @Summary List scholarship templates
// @Tags Templates
// @Produce json
// @Param search query string false "Name search"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scholarship-templates [get]
func (h *TemplateHandler) ListScholarships(c *gin.Context) {
	templates, pagination, err := h.templates.ListScholarshipTemplates(c.Request.Context(), templateFilterFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, pagination)
}

// CreateScholarship godoc
// @Summary Create scholarship template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.CreateScholarshipTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /scholarship-templates [post]
func (h *TemplateHandler) CreateScholarship(c *gin.Context) {
	var req service.CreateScholarshipTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.templates.CreateScholarshipTemplate(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// UpdateScholarship godoc
// @Summary Update scholarship template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.UpdateScholarshipTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scholarship-templates/{id} [put]
func (h *TemplateHandler) UpdateScholarship(c *gin.Context) {
	var req service.UpdateScholarshipTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.templates.UpdateScholarshipTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// DeactivateScholarship godoc
// @Summary Deactivate scholarship template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Security BearerAuth
// @Router /scholarship-templates/{id} [delete]
func (h *TemplateHandler) DeactivateScholarship(c *gin.Context) {
	if err := h.templates.DeactivateScholarshipTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
