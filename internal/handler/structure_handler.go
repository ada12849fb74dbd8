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

// StructureHandler exposes fee structure endpoints.
type StructureHandler struct {
	structures *service.StructureService
}

// NewStructureHandler constructs StructureHandler.
func NewStructureHandler(structures *service.StructureService) *StructureHandler {
	return &StructureHandler{structures: structures}
}

// List godoc
// @Summary List fee structures
// @Tags Structures
// @Produce json
// @Param academicYearId query string false "Filter by academic year"
// @Param classId query string false "Filter by class"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-structures [get]
func (h *StructureHandler) List(c *gin.Context) {
	var filter models.StructureFilter
	filter.AcademicYearID = c.Query("academicYearId")
	filter.ClassID = c.Query("classId")
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

	structures, pagination, err := h.structures.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structures, pagination)
}

// Get godoc
// @Summary Get fee structure
// @Tags Structures
// @Produce json
// @Param id path string true "Structure ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-structures/{id} [get]
func (h *StructureHandler) Get(c *gin.Context) {
	structure, err := h.structures.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// Create godoc
// @Summary Compose a fee structure for a year and class
// @Tags Structures
// @Accept json
// @Produce json
// @Param payload body service.CreateStructureRequest true "Structure payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-structures [post]
func (h *StructureHandler) Create(c *gin.Context) {
	var req service.CreateStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.structures.Create(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// Update godoc
// @Summary Update fee structure items
// @Tags Structures
// @Accept json
// @Produce json
// @Param id path string true "Structure ID"
// @Param payload body service.UpdateStructureRequest true "Item updates"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-structures/{id} [put]
func (h *StructureHandler) Update(c *gin.Context) {
	var req service.UpdateStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.structures.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// Copy godoc
// @Summary Copy a structure to another year and class
// @Tags Structures
// @Accept json
// @Produce json
// @Param id path string true "Source structure ID"
// @Param payload body service.CopyStructureRequest true "Copy target"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fee-structures/{id}/copy [post]
func (h *StructureHandler) Copy(c *gin.Context) {
	var req service.CopyStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.structures.Copy(c.Request.Context(), c.Param("id"), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}
