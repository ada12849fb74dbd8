package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fee-api/internal/models"
	"github.com/noah-isme/sma-fee-api/internal/service"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/response"
)

// ReportHandler exposes reporting and export endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportRange(c *gin.Context) (time.Time, time.Time, models.CollectionGroupBy, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, "", appErrors.Clone(appErrors.ErrValidation, "from date is required as YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, "", appErrors.Clone(appErrors.ErrValidation, "to date is required as YYYY-MM-DD")
	}
	groupBy := models.CollectionGroupBy(strings.ToLower(c.DefaultQuery("groupBy", string(models.GroupByMethod))))
	return from, to, groupBy, nil
}

// Collections godoc
// @Summary Collection summary for a date range
// @Tags Reports
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param groupBy query string false "method, collector, class or day"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/collections [get]
func (h *ReportHandler) Collections(c *gin.Context) {
	from, to, groupBy, err := reportRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.CollectionSummary(c.Request.Context(), from, to, groupBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CollectionsExport godoc
// @Summary Export the collection summary
// @Tags Reports
// @Produce text/csv
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param groupBy query string false "method, collector, class or day"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/collections/export [get]
func (h *ReportHandler) CollectionsExport(c *gin.Context) {
	from, to, groupBy, err := reportRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	switch strings.ToLower(c.DefaultQuery("format", "csv")) {
	case "pdf":
		out, err := h.reports.ExportCollectionPDF(c.Request.Context(), from, to, groupBy)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Blob(c, "application/pdf", "collections.pdf", out)
	case "csv":
		out, err := h.reports.ExportCollectionCSV(c.Request.Context(), from, to, groupBy)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Blob(c, "text/csv", "collections.csv", out)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
	}
}

// Outstanding godoc
// @Summary Enrollments that still owe money
// @Tags Reports
// @Produce json
// @Param classId query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/outstanding [get]
func (h *ReportHandler) Outstanding(c *gin.Context) {
	rows, err := h.reports.Outstanding(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// OutstandingExport godoc
// @Summary Export the outstanding dues list as CSV
// @Tags Reports
// @Produce text/csv
// @Param classId query string false "Filter by class"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/outstanding/export [get]
func (h *ReportHandler) OutstandingExport(c *gin.Context) {
	out, err := h.reports.ExportOutstandingCSV(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Blob(c, "text/csv", "outstanding.csv", out)
}
