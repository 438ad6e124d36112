package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Data returns the report for the requested period and category
func (h *ReportHandler) Data(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	respondOK(c, h.reports.Report(q))
}

// ExportCSV streams the report's invoice list as a CSV attachment
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}

	// Render fully first so an encoding error can still become a JSON error
	var buf bytes.Buffer
	if err := service.ExportCSV(&buf, h.reports.Report(q)); err != nil {
		slog.Error("csv export failed", "error", err, "request_id", middleware.GetRequestID(c))
		respondError(c, http.StatusInternalServerError, "Failed to export report")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(q)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ReportHandler) query(c *gin.Context) (service.ReportQuery, bool) {
	from, ok := queryDate(c, "date_from")
	if !ok {
		respondError(c, http.StatusBadRequest, "date_from must be YYYY-MM-DD")
		return service.ReportQuery{}, false
	}
	to, ok := queryDate(c, "date_to")
	if !ok {
		respondError(c, http.StatusBadRequest, "date_to must be YYYY-MM-DD")
		return service.ReportQuery{}, false
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		respondError(c, http.StatusBadRequest, "date_to is before date_from")
		return service.ReportQuery{}, false
	}

	owner, ok := ownerScope(c)
	if !ok {
		return service.ReportQuery{}, false
	}

	return service.ReportQuery{
		Owner:    owner,
		From:     from,
		To:       to,
		Category: c.Query("category"),
	}, true
}

func exportFileName(q service.ReportQuery) string {
	name := "invoice-report"
	if !q.From.IsZero() {
		name += "-" + q.From.Format(dateLayout)
	}
	if !q.To.IsZero() {
		name += "-to-" + q.To.Format(dateLayout)
	}
	return name + ".csv"
}
