package handler

import (
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	reports *service.ReportService
}

func NewDashboardHandler(reports *service.ReportService) *DashboardHandler {
	return &DashboardHandler{reports: reports}
}

// Summary returns the dashboard for the invoices visible to the user
func (h *DashboardHandler) Summary(c *gin.Context) {
	owner, ok := ownerScope(c)
	if !ok {
		return
	}
	respondOK(c, h.reports.Dashboard(owner))
}
