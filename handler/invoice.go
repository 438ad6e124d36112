package handler

import (
	"net/http"

	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoices *service.InvoiceStore
}

func NewInvoiceHandler(invoices *service.InvoiceStore) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List returns one page of invoices, newest first
func (h *InvoiceHandler) List(c *gin.Context) {
	from, ok := queryDate(c, "date_from")
	if !ok {
		respondError(c, http.StatusBadRequest, "date_from must be YYYY-MM-DD")
		return
	}
	to, ok := queryDate(c, "date_to")
	if !ok {
		respondError(c, http.StatusBadRequest, "date_to must be YYYY-MM-DD")
		return
	}

	status := model.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown status")
		return
	}

	owner, ok := ownerScope(c)
	if !ok {
		return
	}

	filter := service.InvoiceFilter{
		Owner:    owner,
		Status:   status,
		DateFrom: from,
		DateTo:   to,
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 0),
	}
	items, total := h.invoices.List(filter)

	page, limit := filter.Bounds()
	respondOK(c, model.InvoicePage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, err := h.invoices.Get(c.Param("id"))
	if err != nil || !visibleTo(c, inv.Owner) {
		respondError(c, http.StatusNotFound, "Invoice not found")
		return
	}
	respondOK(c, inv)
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	inv, err := h.invoices.Get(id)
	if err != nil || !visibleTo(c, inv.Owner) {
		respondError(c, http.StatusNotFound, "Invoice not found")
		return
	}
	if err := h.invoices.Delete(id); err != nil {
		respondError(c, http.StatusNotFound, "Invoice not found")
		return
	}
	respondMessage(c, "Invoice deleted")
}
