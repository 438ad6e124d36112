package model

import (
	"time"
)

// Invoice is a processed upload as shown in the invoice list and detail views
type Invoice struct {
	ID         string            `json:"id"`
	TaskID     string            `json:"task_id,omitempty"`
	Owner      string            `json:"owner"`
	FileName   string            `json:"file_name"`
	FileSize   int64             `json:"file_size"`
	UploadDate time.Time         `json:"upload_date"`
	Status     Status            `json:"status"` // processing, completed, error
	Category   string            `json:"category,omitempty"`
	Result     *ExtractionResult `json:"ocr_result,omitempty"`
}

// Amount returns the extracted total or 0 when nothing was extracted.
func (i *Invoice) Amount() float64 {
	if i.Result == nil {
		return 0
	}
	return i.Result.TotalAmount
}

// Category is an accounting category used to classify invoices
type Category struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	Keywords    []string  `json:"keywords"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryInput is the writable part of a category
type CategoryInput struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ParentID    string   `json:"parent_id"`
	IsActive    *bool    `json:"is_active"`
	Keywords    []string `json:"keywords"`
}

// MonthlyPoint is one bucket of a monthly series
type MonthlyPoint struct {
	Month  string  `json:"month"` // YYYY-MM
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// CategoryShare is the portion of spend attributed to a category
type CategoryShare struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RecentInvoice is the compact row shown on the dashboard
type RecentInvoice struct {
	ID         string  `json:"id"`
	FileName   string  `json:"file_name"`
	UploadDate string  `json:"upload_date"`
	Status     Status  `json:"status"`
	Amount     float64 `json:"amount"`
}

// DashboardSummary is the payload of the dashboard screen
type DashboardSummary struct {
	TotalInvoices  int             `json:"total_invoices"`
	OCRSuccessRate float64         `json:"ocr_success_rate"` // percent
	TotalAmount    float64         `json:"total_amount"`
	PendingCount   int             `json:"pending_count"`
	MonthlyData    []MonthlyPoint  `json:"monthly_data"`
	CategoryData   []CategoryShare `json:"category_data"`
	RecentInvoices []RecentInvoice `json:"recent_invoices"`
}

// ReportRow is one invoice line of a report
type ReportRow struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"invoice_number"`
	Date          string  `json:"date"`
	Vendor        string  `json:"vendor"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Status        Status  `json:"status"`
}

// ReportSummary aggregates a report period
type ReportSummary struct {
	TotalInvoices     int             `json:"total_invoices"`
	TotalAmount       float64         `json:"total_amount"`
	AverageAmount     float64         `json:"average_amount"`
	CategoryBreakdown []CategoryShare `json:"category_breakdown"`
}

// ReportData is the payload of the reports screen
type ReportData struct {
	Summary      ReportSummary  `json:"summary"`
	MonthlyTrend []MonthlyPoint `json:"monthly_trend"`
	InvoiceList  []ReportRow    `json:"invoice_list"`
}
