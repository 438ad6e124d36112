package apiclient

import (
	"time"

	"github.com/AnTengye/invoicedesk/model"
)

// Sample payloads served in demo mode when the server cannot answer a read.

func demoDashboard() *model.DashboardSummary {
	return &model.DashboardSummary{
		TotalInvoices:  1248,
		OCRSuccessRate: 95.2,
		TotalAmount:    2845678,
		PendingCount:   12,
		MonthlyData: []model.MonthlyPoint{
			{Month: "2024-06", Amount: 180000, Count: 85},
			{Month: "2024-07", Amount: 220000, Count: 102},
			{Month: "2024-08", Amount: 310000, Count: 128},
			{Month: "2024-09", Amount: 285000, Count: 115},
			{Month: "2024-10", Amount: 350000, Count: 145},
			{Month: "2024-11", Amount: 420000, Count: 178},
		},
		CategoryData: []model.CategoryShare{
			{Category: "Office Supplies", Percentage: 35},
			{Category: "Travel", Percentage: 28},
			{Category: "Meals", Percentage: 20},
			{Category: "Equipment", Percentage: 12},
			{Category: "Other", Percentage: 5},
		},
		RecentInvoices: []model.RecentInvoice{
			{ID: "1", FileName: "invoice_001.pdf", UploadDate: "2024-11-10", Status: model.StatusCompleted, Amount: 1280},
			{ID: "2", FileName: "receipt_002.jpg", UploadDate: "2024-11-09", Status: model.StatusProcessing, Amount: 850},
			{ID: "3", FileName: "invoice_003.pdf", UploadDate: "2024-11-08", Status: model.StatusCompleted, Amount: 2150},
			{ID: "4", FileName: "receipt_004.png", UploadDate: "2024-11-07", Status: model.StatusError},
		},
	}
}

func demoReport() *model.ReportData {
	return &model.ReportData{
		Summary: model.ReportSummary{
			TotalInvoices: 245,
			TotalAmount:   1250000,
			AverageAmount: 5102,
			CategoryBreakdown: []model.CategoryShare{
				{Category: "Office Supplies", Amount: 350000, Count: 85, Percentage: 28},
				{Category: "Travel", Amount: 300000, Count: 65, Percentage: 24},
				{Category: "Meals", Amount: 250000, Count: 120, Percentage: 20},
				{Category: "Equipment", Amount: 200000, Count: 15, Percentage: 16},
				{Category: "Other", Amount: 150000, Count: 60, Percentage: 12},
			},
		},
		MonthlyTrend: []model.MonthlyPoint{
			{Month: "2024-08", Amount: 380000, Count: 78},
			{Month: "2024-09", Amount: 420000, Count: 82},
			{Month: "2024-10", Amount: 450000, Count: 85},
		},
		InvoiceList: []model.ReportRow{
			{ID: "1", InvoiceNumber: "INV-2024-001", Date: "2024-11-10", Vendor: "Northwind Technology Co.", Category: "Office Supplies", Amount: 1450, Status: model.StatusCompleted},
			{ID: "2", InvoiceNumber: "RCP-2024-002", Date: "2024-11-09", Vendor: "Corner Convenience Store", Category: "Meals", Amount: 210, Status: model.StatusCompleted},
			{ID: "3", InvoiceNumber: "INV-2024-003", Date: "2024-11-08", Vendor: "Contoso Computers Ltd.", Category: "Equipment", Amount: 25800, Status: model.StatusCompleted},
			{ID: "4", InvoiceNumber: "RCP-2024-004", Date: "2024-11-07", Vendor: "Highway Fuel Station", Category: "Travel", Amount: 850, Status: model.StatusCompleted},
			{ID: "5", InvoiceNumber: "INV-2024-005", Date: "2024-11-06", Vendor: "Paper & Pens Supply", Category: "Office Supplies", Amount: 680, Status: model.StatusCompleted},
		},
	}
}

func demoInvoice(id string) *model.Invoice {
	return &model.Invoice{
		ID:         id,
		Owner:      "3",
		FileName:   "invoice_001.pdf",
		FileSize:   245760,
		UploadDate: time.Date(2024, 11, 10, 9, 30, 0, 0, time.UTC),
		Status:     model.StatusCompleted,
		Category:   "Office Supplies",
		Result: &model.ExtractionResult{
			DocumentID: "AB-12345678",
			IssueDate:  "2024-11-10",
			Counterparty: model.Party{
				Name:    "Northwind Technology Co.",
				TaxID:   "12345678",
				Address: "No. 7, Sec. 5, Xinyi Rd., Xinyi Dist., Taipei",
			},
			LineItems: []model.LineItem{
				{Description: "A4 copy paper", Quantity: 5, UnitPrice: 200, Amount: 1000},
				{Description: "Printer toner", Quantity: 1, UnitPrice: 450, Amount: 450},
			},
			TotalAmount: 1450,
			TaxAmount:   72.5,
			Confidence:  0.95,
		},
	}
}

func demoInvoicePage() *model.InvoicePage {
	first := demoInvoice("1")
	second := demoInvoice("2")
	second.FileName = "receipt_002.jpg"
	second.Status = model.StatusProcessing
	second.Category = ""
	second.Result = nil
	second.UploadDate = second.UploadDate.AddDate(0, 0, -1)

	return &model.InvoicePage{
		Items: []*model.Invoice{first, second},
		Total: 2,
		Page:  1,
		Limit: 20,
	}
}

func demoCategories() []model.Category {
	seeded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cats := []model.Category{
		{ID: "1", Code: "5001", Name: "Office Supplies", IsActive: true, Keywords: []string{"paper", "stationery", "printer", "toner"}},
		{ID: "2", Code: "5002", Name: "Travel", IsActive: true, Keywords: []string{"transport", "hotel", "flight", "rail", "fuel"}},
		{ID: "3", Code: "5003", Name: "Meals", IsActive: true, Keywords: []string{"restaurant", "lunch", "coffee", "catering"}},
	}
	for i := range cats {
		cats[i].CreatedAt = seeded
		cats[i].UpdatedAt = seeded
	}
	return cats
}
