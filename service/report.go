package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/AnTengye/invoicedesk/model"
)

const (
	dashboardMonths = 6
	recentInvoices  = 5
)

// PendingCounter reports uploads still in flight
type PendingCounter interface {
	ActiveCount(owner string) int
}

// ReportQuery selects the invoices of a report. Zero dates are open ends.
type ReportQuery struct {
	Owner    string
	From     time.Time
	To       time.Time
	Category string
}

// ReportService computes the dashboard and report views from the invoice store
type ReportService struct {
	invoices *InvoiceStore
	pending  PendingCounter
	now      func() time.Time
}

func NewReportService(invoices *InvoiceStore, pending PendingCounter) *ReportService {
	return &ReportService{invoices: invoices, pending: pending, now: time.Now}
}

// Dashboard summarizes the invoices visible to owner, or all when owner is empty.
func (s *ReportService) Dashboard(owner string) *model.DashboardSummary {
	all := s.invoices.All(InvoiceFilter{Owner: owner})

	summary := &model.DashboardSummary{
		TotalInvoices:  len(all),
		RecentInvoices: []model.RecentInvoice{},
	}
	if s.pending != nil {
		summary.PendingCount = s.pending.ActiveCount(owner)
	}

	completed := 0
	for _, inv := range all {
		if inv.Status == model.StatusCompleted {
			completed++
			summary.TotalAmount += inv.Amount()
		}
	}
	if len(all) > 0 {
		summary.OCRSuccessRate = round1(float64(completed) * 100 / float64(len(all)))
	}
	summary.TotalAmount = round2(summary.TotalAmount)

	// Fixed window so the chart always has the same number of bars
	summary.MonthlyData = make([]model.MonthlyPoint, dashboardMonths)
	months := make(map[string]*model.MonthlyPoint, dashboardMonths)
	current := monthStart(s.now())
	for i := range summary.MonthlyData {
		key := current.AddDate(0, i-dashboardMonths+1, 0).Format("2006-01")
		summary.MonthlyData[i].Month = key
		months[key] = &summary.MonthlyData[i]
	}
	for _, inv := range all {
		if inv.Status != model.StatusCompleted {
			continue
		}
		if p, ok := months[inv.UploadDate.Format("2006-01")]; ok {
			p.Amount = round2(p.Amount + inv.Amount())
			p.Count++
		}
	}

	summary.CategoryData = categoryShares(all)

	for i, inv := range all {
		if i == recentInvoices {
			break
		}
		summary.RecentInvoices = append(summary.RecentInvoices, model.RecentInvoice{
			ID:         inv.ID,
			FileName:   inv.FileName,
			UploadDate: inv.UploadDate.Format("2006-01-02"),
			Status:     inv.Status,
			Amount:     inv.Amount(),
		})
	}
	return summary
}

// Report lists and aggregates the invoices matching q
func (s *ReportService) Report(q ReportQuery) *model.ReportData {
	all := s.invoices.All(InvoiceFilter{Owner: q.Owner, DateFrom: q.From, DateTo: q.To})

	selected := all[:0]
	for _, inv := range all {
		if q.Category == "" || inv.Category == q.Category {
			selected = append(selected, inv)
		}
	}

	data := &model.ReportData{
		MonthlyTrend: []model.MonthlyPoint{},
		InvoiceList:  make([]model.ReportRow, 0, len(selected)),
	}

	completed := 0
	months := make(map[string]*model.MonthlyPoint)
	for _, inv := range selected {
		data.InvoiceList = append(data.InvoiceList, reportRow(inv))
		if inv.Status != model.StatusCompleted {
			continue
		}
		completed++
		data.Summary.TotalAmount += inv.Amount()

		key := inv.UploadDate.Format("2006-01")
		p, ok := months[key]
		if !ok {
			p = &model.MonthlyPoint{Month: key}
			months[key] = p
		}
		p.Amount = round2(p.Amount + inv.Amount())
		p.Count++
	}

	data.Summary.TotalInvoices = len(selected)
	data.Summary.TotalAmount = round2(data.Summary.TotalAmount)
	if completed > 0 {
		data.Summary.AverageAmount = round2(data.Summary.TotalAmount / float64(completed))
	}
	data.Summary.CategoryBreakdown = categoryShares(selected)

	for _, p := range months {
		data.MonthlyTrend = append(data.MonthlyTrend, *p)
	}
	sort.Slice(data.MonthlyTrend, func(i, j int) bool {
		return data.MonthlyTrend[i].Month < data.MonthlyTrend[j].Month
	})
	return data
}

var csvHeader = []string{"Invoice Number", "Date", "Vendor", "Category", "Amount", "Status"}

// ExportCSV writes the invoice list of a report as CSV
func ExportCSV(w io.Writer, data *model.ReportData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.InvoiceList {
		record := []string{
			row.InvoiceNumber,
			row.Date,
			row.Vendor,
			row.Category,
			strconv.FormatFloat(row.Amount, 'f', 2, 64),
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func reportRow(inv *model.Invoice) model.ReportRow {
	row := model.ReportRow{
		ID:       inv.ID,
		Date:     inv.UploadDate.Format("2006-01-02"),
		Category: inv.Category,
		Amount:   inv.Amount(),
		Status:   inv.Status,
	}
	if inv.Result != nil {
		row.InvoiceNumber = inv.Result.DocumentID
		row.Vendor = inv.Result.Counterparty.Name
		if inv.Result.IssueDate != "" {
			row.Date = inv.Result.IssueDate
		}
	}
	if row.Category == "" {
		row.Category = UncategorizedName
	}
	return row
}

// categoryShares breaks completed spend down by category, largest first.
func categoryShares(invoices []*model.Invoice) []model.CategoryShare {
	byName := make(map[string]*model.CategoryShare)
	var total float64
	for _, inv := range invoices {
		if inv.Status != model.StatusCompleted {
			continue
		}
		name := inv.Category
		if name == "" {
			name = UncategorizedName
		}
		share, ok := byName[name]
		if !ok {
			share = &model.CategoryShare{Category: name}
			byName[name] = share
		}
		share.Amount += inv.Amount()
		share.Count++
		total += inv.Amount()
	}

	shares := make([]model.CategoryShare, 0, len(byName))
	for _, share := range byName {
		if total > 0 {
			share.Percentage = round1(share.Amount * 100 / total)
		}
		share.Amount = round2(share.Amount)
		shares = append(shares, *share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Amount == shares[j].Amount {
			return shares[i].Category < shares[j].Category
		}
		return shares[i].Amount > shares[j].Amount
	})
	return shares
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
