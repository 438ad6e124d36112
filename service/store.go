package service

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// InvoiceFilter narrows a List call. Zero values mean "no filter".
type InvoiceFilter struct {
	Owner    string
	Status   model.Status
	DateFrom time.Time
	DateTo   time.Time // inclusive day
	Page     int
	Limit    int
}

// InvoiceStore is an in-memory store for processed invoices
type InvoiceStore struct {
	invoices    map[string]*model.Invoice
	mu          sync.RWMutex
	maxInvoices int // Maximum invoices to keep, 0 = unlimited
}

// NewInvoiceStore creates a store with the retention limit from cfg
func NewInvoiceStore(cfg *config.StoreConfig) *InvoiceStore {
	maxInvoices := cfg.MaxInvoices
	if maxInvoices < 0 {
		maxInvoices = 0
	}
	slog.Info("invoice store initialized", "max_invoices", maxInvoices)
	return &InvoiceStore{
		invoices:    make(map[string]*model.Invoice),
		maxInvoices: maxInvoices,
	}
}

// InvoiceFromTask builds the invoice record of a finished upload task
func InvoiceFromTask(task *model.UploadTask, category string) *model.Invoice {
	return &model.Invoice{
		ID:         task.ID,
		TaskID:     task.ID,
		Owner:      task.Owner,
		FileName:   task.FileName,
		FileSize:   task.FileSize,
		UploadDate: task.CreatedAt,
		Status:     task.Status,
		Category:   category,
		Result:     task.Result.Clone(),
	}
}

func (s *InvoiceStore) Save(inv *model.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoices[inv.ID] = cloneInvoice(inv)

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

func (s *InvoiceStore) Get(id string) (*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

// List returns one page of matching invoices, newest first, and the total
// number of matches.
func (s *InvoiceStore) List(f InvoiceFilter) ([]*model.Invoice, int) {
	matched := s.All(f)

	page, limit := f.Bounds()

	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return []*model.Invoice{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// All returns every matching invoice, newest first, ignoring paging.
func (s *InvoiceStore) All(f InvoiceFilter) []*model.Invoice {
	s.mu.RLock()
	result := make([]*model.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if f.matches(inv) {
			result = append(result, cloneInvoice(inv))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadDate.Equal(result[j].UploadDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].UploadDate.After(result[j].UploadDate)
	})
	return result
}

func (s *InvoiceStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(s.invoices, id)
	return nil
}

// Count returns the number of invoices in the store
func (s *InvoiceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}

// cleanupIfNeeded removes oldest invoices if store exceeds maxInvoices
// Must be called with lock held
func (s *InvoiceStore) cleanupIfNeeded() {
	if s.maxInvoices <= 0 {
		return // Unlimited
	}

	if len(s.invoices) <= s.maxInvoices {
		return
	}

	invoices := make([]*model.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		invoices = append(invoices, inv)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].UploadDate.Before(invoices[j].UploadDate)
	})

	removeCount := len(invoices) - s.maxInvoices
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old invoice",
			"invoice_id", invoices[i].ID,
			"upload_date", invoices[i].UploadDate,
		)
		delete(s.invoices, invoices[i].ID)
	}
}

// Bounds returns the effective page and page size
func (f InvoiceFilter) Bounds() (page, limit int) {
	page, limit = f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func (f InvoiceFilter) matches(inv *model.Invoice) bool {
	if f.Owner != "" && inv.Owner != f.Owner {
		return false
	}
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if !f.DateFrom.IsZero() && inv.UploadDate.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && !inv.UploadDate.Before(f.DateTo.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func cloneInvoice(inv *model.Invoice) *model.Invoice {
	c := *inv
	c.Result = inv.Result.Clone()
	return &c
}
