package model

import (
	"time"
)

// Status is the lifecycle state of an UploadTask.
type Status string

// Upload task statuses
const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether s -> to is a legal move.
// uploading -> uploading is the progress tick.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusUploading
	case StatusUploading:
		return to == StatusUploading || to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError
	default:
		return false
	}
}

// UploadTask tracks one file through upload and extraction
type UploadTask struct {
	ID          string            `json:"id"`
	Owner       string            `json:"owner"`
	FileName    string            `json:"file_name"`
	FileSize    int64             `json:"file_size"`
	ContentType string            `json:"content_type"`
	Progress    int               `json:"progress"`
	Status      Status            `json:"status"`
	Result      *ExtractionResult `json:"result,omitempty"`
	ErrorMsg    string            `json:"error_msg,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	// Removed marks the final snapshot published when a task is deleted
	Removed     bool              `json:"removed,omitempty"`
}

// Clone returns a deep copy safe to hand out of the tracker.
func (t *UploadTask) Clone() *UploadTask {
	if t == nil {
		return nil
	}
	c := *t
	c.Result = t.Result.Clone()
	return &c
}

// Party is the counterparty printed on an invoice
type Party struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address"`
}

// LineItem is a single invoice line
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// ExtractionResult holds the structured fields read from a document
type ExtractionResult struct {
	DocumentID   string     `json:"document_id"`
	IssueDate    string     `json:"issue_date"`
	Counterparty Party      `json:"counterparty"`
	LineItems    []LineItem `json:"line_items"`
	TotalAmount  float64    `json:"total_amount"`
	TaxAmount    float64    `json:"tax_amount"`
	Confidence   float64    `json:"confidence"` // 0..1
}

// Clone returns a deep copy of the result.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.LineItems != nil {
		c.LineItems = append([]LineItem(nil), r.LineItems...)
	}
	return &c
}
