package service

import (
	"context"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/model"
)

// Extractor turns an uploaded document into structured invoice fields
type Extractor interface {
	Extract(ctx context.Context, task *model.UploadTask) (*model.ExtractionResult, error)
}

// SyntheticExtractor returns a fixed sample result. There is no OCR engine
// behind it; it exists so the upload lifecycle can run end to end.
type SyntheticExtractor struct {
	Now func() time.Time
}

func (e *SyntheticExtractor) Extract(ctx context.Context, task *model.UploadTask) (*model.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	docID := strings.ReplaceAll(task.ID, "-", "")
	if len(docID) > 9 {
		docID = docID[:9]
	}

	return &model.ExtractionResult{
		DocumentID: "INV-" + strings.ToUpper(docID),
		IssueDate:  now().Format("2006-01-02"),
		Counterparty: model.Party{
			Name:    "Example Trading Co., Ltd.",
			TaxID:   "12345678",
			Address: "No. 7, Sec. 5, Xinyi Rd., Xinyi Dist., Taipei",
		},
		LineItems: []model.LineItem{
			{Description: "Product A", Quantity: 2, UnitPrice: 1000, Amount: 2000},
			{Description: "Product B", Quantity: 1, UnitPrice: 500, Amount: 500},
		},
		TotalAmount: 2500,
		TaxAmount:   125,
		Confidence:  0.95,
	}, nil
}
