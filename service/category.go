package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/invoicedesk/model"
	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryInvalid   = errors.New("category code and name are required")
	ErrCategoryDuplicate = errors.New("category code already exists")
)

// UncategorizedName is reported for invoices no active category matches
const UncategorizedName = "Other"

// CategoryStore holds the accounting categories in memory
type CategoryStore struct {
	mu         sync.RWMutex
	categories map[string]*model.Category
	now        func() time.Time
}

// DefaultCategories returns the categories a fresh store starts with
func DefaultCategories() []model.Category {
	seeded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cats := []model.Category{
		{ID: "1", Code: "5001", Name: "Office Supplies", Description: "Everyday office consumables", IsActive: true,
			Keywords: []string{"paper", "stationery", "printer", "toner"}},
		{ID: "2", Code: "5002", Name: "Travel", Description: "Staff business travel", IsActive: true,
			Keywords: []string{"transport", "hotel", "flight", "rail", "fuel"}},
		{ID: "3", Code: "5003", Name: "Meals", Description: "Staff meals and client entertainment", IsActive: true,
			Keywords: []string{"restaurant", "lunch", "coffee", "catering"}},
		{ID: "4", Code: "5004", Name: "Equipment", Description: "Equipment purchase and maintenance", IsActive: true,
			Keywords: []string{"computer", "equipment", "repair", "software"}},
		{ID: "5", Code: "5005", Name: "Telecom", Description: "Phone and internet", IsActive: true,
			Keywords: []string{"phone", "internet", "mobile"}},
		{ID: "6", Code: "5006", Name: "Rent", Description: "Office rent and related charges", IsActive: false,
			Keywords: []string{"rent", "utilities", "management fee"}},
	}
	for i := range cats {
		cats[i].CreatedAt = seeded
		cats[i].UpdatedAt = seeded
	}
	return cats
}

// NewCategoryStore creates a store seeded with DefaultCategories
func NewCategoryStore() *CategoryStore {
	s := &CategoryStore{
		categories: make(map[string]*model.Category),
		now:        time.Now,
	}
	for _, c := range DefaultCategories() {
		c := c
		s.categories[c.ID] = &c
	}
	return s
}

// List returns all categories ordered by code
func (s *CategoryStore) List() []model.Category {
	s.mu.RLock()
	result := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		result = append(result, cloneCategory(c))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func (s *CategoryStore) Get(id string) (*model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cc := cloneCategory(c)
	return &cc, nil
}

// Create validates and stores a new category. A nil IsActive means active.
func (s *CategoryStore) Create(in model.CategoryInput) (*model.Category, error) {
	normalizeCategoryInput(&in)
	if in.Code == "" || in.Name == "" {
		return nil, ErrCategoryInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.codeTakenLocked(in.Code, "") {
		return nil, fmt.Errorf("%w: %s", ErrCategoryDuplicate, in.Code)
	}

	now := s.now()
	c := &model.Category{
		ID:          uuid.New().String(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		ParentID:    in.ParentID,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Keywords:    in.Keywords,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.categories[c.ID] = c

	cc := cloneCategory(c)
	return &cc, nil
}

// Update replaces the writable fields of a category
func (s *CategoryStore) Update(id string, in model.CategoryInput) (*model.Category, error) {
	normalizeCategoryInput(&in)
	if in.Code == "" || in.Name == "" {
		return nil, ErrCategoryInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	if s.codeTakenLocked(in.Code, id) {
		return nil, fmt.Errorf("%w: %s", ErrCategoryDuplicate, in.Code)
	}

	c.Code = in.Code
	c.Name = in.Name
	c.Description = in.Description
	c.ParentID = in.ParentID
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	c.Keywords = in.Keywords
	c.UpdatedAt = s.now()

	cc := cloneCategory(c)
	return &cc, nil
}

func (s *CategoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

// Classify picks the first active category, by code, whose keywords appear in
// the counterparty name or a line item description.
func (s *CategoryStore) Classify(result *model.ExtractionResult) string {
	if result == nil {
		return UncategorizedName
	}

	texts := []string{strings.ToLower(result.Counterparty.Name)}
	for _, item := range result.LineItems {
		texts = append(texts, strings.ToLower(item.Description))
	}

	for _, c := range s.List() {
		if !c.IsActive {
			continue
		}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(kw)
			for _, text := range texts {
				if strings.Contains(text, kw) {
					return c.Name
				}
			}
		}
	}
	return UncategorizedName
}

func (s *CategoryStore) codeTakenLocked(code, exceptID string) bool {
	for id, c := range s.categories {
		if id != exceptID && c.Code == code {
			return true
		}
	}
	return false
}

func normalizeCategoryInput(in *model.CategoryInput) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	keywords := make([]string, 0, len(in.Keywords))
	for _, kw := range in.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	in.Keywords = keywords
}

func cloneCategory(c *model.Category) model.Category {
	cc := *c
	cc.Keywords = append([]string{}, c.Keywords...)
	return cc
}
