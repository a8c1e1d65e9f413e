package search

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Suggestion weights favour items that can be bought.
const (
	weightAvailable   = 10
	weightUnavailable = 3
)

// Suggestion is a completion-field entry.
type Suggestion struct {
	Input  []string `json:"input"`
	Weight int      `json:"weight"`
}

// Document is the indexed form of a catalog item. It is rebuilt in full on
// every mutation.
type Document struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	NameSort      string     `json:"name_sort"`
	Description   *string    `json:"description"`
	Category      *string    `json:"category"`
	CategoryTerms *string    `json:"category_terms"`
	Price         float64    `json:"price"`
	Stock         int        `json:"stock"`
	Available     bool       `json:"available"`
	CreatedAt     *string    `json:"created_at"`
	UpdatedAt     *string    `json:"updated_at"`
	NameSuggest   Suggestion `json:"name_suggest"`
}

// NewDocument maps item to its search document.
func NewDocument(item domain.Item) Document {
	doc := Document{
		ID:          strconv.FormatInt(item.ID, 10),
		Name:        item.Name,
		NameSort:    strings.ToLower(item.Name),
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price(),
		Stock:       item.Stock,
		Available:   item.Available(),
		CreatedAt:   isoTime(item.CreatedAt),
		UpdatedAt:   isoTime(item.UpdatedAt),
		NameSuggest: buildSuggestion(item),
	}
	if item.Category != nil {
		term := domain.NormalizeCategory(*item.Category)
		doc.CategoryTerms = &term
	}
	return doc
}

// Item converts the document back to the overlapping item fields.
func (d Document) Item() (domain.Item, error) {
	id, err := strconv.ParseInt(d.ID, 10, 64)
	if err != nil {
		return domain.Item{}, fmt.Errorf("document id %q: %w", d.ID, err)
	}
	item := domain.Item{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		PriceCents:  domain.CentsFromPrice(d.Price),
		Stock:       d.Stock,
	}
	if d.CreatedAt != nil {
		if item.CreatedAt, err = time.Parse(time.RFC3339, *d.CreatedAt); err != nil {
			return domain.Item{}, fmt.Errorf("document %s created_at: %w", d.ID, err)
		}
	}
	if d.UpdatedAt != nil {
		if item.UpdatedAt, err = time.Parse(time.RFC3339, *d.UpdatedAt); err != nil {
			return domain.Item{}, fmt.Errorf("document %s updated_at: %w", d.ID, err)
		}
	}
	return item, nil
}

func buildSuggestion(item domain.Item) Suggestion {
	candidates := []string{item.Name}
	if item.Category != nil {
		candidates = append(candidates, *item.Category)
	}
	candidates = append(candidates, strings.Fields(strings.ToLower(item.Name))...)

	inputs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(inputs, c) {
			continue
		}
		inputs = append(inputs, c)
	}

	weight := weightUnavailable
	if item.Available() {
		weight = weightAvailable
	}
	return Suggestion{Input: inputs, Weight: weight}
}

func isoTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
