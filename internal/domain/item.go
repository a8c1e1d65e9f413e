package domain

import (
	"encoding/json"
	"math"
	"time"
)

// SubjectCatalogItem is the audit subject type of catalog items.
const SubjectCatalogItem = "catalog_item"

// Item is a catalog item as stored in the relational database, which owns
// it. The search index only holds a derived copy.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	PriceCents  int64     `json:"-"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Price returns the unit price as a decimal amount.
func (i Item) Price() float64 {
	return float64(i.PriceCents) / 100
}

// Available reports whether the item is in stock.
func (i Item) Available() bool {
	return i.Stock > 0
}

// MarshalJSON renders the price as a decimal "price" field.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Price float64 `json:"price"`
	}{plain(i), i.Price()})
}

// CentsFromPrice converts a decimal price to integer cents, rounding half
// away from zero.
func CentsFromPrice(price float64) int64 {
	return int64(math.Round(price * 100))
}

// AuditAttributes returns the attributes recorded on audit entries.
func (i Item) AuditAttributes() map[string]any {
	return map[string]any{
		"id":          i.ID,
		"name":        i.Name,
		"description": deref(i.Description),
		"category":    deref(i.Category),
		"price":       i.Price(),
		"stock":       i.Stock,
		"created_at":  i.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  i.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// ItemPage is one page of a relational listing.
type ItemPage struct {
	Items   []Item
	Total   int
	Page    int
	PerPage int
}
