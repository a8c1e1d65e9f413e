package domain

import (
	"slices"
	"strings"
)

// SortField is a whitelisted sort column.
type SortField string

const (
	SortName      SortField = "name"
	SortPrice     SortField = "price"
	SortCategory  SortField = "category"
	SortStock     SortField = "stock"
	SortCreatedAt SortField = "created_at"
)

// SortOrder is a sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Page size bounds.
const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// ValidSortFields returns the sortable fields.
func ValidSortFields() []SortField {
	return []SortField{SortName, SortPrice, SortCategory, SortStock, SortCreatedAt}
}

// ParseSortField reports whether s names a sortable field.
func ParseSortField(s string) (SortField, bool) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(ValidSortFields(), f) {
		return f, true
	}
	return SortName, false
}

// ParseSortOrder returns the direction named by s, defaulting to asc.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == OrderDesc {
		return OrderDesc
	}
	return OrderAsc
}

// FilterParams are the raw listing parameters as received at the boundary.
type FilterParams struct {
	Search     string
	Category   string
	Categories []string
	MinPrice   *float64
	MaxPrice   *float64
	Available  *bool
	Sort       string
	Order      string
	Page       int
	PerPage    int
}

// Filter is the typed, defaulted listing request. Build it with NewFilter
// and treat it as immutable afterwards.
type Filter struct {
	Search        *string
	Category      *string
	Categories    []string
	MinPriceCents *int64
	MaxPriceCents *int64
	Available     *bool
	Sort          SortField
	Order         SortOrder
	// SortExplicit is set when the caller asked for a whitelisted sort field.
	SortExplicit bool
	Page         int
	PerPage      int
}

// NewFilter converts raw parameters into a Filter. Unknown sort fields and
// directions fall back to name and asc instead of failing.
func NewFilter(p FilterParams) Filter {
	f := Filter{
		Available: p.Available,
		Order:     ParseSortOrder(p.Order),
		Page:      p.Page,
		PerPage:   p.PerPage,
	}
	if p.Search != "" {
		s := p.Search
		f.Search = &s
	}
	if c := strings.TrimSpace(p.Category); c != "" {
		f.Category = &c
	}
	for _, c := range p.Categories {
		if c = strings.TrimSpace(c); c != "" {
			f.Categories = append(f.Categories, c)
		}
	}
	if p.MinPrice != nil {
		v := CentsFromPrice(*p.MinPrice)
		f.MinPriceCents = &v
	}
	if p.MaxPrice != nil {
		v := CentsFromPrice(*p.MaxPrice)
		f.MaxPriceCents = &v
	}
	f.Sort, f.SortExplicit = ParseSortField(p.Sort)
	return f.Normalize()
}

// Normalize re-applies defaults to a hand-built Filter.
func (f Filter) Normalize() Filter {
	if sf, ok := ParseSortField(string(f.Sort)); ok {
		f.Sort = sf
	} else {
		f.Sort = SortName
		f.SortExplicit = false
	}
	f.Order = ParseSortOrder(string(f.Order))
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PerPage < 1:
		f.PerPage = DefaultPerPage
	case f.PerPage > MaxPerPage:
		f.PerPage = MaxPerPage
	}
	return f
}

// Term returns the trimmed search term, or "" when none was given.
func (f Filter) Term() string {
	if f.Search == nil {
		return ""
	}
	return strings.TrimSpace(*f.Search)
}

// WithSearch returns a copy of f with the search term replaced. An empty
// term removes it.
func (f Filter) WithSearch(term string) Filter {
	if term == "" {
		f.Search = nil
		return f
	}
	f.Search = &term
	return f
}

// CategoryTerm returns the normalized single-category filter, or "".
func (f Filter) CategoryTerm() string {
	if f.Category == nil {
		return ""
	}
	return NormalizeCategory(*f.Category)
}

// CategoryTerms returns the normalized category set, de-duplicated in first
// occurrence order.
func (f Filter) CategoryTerms() []string {
	var out []string
	for _, c := range f.Categories {
		if n := NormalizeCategory(c); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Offset is the zero-based index of the first row of the page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Summary returns the filter fields worth attaching to log lines.
func (f Filter) Summary() map[string]any {
	out := map[string]any{
		"sort":  string(f.Sort),
		"order": string(f.Order),
	}
	if f.Search != nil {
		out["search"] = *f.Search
	}
	if f.Category != nil {
		out["category"] = *f.Category
	}
	if len(f.Categories) > 0 {
		out["categories"] = f.Categories
	}
	if f.MinPriceCents != nil {
		out["min_price"] = float64(*f.MinPriceCents) / 100
	}
	if f.MaxPriceCents != nil {
		out["max_price"] = float64(*f.MaxPriceCents) / 100
	}
	if f.Available != nil {
		out["available"] = *f.Available
	}
	return out
}

// NormalizeCategory lowercases a category and collapses inner whitespace.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
