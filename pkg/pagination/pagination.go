package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

// MaxPerPage is the largest page size a client may request.
const MaxPerPage = 100

// Params holds page parameters parsed from a query string.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset returns the number of rows preceding the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Parse reads page and per_page from q. Missing values fall back to page 1
// and defaultPerPage; malformed or out-of-range values are an error.
func Parse(q url.Values, defaultPerPage int) (Params, error) {
	p := Params{Page: 1, PerPage: defaultPerPage}

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = v
	}
	if raw := q.Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxPerPage {
			return Params{}, fmt.Errorf("per_page must be between 1 and %d", MaxPerPage)
		}
		p.PerPage = v
	}
	return p, nil
}

// Result is the paginated list envelope.
type Result[T any] struct {
	Data       []T            `json:"data"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewResult builds a Result. A nil data slice is rendered as [].
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := 0
	if params.PerPage > 0 {
		totalPages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}

// WithMeta returns r with key set in its meta block.
func (r Result[T]) WithMeta(key string, value any) Result[T] {
	meta := make(map[string]any, len(r.Meta)+1)
	for k, v := range r.Meta {
		meta[k] = v
	}
	meta[key] = value
	r.Meta = meta
	return r
}
