package domain

// Origin tells which backend produced a SearchResult.
type Origin string

const (
	OriginEngine     Origin = "engine"
	OriginRelational Origin = "relational"
)

// SearchResult is the listing contract shared by the engine and the
// relational fallback. Relational results never carry a score,
// suggestions or highlights.
type SearchResult struct {
	Origin      Origin
	Items       []Item
	Total       int
	Page        int
	PerPage     int
	MaxScore    *float64
	Suggestions []string
	// Highlights maps item id to field name to the first fragment.
	Highlights map[int64]map[string]string
}

// FromPage wraps a relational page.
func FromPage(p *ItemPage) *SearchResult {
	items := p.Items
	if items == nil {
		items = []Item{}
	}
	return &SearchResult{
		Origin:  OriginRelational,
		Items:   items,
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
	}
}

// IsEngine reports whether the engine served the result.
func (r *SearchResult) IsEngine() bool {
	return r.Origin == OriginEngine
}

// HighlightFor returns the highlight fragments of one item, or nil.
func (r *SearchResult) HighlightFor(id int64) map[string]string {
	if r.Highlights == nil {
		return nil
	}
	return r.Highlights[id]
}
