package search

import "github.com/utafrali/catalog-search/internal/domain"

const (
	completionSuggester = "catalog_completion"
	termSuggester       = "catalog_terms"
)

// sortFields maps sort fields to their indexed sort column.
var sortFields = map[domain.SortField]string{
	domain.SortName:      "name.raw",
	domain.SortPrice:     "price",
	domain.SortCategory:  "category",
	domain.SortStock:     "stock",
	domain.SortCreatedAt: "created_at",
}

// buildSearchBody constructs the full search request for term and f.
func buildSearchBody(term string, f domain.Filter, suggestionSize int) map[string]interface{} {
	body := map[string]interface{}{
		"from":             f.Offset(),
		"size":             f.PerPage,
		"track_total_hits": true,
		"query":            buildQuery(term, f),
		"highlight":        highlightConfig(),
		"suggest":          suggestConfig(term, suggestionSize),
	}
	if sort := buildSort(f); sort != nil {
		body["sort"] = sort
	}
	return body
}

// buildQuery scores the text match and adds a small stock boost so
// well-stocked items win ties on relevance.
func buildQuery(term string, f domain.Filter) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     term,
					"fields":    []string{"name^4", "category^3", "description^2"},
					"type":      "best_fields",
					"fuzziness": "AUTO",
				},
			},
		},
	}
	if filters := buildFilters(f); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"function_score": map[string]interface{}{
			"query": map[string]interface{}{"bool": boolQuery},
			"field_value_factor": map[string]interface{}{
				"field":    "stock",
				"modifier": "log1p",
				"missing":  1,
			},
			"boost_mode": "sum",
			"score_mode": "avg",
		},
	}
}

// buildFilters returns the non-scoring filter clauses of f.
func buildFilters(f domain.Filter) []interface{} {
	var filters []interface{}

	if c := f.CategoryTerm(); c != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category_terms": c},
		})
	}

	if cs := f.CategoryTerms(); len(cs) > 0 {
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{"category_terms": cs},
		})
	}

	if f.MinPriceCents != nil || f.MaxPriceCents != nil {
		rangeFilter := map[string]interface{}{}
		if f.MinPriceCents != nil {
			rangeFilter["gte"] = float64(*f.MinPriceCents) / 100
		}
		if f.MaxPriceCents != nil {
			rangeFilter["lte"] = float64(*f.MaxPriceCents) / 100
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"price": rangeFilter},
		})
	}

	if f.Available != nil {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"available": *f.Available},
		})
	}

	return filters
}

// buildSort keeps relevance first and adds the requested field as a tie
// break. Without an explicit sort the engine's relevance order is used.
func buildSort(f domain.Filter) []interface{} {
	if !f.SortExplicit {
		return nil
	}
	field, ok := sortFields[f.Sort]
	if !ok {
		return nil
	}
	return []interface{}{
		map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
		map[string]interface{}{field: map[string]interface{}{"order": string(f.Order)}},
	}
}

func highlightConfig() map[string]interface{} {
	return map[string]interface{}{
		"pre_tags":  []string{"<em>"},
		"post_tags": []string{"</em>"},
		"fields": map[string]interface{}{
			"name":        map[string]interface{}{},
			"description": map[string]interface{}{},
		},
	}
}

func suggestConfig(term string, size int) map[string]interface{} {
	if size < 1 {
		size = 1
	}
	return map[string]interface{}{
		completionSuggester: map[string]interface{}{
			"prefix": term,
			"completion": map[string]interface{}{
				"field":           "name_suggest",
				"skip_duplicates": true,
				"size":            size,
			},
		},
		termSuggester: map[string]interface{}{
			"text": term,
			"term": map[string]interface{}{
				"field":        "name",
				"suggest_mode": "popular",
				"size":         size,
			},
		},
	}
}
