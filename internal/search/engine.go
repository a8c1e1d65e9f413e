package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Reason explains why the engine did not serve a search.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonIndexUnavailable Reason = "index_unavailable"
	ReasonEmptySearch      Reason = "empty_search"
	ReasonIndexMissing     Reason = "index_missing"
	ReasonNoNodeAvailable  Reason = "no_node_available"
)

// InvalidatesCache reports whether cached relational listings may be stale
// after a failure for r.
func (r Reason) InvalidatesCache() bool {
	switch r {
	case ReasonIndexUnavailable, ReasonIndexMissing, ReasonNoNodeAvailable:
		return true
	default:
		return false
	}
}

// DefaultSuggestionSize is the number of suggestions asked from each
// suggester.
const DefaultSuggestionSize = 5

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID        string              `json:"_id"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest"`
}

// Engine runs catalog searches against Elasticsearch and re-hydrates the
// hits from the relational store.
type Engine struct {
	client         *elasticsearch.Client
	indexes        *IndexManager
	finder         ItemFinder
	suggestionSize int
	logger         *slog.Logger
}

// NewEngine creates an Engine. A non-positive suggestionSize uses
// DefaultSuggestionSize.
func NewEngine(client *elasticsearch.Client, indexes *IndexManager, finder ItemFinder, suggestionSize int, logger *slog.Logger) *Engine {
	if suggestionSize < 1 {
		suggestionSize = DefaultSuggestionSize
	}
	return &Engine{
		client:         client,
		indexes:        indexes,
		finder:         finder,
		suggestionSize: suggestionSize,
		logger:         logger,
	}
}

// Search runs f against the engine. When the engine cannot serve the
// request it returns a nil result and the Reason; the caller falls back.
// Unexpected engine errors are returned as errors.
func (e *Engine) Search(ctx context.Context, f domain.Filter) (*domain.SearchResult, Reason, error) {
	start := time.Now()
	result, reason, err := e.search(ctx, f)

	outcome := "served"
	switch {
	case err != nil:
		outcome = "error"
	case reason != ReasonNone:
		outcome = string(reason)
	}
	searchRequestsTotal.WithLabelValues(outcome).Inc()
	if reason != ReasonIndexUnavailable && reason != ReasonEmptySearch {
		searchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	return result, reason, err
}

func (e *Engine) search(ctx context.Context, f domain.Filter) (*domain.SearchResult, Reason, error) {
	available, err := e.indexes.Available(ctx)
	if err != nil {
		return nil, ReasonNone, err
	}
	if !available {
		return nil, ReasonIndexUnavailable, nil
	}

	term := f.Term()
	if term == "" {
		return nil, ReasonEmptySearch, nil
	}

	ctx, span := startSpan(ctx, "query", e.indexes.Name())
	resp, reason, err := e.query(ctx, term, f)
	endSpan(span, err)
	if err != nil || reason != ReasonNone {
		return nil, reason, err
	}

	suggestions := extractSuggestions(resp)
	if resp.Hits.Total.Value == 0 {
		return &domain.SearchResult{
			Origin:      domain.OriginEngine,
			Items:       []domain.Item{},
			Total:       0,
			Page:        f.Page,
			PerPage:     f.PerPage,
			MaxScore:    resp.Hits.MaxScore,
			Suggestions: suggestions,
			Highlights:  map[int64]map[string]string{},
		}, ReasonNone, nil
	}

	ids := make([]int64, 0, len(resp.Hits.Hits))
	highlights := make(map[int64]map[string]string)
	for _, hit := range resp.Hits.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping search hit with non-numeric id", slog.String("id", hit.ID))
			continue
		}
		ids = append(ids, id)
		if h := firstFragments(hit.Highlight); h != nil {
			highlights[id] = h
		}
	}

	items, err := e.hydrate(ctx, ids)
	if err != nil {
		return nil, ReasonNone, err
	}

	return &domain.SearchResult{
		Origin:      domain.OriginEngine,
		Items:       items,
		Total:       resp.Hits.Total.Value,
		Page:        f.Page,
		PerPage:     f.PerPage,
		MaxScore:    resp.Hits.MaxScore,
		Suggestions: suggestions,
		Highlights:  highlights,
	}, ReasonNone, nil
}

// query executes the search request and classifies engine failures.
func (e *Engine) query(ctx context.Context, term string, f domain.Filter) (*searchResponse, Reason, error) {
	body, err := json.Marshal(buildSearchBody(term, f, e.suggestionSize))
	if err != nil {
		return nil, ReasonNone, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexes.Name()),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		err = transportError("search", err)
		if IsUnreachable(err) {
			e.logger.WarnContext(ctx, "could not query search engine, no node available",
				slog.String("error", err.Error()),
			)
			return nil, ReasonNoNodeAvailable, nil
		}
		return nil, ReasonNone, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			e.logger.WarnContext(ctx, "search index not found during search", slog.String("index", e.indexes.Name()))
			e.indexes.Forget()
			return nil, ReasonIndexMissing, nil
		}
		return nil, ReasonNone, responseError("search", res)
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, ReasonNone, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}
	return &resp, ReasonNone, nil
}

// hydrate loads ids from the relational store in hit order. Hits whose row
// no longer exists are dropped.
func (e *Engine) hydrate(ctx context.Context, ids []int64) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	rows, err := e.finder.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate search hits: %w", err)
	}
	byID := make(map[int64]domain.Item, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// firstFragments keeps the first fragment of every highlighted field.
func firstFragments(h map[string][]string) map[string]string {
	var out map[string]string
	for field, fragments := range h {
		if len(fragments) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(h))
		}
		out[field] = fragments[0]
	}
	return out
}

// extractSuggestions merges completion then term suggestions, dropping
// duplicates and keeping first-seen order.
func extractSuggestions(resp *searchResponse) []string {
	out := []string{}
	for _, name := range []string{completionSuggester, termSuggester} {
		for _, entry := range resp.Suggest[name] {
			for _, opt := range entry.Options {
				if opt.Text != "" && !slices.Contains(out, opt.Text) {
					out = append(out, opt.Text)
				}
			}
		}
	}
	return out
}

// Ping checks whether the engine answers.
func (e *Engine) Ping(ctx context.Context) error {
	return Ping(ctx, e.client)
}
