package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
)

// Result cache layout.
const (
	ResultCacheTag        = "catalog_items"
	ResultCacheKeyPrefix  = "catalog_items:"
	DefaultResultCacheTTL = 5 * time.Minute
)

// CachedItemRepository caches relational listings under a shared tag. Any
// write through it flushes the tag, as does Invalidate.
type CachedItemRepository struct {
	ItemRepository
	store  cache.TaggedStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedItemRepository wraps next. When store cannot group keys under
// tags the listing cache is bypassed and next is queried directly.
func NewCachedItemRepository(next ItemRepository, store cache.Store, ttl time.Duration, logger *slog.Logger) *CachedItemRepository {
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	r := &CachedItemRepository{ItemRepository: next, ttl: ttl, logger: logger}
	if tagged, ok := store.(cache.TaggedStore); ok {
		r.store = tagged
	} else {
		logger.Warn("result cache store does not support tags, listing cache disabled")
	}
	return r
}

// Enabled reports whether listings are cached.
func (r *CachedItemRepository) Enabled() bool {
	return r.store != nil
}

// Paginate serves f from the cache, falling back to the store on a miss or
// a cache error.
func (r *CachedItemRepository) Paginate(ctx context.Context, f domain.Filter) (*domain.ItemPage, error) {
	if r.store == nil {
		return r.ItemRepository.Paginate(ctx, f)
	}

	key := ResultCacheKey(f)
	var cached cachedPage
	err := cache.GetJSON(ctx, r.store, key, &cached)
	switch {
	case err == nil:
		resultCacheLookups.WithLabelValues("hit").Inc()
		return cached.page(), nil
	case !errors.Is(err, cache.ErrMiss):
		r.logger.WarnContext(ctx, "result cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	resultCacheLookups.WithLabelValues("miss").Inc()

	page, err := r.ItemRepository.Paginate(ctx, f)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(newCachedPage(page))
	if err == nil {
		err = r.store.SetTagged(ctx, ResultCacheTag, key, raw, r.ttl)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "result cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return page, nil
}

func (r *CachedItemRepository) Create(ctx context.Context, item *domain.Item) error {
	if err := r.ItemRepository.Create(ctx, item); err != nil {
		return err
	}
	r.flush(ctx)
	return nil
}

func (r *CachedItemRepository) Update(ctx context.Context, item *domain.Item) error {
	if err := r.ItemRepository.Update(ctx, item); err != nil {
		return err
	}
	r.flush(ctx)
	return nil
}

func (r *CachedItemRepository) Delete(ctx context.Context, id int64) error {
	if err := r.ItemRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.flush(ctx)
	return nil
}

// Invalidate drops every cached listing.
func (r *CachedItemRepository) Invalidate(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	resultCacheFlushes.Inc()
	return r.store.FlushTag(ctx, ResultCacheTag)
}

func (r *CachedItemRepository) flush(ctx context.Context) {
	if err := r.Invalidate(ctx); err != nil {
		r.logger.WarnContext(ctx, "result cache flush failed", slog.String("error", err.Error()))
	}
}

// cacheKeyFields is the normalized form of a filter. Field order is fixed
// and categories are sorted so equivalent filters share a key.
type cacheKeyFields struct {
	Search     string   `json:"search"`
	Category   string   `json:"category"`
	Categories []string `json:"categories"`
	MinPrice   *int64   `json:"min_price"`
	MaxPrice   *int64   `json:"max_price"`
	Available  *bool    `json:"available"`
	Sort       string   `json:"sort"`
	Order      string   `json:"order"`
	PerPage    int      `json:"per_page"`
	Page       int      `json:"page"`
}

// ResultCacheKey returns the cache key of the listing for f.
func ResultCacheKey(f domain.Filter) string {
	categories := f.CategoryTerms()
	slices.Sort(categories)
	if categories == nil {
		categories = []string{}
	}

	raw, _ := json.Marshal(cacheKeyFields{
		Search:     f.Term(),
		Category:   f.CategoryTerm(),
		Categories: categories,
		MinPrice:   f.MinPriceCents,
		MaxPrice:   f.MaxPriceCents,
		Available:  f.Available,
		Sort:       string(f.Sort),
		Order:      string(f.Order),
		PerPage:    f.PerPage,
		Page:       f.Page,
	})
	return ResultCacheKeyPrefix + strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// cachedItem keeps the price in cents; domain.Item renders it as a decimal.
type cachedItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type cachedPage struct {
	Items   []cachedItem `json:"items"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
}

func newCachedPage(p *domain.ItemPage) cachedPage {
	out := cachedPage{Items: make([]cachedItem, len(p.Items)), Total: p.Total, Page: p.Page, PerPage: p.PerPage}
	for i, it := range p.Items {
		out.Items[i] = cachedItem(it)
	}
	return out
}

func (c cachedPage) page() *domain.ItemPage {
	p := &domain.ItemPage{Items: make([]domain.Item, len(c.Items)), Total: c.Total, Page: c.Page, PerPage: c.PerPage}
	for i, it := range c.Items {
		p.Items[i] = domain.Item(it)
	}
	return p
}
