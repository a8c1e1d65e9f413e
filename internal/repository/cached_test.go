package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// countingRepo answers Paginate from a fixed page and counts calls.
type countingRepo struct {
	ItemRepository
	mu        sync.Mutex
	paginates int
	page      domain.ItemPage
}

func (r *countingRepo) Paginate(_ context.Context, f domain.Filter) (*domain.ItemPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paginates++
	p := r.page
	p.Page, p.PerPage = f.Page, f.PerPage
	return &p, nil
}

func (r *countingRepo) Create(_ context.Context, item *domain.Item) error {
	item.ID = 99
	return nil
}

func (r *countingRepo) Update(context.Context, *domain.Item) error { return nil }
func (r *countingRepo) Delete(context.Context, int64) error        { return nil }

func (r *countingRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paginates
}

func newCountingRepo() *countingRepo {
	desc := "Brass desk lamp"
	return &countingRepo{page: domain.ItemPage{
		Items: []domain.Item{{
			ID:          1,
			Name:        "Lamp",
			Description: &desc,
			PriceCents:  1999,
			Stock:       2,
			CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
		Total: 1,
	}}
}

func TestCachedItemRepository_ServesFromCache(t *testing.T) {
	inner := newCountingRepo()
	store := cache.NewMemoryStore()
	repo := NewCachedItemRepository(inner, store, time.Minute, logger.Discard())
	ctx := context.Background()
	f := domain.NewFilter(domain.FilterParams{Category: "Lighting"})

	first, err := repo.Paginate(ctx, f)
	require.NoError(t, err)
	second, err := repo.Paginate(ctx, f)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls())
	assert.Equal(t, first.Total, second.Total)
	require.Len(t, second.Items, 1)
	assert.Equal(t, first.Items[0].Name, second.Items[0].Name)
	assert.Equal(t, *first.Items[0].Description, *second.Items[0].Description)
	assert.True(t, first.Items[0].UpdatedAt.Equal(second.Items[0].UpdatedAt))
	assert.Equal(t, int64(1999), second.Items[0].PriceCents)
	assert.Equal(t, 1, store.Len())
}

func TestCachedItemRepository_WritesFlushTag(t *testing.T) {
	inner := newCountingRepo()
	repo := NewCachedItemRepository(inner, cache.NewMemoryStore(), time.Minute, logger.Discard())
	ctx := context.Background()
	f := domain.NewFilter(domain.FilterParams{})

	writes := []func() error{
		func() error { return repo.Create(ctx, &domain.Item{Name: "new"}) },
		func() error { return repo.Update(ctx, &domain.Item{ID: 1, Name: "renamed"}) },
		func() error { return repo.Delete(ctx, 1) },
	}
	for i, write := range writes {
		_, err := repo.Paginate(ctx, f)
		require.NoError(t, err)
		require.NoError(t, write())
		_, err = repo.Paginate(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, 2*(i+1), inner.calls(), "write %d must invalidate", i)
	}
}

func TestCachedItemRepository_Invalidate(t *testing.T) {
	inner := newCountingRepo()
	store := cache.NewMemoryStore()
	repo := NewCachedItemRepository(inner, store, time.Minute, logger.Discard())
	ctx := context.Background()

	_, _ = repo.Paginate(ctx, domain.NewFilter(domain.FilterParams{Page: 1}))
	_, _ = repo.Paginate(ctx, domain.NewFilter(domain.FilterParams{Page: 2}))
	require.Equal(t, 2, store.Len())

	require.NoError(t, repo.Invalidate(ctx))
	assert.Zero(t, store.Len())
}

func TestCachedItemRepository_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := newCountingRepo()
	store := cache.NewMemoryStore(cache.WithClock(func() time.Time { return now }))
	repo := NewCachedItemRepository(inner, store, 0, logger.Discard())
	ctx := context.Background()
	f := domain.NewFilter(domain.FilterParams{})

	_, _ = repo.Paginate(ctx, f)
	now = now.Add(DefaultResultCacheTTL - time.Second)
	_, _ = repo.Paginate(ctx, f)
	assert.Equal(t, 1, inner.calls())

	now = now.Add(2 * time.Second)
	_, _ = repo.Paginate(ctx, f)
	assert.Equal(t, 2, inner.calls())
}

// plainStore supports no tags.
type plainStore struct{ cache.Store }

func TestCachedItemRepository_BypassWithoutTags(t *testing.T) {
	inner := newCountingRepo()
	repo := NewCachedItemRepository(inner, plainStore{cache.NewMemoryStore()}, time.Minute, logger.Discard())
	ctx := context.Background()
	f := domain.NewFilter(domain.FilterParams{})

	assert.False(t, repo.Enabled())
	_, _ = repo.Paginate(ctx, f)
	_, _ = repo.Paginate(ctx, f)
	assert.Equal(t, 2, inner.calls())
	assert.NoError(t, repo.Invalidate(ctx))
}

func TestCachedItemRepository_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := newCountingRepo()
	repo := NewCachedItemRepository(inner, cache.NewRedisStore(client, "catalog:"), time.Minute, logger.Discard())
	ctx := context.Background()
	f := domain.NewFilter(domain.FilterParams{Search: "lamp"})

	_, err := repo.Paginate(ctx, f)
	require.NoError(t, err)
	assert.True(t, mr.Exists("catalog:"+ResultCacheKey(f)))

	require.NoError(t, repo.Invalidate(ctx))
	assert.False(t, mr.Exists("catalog:"+ResultCacheKey(f)))

	_, err = repo.Paginate(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls())
}

func TestCachedItemRepository_StoreDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	inner := newCountingRepo()
	repo := NewCachedItemRepository(inner, cache.NewRedisStore(client, ""), time.Minute, logger.Discard())

	page, err := repo.Paginate(context.Background(), domain.NewFilter(domain.FilterParams{}))
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, inner.calls())
}

func TestResultCacheKey(t *testing.T) {
	a := domain.NewFilter(domain.FilterParams{Categories: []string{"Lamps", "desks"}, Search: " lamp "})
	b := domain.NewFilter(domain.FilterParams{Categories: []string{"Desks", "lamps"}, Search: "lamp"})
	c := domain.NewFilter(domain.FilterParams{Categories: []string{"Desks", "lamps"}, Search: "lamp", Page: 2})

	assert.Equal(t, ResultCacheKey(a), ResultCacheKey(b))
	assert.NotEqual(t, ResultCacheKey(a), ResultCacheKey(c))
	assert.Regexp(t, `^catalog_items:[0-9a-f]+$`, ResultCacheKey(a))
}
