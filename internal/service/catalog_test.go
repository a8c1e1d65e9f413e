package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/search"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// --- Mocks ---

type mockItemRepository struct {
	mock.Mock
}

func (m *mockItemRepository) Create(ctx context.Context, item *domain.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockItemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *mockItemRepository) FindByIDs(ctx context.Context, ids []int64) ([]domain.Item, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.Item), args.Error(1)
}

func (m *mockItemRepository) Update(ctx context.Context, item *domain.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockItemRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockItemRepository) Paginate(ctx context.Context, f domain.Filter) (*domain.ItemPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ItemPage), args.Error(1)
}

func (m *mockItemRepository) Chunk(ctx context.Context, afterID int64, limit int) ([]domain.Item, error) {
	args := m.Called(ctx, afterID, limit)
	return args.Get(0).([]domain.Item), args.Error(1)
}

func (m *mockItemRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Search(ctx context.Context, f domain.Filter) (*domain.SearchResult, search.Reason, error) {
	args := m.Called(ctx, f)
	var result *domain.SearchResult
	if r := args.Get(0); r != nil {
		result = r.(*domain.SearchResult)
	}
	return result, args.Get(1).(search.Reason), args.Error(2)
}

type mockHealth struct {
	mock.Mock
}

func (m *mockHealth) RecordFailure(ctx context.Context, reason search.Reason, attrs ...slog.Attr) {
	m.Called(ctx, reason)
}

func (m *mockHealth) RecordSuccess(ctx context.Context) {
	m.Called(ctx)
}

// recordingCache records the order of invalidations relative to queries.
type recordingCache struct {
	calls *[]string
	err   error
}

func (c *recordingCache) Invalidate(context.Context) error {
	*c.calls = append(*c.calls, "invalidate")
	return c.err
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) ItemCreated(ctx context.Context, item domain.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockPublisher) ItemUpdated(ctx context.Context, before, after domain.Item) error {
	return m.Called(ctx, before, after).Error(0)
}

func (m *mockPublisher) ItemDeleted(ctx context.Context, item domain.Item) error {
	return m.Called(ctx, item).Error(0)
}

// --- Helpers ---

type fixture struct {
	repo   *mockItemRepository
	engine *mockEngine
	health *mockHealth
	events *mockPublisher
	calls  []string
	svc    *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   &mockItemRepository{},
		engine: &mockEngine{},
		health: &mockHealth{},
		events: &mockPublisher{},
	}
	f.svc = NewCatalogService(f.repo, f.engine, f.health, &recordingCache{calls: &f.calls}, f.events, logger.Discard())
	t.Cleanup(func() {
		f.repo.AssertExpectations(t)
		f.engine.AssertExpectations(t)
		f.health.AssertExpectations(t)
		f.events.AssertExpectations(t)
	})
	return f
}

// expectPaginate records the relational query in the shared call log.
func (f *fixture) expectPaginate(page *domain.ItemPage) {
	f.repo.On("Paginate", mock.Anything, mock.AnythingOfType("domain.Filter")).
		Run(func(mock.Arguments) { f.calls = append(f.calls, "paginate") }).
		Return(page, nil).Once()
}

func strPtr(s string) *string { return &s }

func relationalPage() *domain.ItemPage {
	return &domain.ItemPage{Items: []domain.Item{{ID: 1, Name: "Lamp"}}, Total: 1, Page: 1, PerPage: 15}
}

// --- List ---

func TestList_BlankTermNeverContactsEngine(t *testing.T) {
	for _, term := range []string{"", "   "} {
		f := newFixture(t)
		f.expectPaginate(relationalPage())

		result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: term}))

		require.NoError(t, err)
		assert.Equal(t, domain.OriginRelational, result.Origin)
		assert.Nil(t, result.MaxScore)
		assert.Empty(t, result.Suggestions)
		assert.Equal(t, []string{"paginate"}, f.calls)
		f.engine.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	}
}

func TestList_EngineSuccess(t *testing.T) {
	f := newFixture(t)
	score := 3.2
	served := &domain.SearchResult{Origin: domain.OriginEngine, Items: []domain.Item{{ID: 7}, {ID: 3}}, Total: 2, MaxScore: &score}
	f.engine.On("Search", mock.Anything, mock.MatchedBy(func(fl domain.Filter) bool {
		return fl.Term() == "lamp" && *fl.Search == "lamp"
	})).Return(served, search.ReasonNone, nil).Once()
	f.health.On("RecordSuccess", mock.Anything).Once()

	result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "  lamp  "}))

	require.NoError(t, err)
	assert.Same(t, served, result)
	assert.Empty(t, f.calls, "success leaves the cache alone")
	f.repo.AssertNotCalled(t, "Paginate", mock.Anything, mock.Anything)
}

func TestList_DegradedReasonsFlushOnceBeforeFallback(t *testing.T) {
	for _, reason := range []search.Reason{search.ReasonIndexUnavailable, search.ReasonIndexMissing, search.ReasonNoNodeAvailable} {
		t.Run(string(reason), func(t *testing.T) {
			f := newFixture(t)
			f.engine.On("Search", mock.Anything, mock.Anything).Return(nil, reason, nil).Once()
			f.health.On("RecordFailure", mock.Anything, reason).Once()
			f.expectPaginate(relationalPage())

			result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "lamp"}))

			require.NoError(t, err)
			assert.Equal(t, domain.OriginRelational, result.Origin)
			assert.Equal(t, []string{"invalidate", "paginate"}, f.calls)
		})
	}
}

func TestList_EmptySearchHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.engine.On("Search", mock.Anything, mock.Anything).Return(nil, search.ReasonEmptySearch, nil).Once()
	f.expectPaginate(relationalPage())

	result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "lamp"}))

	require.NoError(t, err)
	assert.Equal(t, domain.OriginRelational, result.Origin)
	assert.Equal(t, []string{"paginate"}, f.calls)
	f.health.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything)
	f.health.AssertNotCalled(t, "RecordSuccess", mock.Anything)
}

func TestList_EngineErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.engine.On("Search", mock.Anything, mock.Anything).
		Return(nil, search.ReasonNone, &search.ResponseError{Op: "search", Status: 400}).Once()

	result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "lamp"}))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, f.calls)
}

func TestList_CacheFlushFailureStillFallsBack(t *testing.T) {
	f := newFixture(t)
	f.svc.results = &recordingCache{calls: &f.calls, err: errors.New("redis down")}
	f.engine.On("Search", mock.Anything, mock.Anything).Return(nil, search.ReasonNoNodeAvailable, nil).Once()
	f.health.On("RecordFailure", mock.Anything, search.ReasonNoNodeAvailable).Once()
	f.expectPaginate(relationalPage())

	result, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "lamp"}))

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
}

func TestList_WithoutResultCache(t *testing.T) {
	f := newFixture(t)
	f.svc.results = nil
	f.engine.On("Search", mock.Anything, mock.Anything).Return(nil, search.ReasonIndexMissing, nil).Once()
	f.health.On("RecordFailure", mock.Anything, search.ReasonIndexMissing).Once()
	f.expectPaginate(relationalPage())

	_, err := f.svc.List(context.Background(), domain.NewFilter(domain.FilterParams{Search: "lamp"}))
	require.NoError(t, err)
}

// --- Writes ---

func TestCreate(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Item")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Item).ID = 12 }).
		Return(nil).Once()
	f.events.On("ItemCreated", mock.Anything, mock.MatchedBy(func(it domain.Item) bool { return it.ID == 12 })).Return(nil).Once()

	item, err := f.svc.Create(context.Background(), CreateItemInput{Name: " Lamp ", Category: strPtr("  "), PriceCents: 990, Stock: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(12), item.ID)
	assert.Equal(t, "Lamp", item.Name)
	assert.Nil(t, item.Category)
}

func TestCreate_Validation(t *testing.T) {
	tests := []CreateItemInput{
		{Name: ""},
		{Name: "x", PriceCents: -1},
		{Name: "x", Stock: -1},
	}
	for _, in := range tests {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestCreate_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.events.On("ItemCreated", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	_, err := f.svc.Create(context.Background(), CreateItemInput{Name: "Lamp"})
	assert.NoError(t, err)
}

func TestCreate_RepositoryErrorPublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := f.svc.Create(context.Background(), CreateItemInput{Name: "Lamp"})
	require.Error(t, err)
	f.events.AssertNotCalled(t, "ItemCreated", mock.Anything, mock.Anything)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	before := &domain.Item{ID: 4, Name: "Lamp", PriceCents: 1000, Stock: 3}
	f.repo.On("GetByID", mock.Anything, int64(4)).Return(before, nil).Once()
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(it *domain.Item) bool {
		return it.ID == 4 && it.Stock == 0 && it.Name == "Lamp"
	})).Return(nil).Once()
	f.events.On("ItemUpdated", mock.Anything, *before, mock.MatchedBy(func(it domain.Item) bool { return it.Stock == 0 })).Return(nil).Once()

	stock := 0
	item, err := f.svc.Update(context.Background(), 4, UpdateItemInput{Stock: &stock})

	require.NoError(t, err)
	assert.Equal(t, 0, item.Stock)
	assert.Equal(t, 3, before.Stock, "the loaded item is not mutated")
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	f := newFixture(t)
	loaded := &domain.Item{ID: 4, Name: "Lamp", Category: strPtr("Lighting"), PriceCents: 1000, Stock: 3}
	f.repo.On("GetByID", mock.Anything, int64(4)).Return(loaded, nil).Once()

	stock, price := 3, int64(1000)
	item, err := f.svc.Update(context.Background(), 4, UpdateItemInput{
		Name:       strPtr(" Lamp "),
		Category:   strPtr("Lighting"),
		PriceCents: &price,
		Stock:      &stock,
	})

	require.NoError(t, err)
	assert.Equal(t, *loaded, *item)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "ItemUpdated", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	f.repo.On("GetByID", mock.Anything, int64(9)).Return(nil, apperrors.NotFound("catalog item", 9)).Once()

	_, err := f.svc.Update(context.Background(), 9, UpdateItemInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	f.repo.On("GetByID", mock.Anything, int64(4)).Return(&domain.Item{ID: 4, Name: "Lamp"}, nil).Once()

	_, err := f.svc.Update(context.Background(), 4, UpdateItemInput{Name: strPtr("  ")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	item := &domain.Item{ID: 4, Name: "Lamp"}
	f.repo.On("GetByID", mock.Anything, int64(4)).Return(item, nil).Once()
	f.repo.On("Delete", mock.Anything, int64(4)).Return(nil).Once()
	f.events.On("ItemDeleted", mock.Anything, *item).Return(nil).Once()

	require.NoError(t, f.svc.Delete(context.Background(), 4))
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	f.repo.On("GetByID", mock.Anything, int64(404)).Return(nil, apperrors.NotFound("catalog item", 404)).Once()

	_, err := f.svc.Get(context.Background(), 404)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}
