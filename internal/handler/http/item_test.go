package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/service"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// =============================================================================
// Mock ItemService
// =============================================================================

type mockItemService struct {
	mock.Mock
}

func (m *mockItemService) List(ctx context.Context, f domain.Filter) (*domain.SearchResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResult), args.Error(1)
}

func (m *mockItemService) Get(ctx context.Context, id int64) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *mockItemService) Create(ctx context.Context, in service.CreateItemInput) (*domain.Item, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *mockItemService) Update(ctx context.Context, id int64, in service.UpdateItemInput) (*domain.Item, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *mockItemService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// =============================================================================
// Test helpers
// =============================================================================

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func sampleItem(id int64, name string) domain.Item {
	return domain.Item{
		ID:          id,
		Name:        name,
		Description: strPtr("warm light"),
		Category:    strPtr("Lighting"),
		PriceCents:  1999,
		Stock:       3,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
}

func newItemRouter(svc ItemService) http.Handler {
	h := NewItemHandler(svc, logger.Discard())
	r := chi.NewRouter()
	r.Get("/api/v1/items", h.ListItems)
	r.Get("/api/v1/items/{id}", h.GetItem)
	r.Post("/api/v1/items", h.CreateItem)
	r.Put("/api/v1/items/{id}", h.UpdateItem)
	r.Delete("/api/v1/items/{id}", h.DeleteItem)
	return r
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func record(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return record(h, newJSONRequest(method, target, body))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// =============================================================================
// ListItems
// =============================================================================

func TestListItems_EngineResultCarriesSearchMeta(t *testing.T) {
	svc := new(mockItemService)
	result := &domain.SearchResult{
		Origin:      domain.OriginEngine,
		Items:       []domain.Item{sampleItem(7, "Desk Lamp"), sampleItem(3, "Lamp Shade")},
		Total:       2,
		Page:        1,
		PerPage:     15,
		MaxScore:    floatPtr(9.1),
		Suggestions: []string{"desk lamp", "lamp shade"},
		Highlights:  map[int64]map[string]string{7: {"name": "Desk <em>Lamp</em>"}},
	}
	svc.On("List", mock.Anything, mock.Anything).Return(result, nil)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items?search=lamp", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, float64(7), first["id"])
	assert.Equal(t, 19.99, first["price"])
	assert.Equal(t, true, first["available"])
	assert.Equal(t, "Desk <em>Lamp</em>", first["highlight"].(map[string]any)["name"])
	assert.NotContains(t, data[1].(map[string]any), "highlight")

	search := body["meta"].(map[string]any)["search"].(map[string]any)
	assert.Equal(t, "elasticsearch", search["engine"])
	assert.Equal(t, []any{"desk lamp", "lamp shade"}, search["suggestions"])
	assert.Equal(t, 9.1, search["max_score"])
	assert.Equal(t, float64(2), body["total_count"])
}

func TestListItems_EngineResultWithoutScore(t *testing.T) {
	svc := new(mockItemService)
	svc.On("List", mock.Anything, mock.Anything).Return(&domain.SearchResult{
		Origin: domain.OriginEngine, Items: []domain.Item{}, Page: 1, PerPage: 15,
	}, nil)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items?search=zzz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	search := decodeBody(t, rec)["meta"].(map[string]any)["search"].(map[string]any)
	assert.Equal(t, []any{}, search["suggestions"])
	assert.NotContains(t, search, "max_score")
}

func TestListItems_RelationalResultHasNoMeta(t *testing.T) {
	svc := new(mockItemService)
	svc.On("List", mock.Anything, mock.Anything).
		Return(domain.FromPage(&domain.ItemPage{Items: []domain.Item{sampleItem(1, "Chair")}, Total: 31, Page: 2, PerPage: 15}), nil)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items?page=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotContains(t, body, "meta")
	assert.Equal(t, float64(3), body["total_pages"])
	assert.Equal(t, true, body["has_next"])
	assert.Equal(t, true, body["has_prev"])
}

func TestListItems_ParsesFilter(t *testing.T) {
	svc := new(mockItemService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f domain.Filter) bool {
		return f.Term() == "lamp" &&
			f.CategoryTerm() == "lighting" &&
			assert.ObjectsAreEqual([]string{"books", "home", "garden"}, f.CategoryTerms()) &&
			f.MinPriceCents != nil && *f.MinPriceCents == 1050 &&
			f.MaxPriceCents != nil && *f.MaxPriceCents == 9999 &&
			f.Available != nil && !*f.Available &&
			f.Sort == domain.SortPrice && f.SortExplicit &&
			f.Order == domain.OrderDesc &&
			f.Page == 3 && f.PerPage == 20
	})).Return(domain.FromPage(&domain.ItemPage{Page: 3, PerPage: 20}), nil)

	target := "/api/v1/items?search=lamp&category=Lighting&categories=Books,%20Home&categories=Garden" +
		"&min_price=10.50&max_price=99.99&available=false&sort=price&order=desc&page=3&per_page=20"
	rec := serve(t, newItemRouter(svc), http.MethodGet, target, "")

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListItems_RejectsMalformedQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown sort", "sort=popularity"},
		{"unknown order", "order=sideways"},
		{"bad available", "available=maybe"},
		{"negative price", "min_price=-1"},
		{"non numeric price", "max_price=cheap"},
		{"inverted price range", "min_price=50&max_price=10"},
		{"page zero", "page=0"},
		{"per_page too large", "per_page=500"},
		{"long category", "category=" + strings.Repeat("x", 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockItemService)
			rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items?"+tt.query, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_PARAMETER", decodeErrorBody(t, rec).Code)
			svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
		})
	}
}

func TestListItems_ServiceError(t *testing.T) {
	svc := new(mockItemService)
	svc.On("List", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items?search=lamp", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeErrorBody(t, rec).Code)
}

// =============================================================================
// GetItem
// =============================================================================

func TestGetItem(t *testing.T) {
	svc := new(mockItemService)
	item := sampleItem(5, "Desk")
	svc.On("Get", mock.Anything, int64(5)).Return(&item, nil)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items/5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Desk", data["name"])
	assert.Equal(t, "Lighting", data["category"])
	assert.Equal(t, "2025-03-01T12:00:00Z", data["created_at"])
}

func TestGetItem_NotFound(t *testing.T) {
	svc := new(mockItemService)
	svc.On("Get", mock.Anything, int64(404)).Return(nil, apperrors.NotFound("catalog item", 404))

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items/404", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorBody(t, rec).Code)
}

func TestGetItem_InvalidID(t *testing.T) {
	svc := new(mockItemService)

	rec := serve(t, newItemRouter(svc), http.MethodGet, "/api/v1/items/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

// =============================================================================
// CreateItem
// =============================================================================

func TestCreateItem(t *testing.T) {
	svc := new(mockItemService)
	created := sampleItem(11, "Floor Lamp")
	created.PriceCents = 4550
	created.Stock = 0
	svc.On("Create", mock.Anything, service.CreateItemInput{
		Name:        "Floor Lamp",
		Description: strPtr("tall"),
		Category:    strPtr("Lighting"),
		PriceCents:  4550,
		Stock:       0,
	}).Return(&created, nil)

	body := `{"name":"Floor Lamp","description":"tall","price":45.5,"category":"Lighting","stock":0}`
	rec := serve(t, newItemRouter(svc), http.MethodPost, "/api/v1/items", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(11), data["id"])
	assert.Equal(t, 45.5, data["price"])
	assert.Equal(t, false, data["available"])
	svc.AssertExpectations(t)
}

func TestCreateItem_ValidationError(t *testing.T) {
	svc := new(mockItemService)

	rec := serve(t, newItemRouter(svc), http.MethodPost, "/api/v1/items", `{"name":"","price":-1,"stock":2}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeErrorBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errBody.Code)
	assert.Contains(t, errBody.Fields, "name")
	assert.Contains(t, errBody.Fields, "price")
	assert.Contains(t, errBody.Fields, "description")
	assert.Contains(t, errBody.Fields, "category")
	assert.NotContains(t, errBody.Fields, "stock")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateItem_MalformedBody(t *testing.T) {
	svc := new(mockItemService)

	for _, body := range []string{`{"name":`, `{"name":"x","color":"red"}`} {
		rec := serve(t, newItemRouter(svc), http.MethodPost, "/api/v1/items", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", decodeErrorBody(t, rec).Code)
	}
}

// =============================================================================
// UpdateItem / DeleteItem
// =============================================================================

func TestUpdateItem_ConvertsPrice(t *testing.T) {
	svc := new(mockItemService)
	updated := sampleItem(4, "Lamp")
	updated.PriceCents = 1250
	svc.On("Update", mock.Anything, int64(4), mock.MatchedBy(func(in service.UpdateItemInput) bool {
		return in.Name == nil && in.PriceCents != nil && *in.PriceCents == 1250 &&
			in.Stock != nil && *in.Stock == 8
	})).Return(&updated, nil)

	rec := serve(t, newItemRouter(svc), http.MethodPut, "/api/v1/items/4", `{"price":12.5,"stock":8}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.5, decodeBody(t, rec)["data"].(map[string]any)["price"])
	svc.AssertExpectations(t)
}

func TestUpdateItem_RejectsEmptyName(t *testing.T) {
	svc := new(mockItemService)

	rec := serve(t, newItemRouter(svc), http.MethodPut, "/api/v1/items/4", `{"name":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorBody(t, rec).Code)
}

func TestDeleteItem(t *testing.T) {
	svc := new(mockItemService)
	svc.On("Delete", mock.Anything, int64(9)).Return(nil)

	rec := serve(t, newItemRouter(svc), http.MethodDelete, "/api/v1/items/9", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteItem_NotFound(t *testing.T) {
	svc := new(mockItemService)
	svc.On("Delete", mock.Anything, int64(9)).Return(apperrors.NotFound("catalog item", 9))

	rec := serve(t, newItemRouter(svc), http.MethodDelete, "/api/v1/items/9", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
