package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/pagination"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// EngineName is reported in meta.search when the engine served a listing.
const EngineName = "elasticsearch"

// ItemService is the catalog surface the item handler needs.
type ItemService interface {
	List(ctx context.Context, f domain.Filter) (*domain.SearchResult, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	Create(ctx context.Context, in service.CreateItemInput) (*domain.Item, error)
	Update(ctx context.Context, id int64, in service.UpdateItemInput) (*domain.Item, error)
	Delete(ctx context.Context, id int64) error
}

// ItemHandler handles HTTP requests for catalog items.
type ItemHandler struct {
	service ItemService
	logger  *slog.Logger
}

// NewItemHandler creates a new item HTTP handler.
func NewItemHandler(svc ItemService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateItemRequest is the JSON request body for creating an item.
type CreateItemRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description *string  `json:"description" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Category    *string  `json:"category" validate:"required,max=255"`
	Stock       *int     `json:"stock" validate:"required,gte=0"`
}

// UpdateItemRequest is the JSON request body for updating an item. Every
// field is optional.
type UpdateItemRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Category    *string  `json:"category" validate:"omitempty,max=255"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
}

// --- Response DTOs ---

// ItemResponse is the JSON representation of an item.
type ItemResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Category    *string           `json:"category"`
	Price       float64           `json:"price"`
	Stock       int               `json:"stock"`
	Available   bool              `json:"available"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Highlight   map[string]string `json:"highlight,omitempty"`
}

// SearchMeta describes an engine-served listing.
type SearchMeta struct {
	Engine      string   `json:"engine"`
	Suggestions []string `json:"suggestions"`
	MaxScore    *float64 `json:"max_score,omitempty"`
}

func newItemResponse(item domain.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price(),
		Stock:       item.Stock,
		Available:   item.Available(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// --- Handlers ---

// ListItems handles GET /api/v1/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	params, err := parseFilterParams(r.URL.Query())
	if err != nil {
		httputil.WriteBadParameter(w, r, err.Error())
		return
	}

	result, err := h.service.List(r.Context(), domain.NewFilter(params))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items := make([]ItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		resp := newItemResponse(item)
		resp.Highlight = result.HighlightFor(item.ID)
		items = append(items, resp)
	}

	page := pagination.NewResult(items, result.Total, pagination.Params{Page: result.Page, PerPage: result.PerPage})
	if result.IsEngine() {
		suggestions := result.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		page = page.WithMeta("search", SearchMeta{
			Engine:      EngineName,
			Suggestions: suggestions,
			MaxScore:    result.MaxScore,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// GetItem handles GET /api/v1/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newItemResponse(*item)})
}

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeBodyError(w, r, err, h.logger)
		return
	}

	item, err := h.service.Create(r.Context(), service.CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		PriceCents:  domain.CentsFromPrice(*req.Price),
		Stock:       *req.Stock,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: newItemResponse(*item)})
}

// UpdateItem handles PUT /api/v1/items/{id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req UpdateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeBodyError(w, r, err, h.logger)
		return
	}

	in := service.UpdateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
	}
	if req.Price != nil {
		cents := domain.CentsFromPrice(*req.Price)
		in.PriceCents = &cents
	}

	item, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newItemResponse(*item)})
}

// DeleteItem handles DELETE /api/v1/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Query parsing ---

// parseFilterParams reads the listing query. Malformed values are rejected
// here; unknown-but-harmless values never reach the core.
func parseFilterParams(q url.Values) (domain.FilterParams, error) {
	page, err := pagination.Parse(q, domain.DefaultPerPage)
	if err != nil {
		return domain.FilterParams{}, err
	}

	p := domain.FilterParams{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Page:     page.Page,
		PerPage:  page.PerPage,
	}
	if len(p.Category) > 255 {
		return p, errors.New("category must be at most 255 characters")
	}

	for _, raw := range q["categories"] {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if len(c) > 255 {
				return p, errors.New("categories entries must be at most 255 characters")
			}
			p.Categories = append(p.Categories, c)
		}
	}

	if p.MinPrice, err = parsePrice(q, "min_price"); err != nil {
		return p, err
	}
	if p.MaxPrice, err = parsePrice(q, "max_price"); err != nil {
		return p, err
	}
	if p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice {
		return p, errors.New("min_price must not exceed max_price")
	}

	if v := q.Get("available"); v != "" {
		b, ok := parseBool(v)
		if !ok {
			return p, errors.New("available must be a boolean")
		}
		p.Available = &b
	}

	if v := q.Get("sort"); v != "" {
		if _, ok := domain.ParseSortField(v); !ok {
			return p, errors.New("sort must be one of: name, price, category, stock, created_at")
		}
		p.Sort = v
	}
	if v := q.Get("order"); v != "" {
		switch strings.ToLower(v) {
		case string(domain.OrderAsc), string(domain.OrderDesc):
			p.Order = v
		default:
			return p, errors.New("order must be one of: asc, desc")
		}
	}
	return p, nil
}

func parsePrice(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	price, err := strconv.ParseFloat(v, 64)
	if err != nil || price < 0 {
		return nil, errors.New(name + " must be a non-negative number")
	}
	return &price, nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// writeBodyError answers a request body that failed to decode or validate.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, logger)
		return
	}
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
	})
}
