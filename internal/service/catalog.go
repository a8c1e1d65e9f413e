package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/repository"
	"github.com/utafrali/catalog-search/internal/search"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// SearchEngine runs engine-backed searches.
type SearchEngine interface {
	Search(ctx context.Context, f domain.Filter) (*domain.SearchResult, search.Reason, error)
}

// HealthRecorder records the engine condition.
type HealthRecorder interface {
	RecordFailure(ctx context.Context, reason search.Reason, attrs ...slog.Attr)
	RecordSuccess(ctx context.Context)
}

// ResultCache drops cached relational listings.
type ResultCache interface {
	Invalidate(ctx context.Context) error
}

// MutationPublisher publishes audit and search sync jobs for item writes.
type MutationPublisher interface {
	ItemCreated(ctx context.Context, item domain.Item) error
	ItemUpdated(ctx context.Context, before, after domain.Item) error
	ItemDeleted(ctx context.Context, item domain.Item) error
}

// CatalogService lists catalog items through the search engine, falling
// back to the relational store, and owns item writes.
type CatalogService struct {
	items   repository.ItemRepository
	engine  SearchEngine
	health  HealthRecorder
	results ResultCache
	events  MutationPublisher
	logger  *slog.Logger
}

// NewCatalogService creates a CatalogService. results may be nil when
// listings are not cached.
func NewCatalogService(
	items repository.ItemRepository,
	engine SearchEngine,
	health HealthRecorder,
	results ResultCache,
	events MutationPublisher,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		items:   items,
		engine:  engine,
		health:  health,
		results: results,
		events:  events,
		logger:  logger,
	}
}

// List returns the items matching f. A search term goes to the engine
// first; when the engine cannot serve it the relational store answers.
// Unexpected engine errors are returned.
func (s *CatalogService) List(ctx context.Context, f domain.Filter) (*domain.SearchResult, error) {
	f = f.Normalize()
	term := strings.TrimSpace(f.Term())
	f = f.WithSearch(term)
	if term == "" {
		return s.relational(ctx, f)
	}

	result, reason, err := s.engine.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search catalog items: %w", err)
	}
	if reason == search.ReasonNone {
		s.health.RecordSuccess(ctx)
		return result, nil
	}

	if reason != search.ReasonEmptySearch {
		s.health.RecordFailure(ctx, reason, filterAttrs(f)...)
	}
	if reason.InvalidatesCache() {
		s.invalidate(ctx, reason)
	}
	return s.relational(ctx, f)
}

func (s *CatalogService) relational(ctx context.Context, f domain.Filter) (*domain.SearchResult, error) {
	page, err := s.items.Paginate(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	return domain.FromPage(page), nil
}

func (s *CatalogService) invalidate(ctx context.Context, reason search.Reason) {
	if s.results == nil {
		return
	}
	if err := s.results.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to flush listing cache",
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()),
		)
	}
}

// filterAttrs is the filter subset attached to degraded-search warnings.
func filterAttrs(f domain.Filter) []slog.Attr {
	summary := f.Summary()
	attrs := make([]slog.Attr, 0, len(summary))
	for _, k := range []string{"search", "category", "categories", "min_price", "max_price", "available", "sort", "order"} {
		if v, ok := summary[k]; ok {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	return attrs
}

// CreateItemInput holds the attributes of a new item.
type CreateItemInput struct {
	Name        string
	Description *string
	Category    *string
	PriceCents  int64
	Stock       int
}

// UpdateItemInput holds the attributes to change. Nil fields are kept.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Category    *string
	PriceCents  *int64
	Stock       *int
}

// Get returns one item.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return item, nil
}

// Create stores a new item and publishes its mutation jobs.
func (s *CatalogService) Create(ctx context.Context, in CreateItemInput) (*domain.Item, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if in.PriceCents < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if in.Stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}

	item := &domain.Item{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    trimmed(in.Category),
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create catalog item: %w", err)
	}

	s.publish(ctx, "created", item.ID, s.events.ItemCreated(ctx, *item))
	s.logger.InfoContext(ctx, "catalog item created", slog.Int64("item_id", item.ID))
	return item, nil
}

// Update changes an item and publishes its mutation jobs.
func (s *CatalogService) Update(ctx context.Context, id int64, in UpdateItemInput) (*domain.Item, error) {
	before, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get catalog item for update: %w", err)
	}

	after := *before
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		after.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		after.Description = in.Description
	}
	if in.Category != nil {
		after.Category = trimmed(in.Category)
	}
	if in.PriceCents != nil {
		if *in.PriceCents < 0 {
			return nil, apperrors.InvalidInput("price must not be negative")
		}
		after.PriceCents = *in.PriceCents
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, apperrors.InvalidInput("stock must not be negative")
		}
		after.Stock = *in.Stock
	}

	// An update that changes nothing leaves the row, its updated_at and the
	// indexed document as they are.
	if _, changed := domain.UpdatedPayload(*before, after); !changed {
		s.logger.DebugContext(ctx, "catalog item unchanged", slog.Int64("item_id", after.ID))
		return &after, nil
	}

	if err := s.items.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("update catalog item: %w", err)
	}

	s.publish(ctx, "updated", after.ID, s.events.ItemUpdated(ctx, *before, after))
	s.logger.InfoContext(ctx, "catalog item updated", slog.Int64("item_id", after.ID))
	return &after, nil
}

// Delete removes an item and publishes its mutation jobs.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get catalog item for delete: %w", err)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete catalog item: %w", err)
	}

	s.publish(ctx, "deleted", id, s.events.ItemDeleted(ctx, *item))
	s.logger.InfoContext(ctx, "catalog item deleted", slog.Int64("item_id", id))
	return nil
}

// publish logs a failed publication; the write already committed.
func (s *CatalogService) publish(ctx context.Context, what string, id int64, err error) {
	if err == nil {
		return
	}
	s.logger.ErrorContext(ctx, "failed to publish item "+what+" jobs",
		slog.Int64("item_id", id),
		slog.String("error", err.Error()),
	)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
