package repository

import (
	"context"

	"github.com/utafrali/catalog-search/internal/domain"
)

// ItemRepository is the relational store of catalog items. It is the
// source of truth; the search index is rebuilt from it.
type ItemRepository interface {
	// Create inserts item and fills in its id and timestamps.
	Create(ctx context.Context, item *domain.Item) error

	// GetByID returns the item or an apperrors NotFound error.
	GetByID(ctx context.Context, id int64) (*domain.Item, error)

	// FindByIDs returns the items that exist, in no particular order.
	FindByIDs(ctx context.Context, ids []int64) ([]domain.Item, error)

	// Update overwrites the editable attributes of item and refreshes its
	// timestamps.
	Update(ctx context.Context, item *domain.Item) error

	Delete(ctx context.Context, id int64) error

	// Paginate lists the items matching f.
	Paginate(ctx context.Context, f domain.Filter) (*domain.ItemPage, error)

	// Chunk returns up to limit items with id > afterID in id order.
	Chunk(ctx context.Context, afterID int64, limit int) ([]domain.Item, error)

	Count(ctx context.Context) (int, error)
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, f domain.AuditFilter) (*domain.AuditPage, error)
}
