package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

const itemColumns = `id, name, description, category, price_cents, stock, created_at, updated_at`

// sortColumns maps whitelisted sort fields to columns.
var sortColumns = map[domain.SortField]string{
	domain.SortName:      "name",
	domain.SortPrice:     "price_cents",
	domain.SortCategory:  "category",
	domain.SortStock:     "stock",
	domain.SortCreatedAt: "created_at",
}

// ItemRepository implements repository.ItemRepository using PostgreSQL.
type ItemRepository struct {
	db database.DBTX
}

// NewItemRepository creates a PostgreSQL-backed item repository.
func NewItemRepository(db database.DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) (err error) {
	query := `
		INSERT INTO catalog_items (name, description, category, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateItem", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query,
		item.Name,
		item.Description,
		item.Category,
		item.PriceCents,
		item.Stock,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("insert catalog item: %w", err)
	}
	return nil
}

// GetByID retrieves an item by its id.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (_ *domain.Item, err error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetItem", query)
	defer func() { end(err) }()

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("catalog item", id)
		}
		return nil, fmt.Errorf("get catalog item %d: %w", id, err)
	}
	return &item, nil
}

// FindByIDs returns the existing items among ids.
func (r *ItemRepository) FindByIDs(ctx context.Context, ids []int64) (_ []domain.Item, err error) {
	if len(ids) == 0 {
		return []domain.Item{}, nil
	}
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = ANY($1)`

	ctx, end := database.TraceQuery(ctx, "FindItemsByIDs", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("find catalog items: %w", err)
	}
	items, _, err := collectItems(rows, false)
	return items, err
}

// Update overwrites the editable attributes of item.
func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) (err error) {
	query := `
		UPDATE catalog_items
		SET name = $1, description = $2, category = $3, price_cents = $4, stock = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateItem", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		item.Name,
		item.Description,
		item.Category,
		item.PriceCents,
		item.Stock,
		item.ID,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("catalog item", item.ID)
		}
		return fmt.Errorf("update catalog item %d: %w", item.ID, err)
	}
	return nil
}

// Delete removes an item.
func (r *ItemRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM catalog_items WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteItem", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete catalog item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("catalog item", id)
	}
	return nil
}

// Paginate lists the items matching f. The search term matches name,
// description or category case-insensitively.
func (r *ItemRepository) Paginate(ctx context.Context, f domain.Filter) (_ *domain.ItemPage, err error) {
	f = f.Normalize()
	where, args := itemConditions(f)

	order := sortColumns[f.Sort]
	direction := "ASC"
	if f.Order == domain.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM catalog_items
		%s
		ORDER BY %s %s, id ASC
		LIMIT $%d OFFSET $%d`,
		itemColumns, where, order, direction, len(args)+1, len(args)+2,
	)

	ctx, end := database.TraceQuery(ctx, "PaginateItems", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, f.PerPage, f.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("paginate catalog items: %w", err)
	}
	items, total, err := collectItems(rows, true)
	if err != nil {
		return nil, err
	}

	// A page past the end has no rows to carry the window count.
	if len(items) == 0 && f.Page > 1 {
		countQuery := `SELECT count(*) FROM catalog_items ` + where
		if err = r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count catalog items: %w", err)
		}
	}

	return &domain.ItemPage{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Chunk returns up to limit items after afterID in id order.
func (r *ItemRepository) Chunk(ctx context.Context, afterID int64, limit int) (_ []domain.Item, err error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id > $1 ORDER BY id ASC LIMIT $2`

	ctx, end := database.TraceQuery(ctx, "ChunkItems", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("chunk catalog items: %w", err)
	}
	items, _, err := collectItems(rows, false)
	return items, err
}

// Count returns the number of stored items.
func (r *ItemRepository) Count(ctx context.Context) (n int, err error) {
	query := `SELECT count(*) FROM catalog_items`

	ctx, end := database.TraceQuery(ctx, "CountItems", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog items: %w", err)
	}
	return n, nil
}

// InsertBatch inserts items with one multi-row statement and returns the
// number of rows written. Ids and timestamps are assigned by the database.
func (r *ItemRepository) InsertBatch(ctx context.Context, items []domain.Item) (n int, err error) {
	if len(items) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO catalog_items (name, description, category, price_cents, stock) VALUES ")
	args := make([]any, 0, len(items)*5)
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, it.Name, it.Description, it.Category, it.PriceCents, it.Stock)
	}
	query := sb.String()

	ctx, end := database.TraceQuery(ctx, "InsertItemBatch", "INSERT INTO catalog_items ... VALUES (batch)")
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert catalog item batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// categoryTermExpr normalizes the stored category the same way
// domain.NormalizeCategory does: lowercased, trimmed, inner whitespace
// collapsed to one space.
const categoryTermExpr = `regexp_replace(LOWER(TRIM(category)), '\s+', ' ', 'g')`

// itemConditions builds the WHERE clause of f and its positional args.
func itemConditions(f domain.Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	if term := f.Term(); term != "" {
		n := next("%" + escapeLike(strings.ToLower(term)) + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(COALESCE(description, '')) LIKE $%d OR LOWER(COALESCE(category, '')) LIKE $%d)",
			n, n, n,
		))
	}

	if c := f.CategoryTerm(); c != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", categoryTermExpr, next(c)))
	}

	if cs := f.CategoryTerms(); len(cs) > 0 {
		conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", categoryTermExpr, next(cs)))
	}

	if f.MinPriceCents != nil {
		conditions = append(conditions, fmt.Sprintf("price_cents >= $%d", next(*f.MinPriceCents)))
	}

	if f.MaxPriceCents != nil {
		conditions = append(conditions, fmt.Sprintf("price_cents <= $%d", next(*f.MaxPriceCents)))
	}

	if f.Available != nil {
		if *f.Available {
			conditions = append(conditions, "stock > 0")
		} else {
			conditions = append(conditions, "stock <= 0")
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(
		&it.ID,
		&it.Name,
		&it.Description,
		&it.Category,
		&it.PriceCents,
		&it.Stock,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

// collectItems drains rows. withTotal expects a trailing window count.
func collectItems(rows pgx.Rows, withTotal bool) ([]domain.Item, int, error) {
	defer rows.Close()

	items := []domain.Item{}
	total := 0
	for rows.Next() {
		var it domain.Item
		dest := []any{
			&it.ID,
			&it.Name,
			&it.Description,
			&it.Category,
			&it.PriceCents,
			&it.Stock,
			&it.CreatedAt,
			&it.UpdatedAt,
		}
		if withTotal {
			dest = append(dest, &total)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan catalog item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate catalog item rows: %w", err)
	}
	return items, total, nil
}
