package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
)

const auditColumns = `id, action, subject_type, subject_id, data, user_id, created_at`

// AuditRepository implements repository.AuditRepository using PostgreSQL.
type AuditRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewAuditRepository creates a PostgreSQL-backed audit repository.
func NewAuditRepository(db database.DBTX) *AuditRepository {
	return &AuditRepository{db: db, now: time.Now}
}

// Create inserts entry and fills in its id. A zero CreatedAt is set to now.
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) (err error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	var data []byte
	if len(entry.Data) > 0 {
		data = entry.Data
	}

	query := `
		INSERT INTO audit_logs (action, subject_type, subject_id, data, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreateAuditEntry", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query,
		string(entry.Action),
		entry.SubjectType,
		entry.SubjectID,
		data,
		entry.UserID,
		entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the entries matching f, newest first.
func (r *AuditRepository) List(ctx context.Context, f domain.AuditFilter) (_ *domain.AuditPage, err error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = domain.DefaultPerPage
	}
	if f.PerPage > domain.MaxPerPage {
		f.PerPage = domain.MaxPerPage
	}

	var (
		conditions []string
		args       []any
	)
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	if f.SubjectType != nil {
		conditions = append(conditions, fmt.Sprintf("subject_type = $%d", next(*f.SubjectType)))
	}
	if f.SubjectID != nil {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", next(*f.SubjectID)))
	}
	if f.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", next(string(*f.Action))))
	}
	if f.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", next(*f.UserID)))
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", next(startOfDay(*f.From))))
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", next(startOfDay(*f.To).AddDate(0, 0, 1))))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM audit_logs
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		auditColumns, where, len(args)+1, len(args)+2,
	)

	ctx, end := database.TraceQuery(ctx, "ListAuditEntries", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, f.PerPage, (f.Page-1)*f.PerPage)...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	page := &domain.AuditPage{Entries: []domain.AuditEntry{}, Page: f.Page, PerPage: f.PerPage}
	for rows.Next() {
		var (
			e      domain.AuditEntry
			action string
			data   []byte
		)
		if err = rows.Scan(&e.ID, &action, &e.SubjectType, &e.SubjectID, &data, &e.UserID, &e.CreatedAt, &page.Total); err != nil {
			return nil, fmt.Errorf("scan audit entry row: %w", err)
		}
		e.Action = domain.AuditAction(action)
		if len(data) > 0 {
			e.Data = json.RawMessage(data)
		}
		page.Entries = append(page.Entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entry rows: %w", err)
	}
	return page, nil
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
