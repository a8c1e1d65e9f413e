package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/pagination"
)

// dateLayout is the format of the from and to audit filters.
const dateLayout = "2006-01-02"

// AuditService is the audit trail surface the audit handler needs.
type AuditService interface {
	List(ctx context.Context, f domain.AuditFilter) (*domain.AuditPage, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	service AuditService
	logger  *slog.Logger
}

// NewAuditHandler creates a new audit HTTP handler.
func NewAuditHandler(svc AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{service: svc, logger: logger}
}

// ListAuditLogs handles GET /api/v1/audit-logs
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		httputil.WriteBadParameter(w, r, err.Error())
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(page.Entries, page.Total, pagination.Params{
		Page:    page.Page,
		PerPage: page.PerPage,
	}))
}

func parseAuditFilter(q url.Values) (domain.AuditFilter, error) {
	page, err := pagination.Parse(q, domain.DefaultPerPage)
	if err != nil {
		return domain.AuditFilter{}, err
	}
	f := domain.AuditFilter{Page: page.Page, PerPage: page.PerPage}

	if v := q.Get("subject_type"); v != "" {
		f.SubjectType = &v
	}
	if v := q.Get("subject_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return f, errors.New("subject_id must be a positive integer")
		}
		f.SubjectID = &id
	}
	if v := q.Get("action"); v != "" {
		if !domain.IsValidAuditAction(v) {
			return f, errors.New("action must be one of: create, update, delete")
		}
		action := domain.AuditAction(v)
		f.Action = &action
	}
	if v := q.Get("user_id"); v != "" {
		f.UserID = &v
	}
	if f.From, err = parseDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func parseDate(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, errors.New(name + " must be a date formatted as YYYY-MM-DD")
	}
	return &t, nil
}
