package search

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
)

// Shared health keys and their lifetimes.
const (
	StatusKey          = "search:engine:status"
	FailureLoggedAtKey = "search:engine:last_failure_logged_at"

	StatusTTL          = 30 * time.Minute
	FailureLogTTL      = 5 * time.Minute
	FailureLogInterval = 300 * time.Second
)

// HealthReporter records the engine condition in the shared store so every
// process sees the same state. Failure warnings are throttled across
// processes through a marker key; recoveries are always logged.
type HealthReporter struct {
	store  cache.Store
	logger *slog.Logger
	now    func() time.Time
}

// HealthOption configures a HealthReporter.
type HealthOption func(*HealthReporter)

// WithHealthClock replaces time.Now.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(r *HealthReporter) { r.now = now }
}

// NewHealthReporter creates a reporter over store.
func NewHealthReporter(store cache.Store, logger *slog.Logger, opts ...HealthOption) *HealthReporter {
	r := &HealthReporter{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordFailure marks the engine unhealthy and logs a warning unless one
// was logged in the last FailureLogInterval. Store errors are logged.
func (r *HealthReporter) RecordFailure(ctx context.Context, reason Reason, attrs ...slog.Attr) {
	now := r.now()
	state := domain.HealthState{
		Status:    domain.HealthUnhealthy,
		Reason:    string(reason),
		Timestamp: now.UTC(),
	}
	if err := cache.SetJSON(ctx, r.store, StatusKey, state, StatusTTL); err != nil {
		r.storeError(ctx, "write search health state", err)
	}
	searchHealthReports.WithLabelValues(string(domain.HealthUnhealthy)).Inc()

	if !r.shouldLogFailure(ctx, now) {
		return
	}
	marker := []byte(strconv.FormatInt(now.Unix(), 10))
	if err := r.store.Set(ctx, FailureLoggedAtKey, marker, FailureLogTTL); err != nil {
		r.storeError(ctx, "write search failure log marker", err)
	}

	attrs = append(attrs,
		slog.String("status", string(state.Status)),
		slog.String("reason", state.Reason),
		slog.Time("timestamp", state.Timestamp),
	)
	r.logger.LogAttrs(ctx, slog.LevelWarn, "search engine unavailable, falling back to relational store", attrs...)
}

// RecordSuccess marks the engine healthy and logs once when it recovers
// from an unhealthy state.
func (r *HealthReporter) RecordSuccess(ctx context.Context) {
	previous, err := r.State(ctx)
	if err != nil {
		r.storeError(ctx, "read search health state", err)
	}

	state := domain.HealthState{Status: domain.HealthHealthy, Timestamp: r.now().UTC()}
	if err := cache.SetJSON(ctx, r.store, StatusKey, state, StatusTTL); err != nil {
		r.storeError(ctx, "write search health state", err)
	}
	searchHealthReports.WithLabelValues(string(domain.HealthHealthy)).Inc()

	if previous != nil && previous.Status == domain.HealthUnhealthy {
		r.logger.InfoContext(ctx, "search engine recovered",
			slog.String("previous_reason", previous.Reason),
		)
	}
}

// State returns the last recorded state, or nil when none is stored.
func (r *HealthReporter) State(ctx context.Context) (*domain.HealthState, error) {
	var state domain.HealthState
	if err := cache.GetJSON(ctx, r.store, StatusKey, &state); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *HealthReporter) shouldLogFailure(ctx context.Context, now time.Time) bool {
	raw, err := r.store.Get(ctx, FailureLoggedAtKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.storeError(ctx, "read search failure log marker", err)
		}
		return true
	}
	last, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return true
	}
	return now.Unix()-last >= int64(FailureLogInterval/time.Second)
}

func (r *HealthReporter) storeError(ctx context.Context, what string, err error) {
	r.logger.WarnContext(ctx, what+" failed", slog.String("error", err.Error()))
}
