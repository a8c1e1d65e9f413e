package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/httputil"
)

// EngineHealth reads the shared engine health record.
type EngineHealth interface {
	State(ctx context.Context) (*domain.HealthState, error)
}

// SearchHealthHandler exposes the engine state recorded by listing requests.
type SearchHealthHandler struct {
	health EngineHealth
	logger *slog.Logger
}

// NewSearchHealthHandler creates a new search health handler.
func NewSearchHealthHandler(health EngineHealth, logger *slog.Logger) *SearchHealthHandler {
	return &SearchHealthHandler{health: health, logger: logger}
}

// unknownState is reported until a search request has recorded one.
const unknownState domain.HealthStatus = "unknown"

// GetSearchHealth handles GET /health/search
func (h *SearchHealthHandler) GetSearchHealth(w http.ResponseWriter, r *http.Request) {
	state, err := h.health.State(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if state == nil {
		state = &domain.HealthState{Status: unknownState}
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}
