package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

// ServiceName labels metrics and spans of the HTTP API.
const ServiceName = "catalog-api"

// RouterConfig holds the settings of the HTTP surface.
type RouterConfig struct {
	CORSAllowedOrigins []string
	PprofAllowedCIDRs  []string
	RateLimitRPS       int
	RateLimitBurst     int
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	cfg RouterConfig,
	items ItemService,
	audits AuditService,
	engineHealth EngineHealth,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins)))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Actor)
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/health/search", NewSearchHealthHandler(engineHealth, logger).GetSearchHealth)

	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Item API endpoints
	itemHandler := NewItemHandler(items, logger)
	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	r.Route("/api/v1/items", func(r chi.Router) {
		r.Use(limit)
		r.Use(middleware.CacheControl("no-store"))

		r.Get("/", itemHandler.ListItems)
		r.Get("/{id}", itemHandler.GetItem)
		r.Post("/", itemHandler.CreateItem)
		r.Put("/{id}", itemHandler.UpdateItem)
		r.Delete("/{id}", itemHandler.DeleteItem)
	})

	// Audit trail
	auditHandler := NewAuditHandler(audits, logger)

	r.Route("/api/v1/audit-logs", func(r chi.Router) {
		r.Use(limit)
		r.Get("/", auditHandler.ListAuditLogs)
	})

	return r
}
