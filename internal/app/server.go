package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/event"
	handler "github.com/utafrali/catalog-search/internal/handler/http"
	"github.com/utafrali/catalog-search/internal/repository"
	"github.com/utafrali/catalog-search/internal/search"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/health"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// Server wires together all dependencies and runs the catalog HTTP API.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	infra      *Infra
	producer   *pkgkafka.Producer
	httpServer *http.Server
}

// NewServer creates the API process, initializing all dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	infra, err := NewInfra(cfg, logger, InfraOptions{Service: handler.ServiceName, Migrate: true, Redis: true})
	if err != nil {
		return nil, err
	}

	// Initialize Kafka producer. Writes succeed without it; their jobs
	// are logged as failed.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := producer.Ping(pingCtx); err != nil {
		logger.Warn("kafka producer ping failed, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	cancel()

	// Build the dependency graph.
	engine := search.NewEngine(infra.Search, infra.Indexes, infra.Items, cfg.ElasticsearchSuggestionSize, logger)
	reporter := search.NewHealthReporter(infra.Store, logger)

	var (
		items   repository.ItemRepository = infra.Items
		results service.ResultCache
	)
	if cfg.ResultCacheEnabled {
		cached := repository.NewCachedItemRepository(infra.Items, infra.Store, cfg.ResultCacheTTL(), logger)
		items = cached
		results = cached
	}

	events := event.NewProducer(producer, event.Topics{
		Sync:  cfg.KafkaSearchSyncTopic,
		Audit: cfg.KafkaAuditTopic,
	}, logger)
	catalogService := service.NewCatalogService(items, engine, reporter, results, events, logger)
	auditService := service.NewAuditService(infra.Audits)

	// Health checks. The engine and the queue degrade the API without
	// making it unready.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", infra.PingPostgres)
	healthHandler.Register("redis", infra.PingRedis)
	healthHandler.RegisterOptional("elasticsearch", infra.PingSearch)
	healthHandler.RegisterOptional("kafka", producer.Ping)

	router := handler.NewRouter(handler.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, catalogService, auditService, reporter, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		infra:      infra,
		producer:   producer,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server",
			slog.String("addr", s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, s.Shutdown())
	}

	return s.Shutdown()
}

// Shutdown gracefully stops all components.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := s.producer.Close(); err != nil {
		s.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := s.infra.Close(shutdownCtx); err != nil {
		s.logger.Error("infrastructure close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	s.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
