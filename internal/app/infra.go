package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/repository/postgres"
	"github.com/utafrali/catalog-search/internal/search"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// CacheKeyPrefix namespaces every key the catalog writes to Redis.
const CacheKeyPrefix = "catalog:"

// startupTimeout bounds connecting to every dependency.
const startupTimeout = 30 * time.Second

// InfraOptions selects what NewInfra connects to.
type InfraOptions struct {
	// Service names the process in traces and pool metrics.
	Service string
	// Migrate applies pending schema migrations after connecting.
	Migrate bool
	// Redis connects the shared cache. Processes without it get a
	// process-local store.
	Redis bool
}

// Infra holds the connections and core components shared by the server,
// the worker and catalogctl.
type Infra struct {
	Config *config.Config
	Logger *slog.Logger

	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Store  cache.TaggedStore
	Search *elasticsearch.Client

	Items   *postgres.ItemRepository
	Audits  *postgres.AuditRepository
	Indexes *search.IndexManager
	Indexer *search.Indexer

	tracerShutdown func(context.Context) error
}

// NewInfra connects to PostgreSQL, optionally Redis, and builds the engine
// client. The engine is not contacted here; it may come up later.
func NewInfra(cfg *config.Config, logger *slog.Logger, opts InfraOptions) (*Infra, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	infra := &Infra{Config: cfg, Logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(opts.Service))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	infra.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		_ = infra.Close(context.Background())
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	infra.Pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, opts.Service); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	if opts.Migrate && cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			_ = infra.Close(context.Background())
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if opts.Redis {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			_ = infra.Close(context.Background())
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		infra.Redis = client
		infra.Store = cache.NewRedisStore(client, CacheKeyPrefix)
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	} else {
		infra.Store = cache.NewMemoryStore()
	}

	client, err := search.NewClient(searchClientConfig(cfg), logger)
	if err != nil {
		_ = infra.Close(context.Background())
		return nil, err
	}
	infra.Search = client

	infra.Items = postgres.NewItemRepository(pool)
	infra.Audits = postgres.NewAuditRepository(pool)
	infra.Indexes = search.NewIndexManager(client, cfg.ElasticsearchIndex, logger)
	infra.Indexer = search.NewIndexer(client, infra.Indexes, infra.Items, logger)
	return infra, nil
}

func searchClientConfig(cfg *config.Config) search.ClientConfig {
	sc := search.ClientConfig{
		Hosts:    cfg.ElasticsearchHosts,
		Username: cfg.ElasticsearchUsername,
		Password: cfg.ElasticsearchPassword,
		Retries:  cfg.ElasticsearchRetries,
		Timeout:  cfg.ElasticsearchTimeout(),
	}
	if cfg.SearchBreakerEnabled {
		breaker := cfg.SearchBreaker()
		sc.Breaker = &breaker
	}
	return sc
}

// PingPostgres checks the pool.
func (i *Infra) PingPostgres(ctx context.Context) error {
	return i.Pool.Ping(ctx)
}

// PingRedis checks the shared cache.
func (i *Infra) PingRedis(ctx context.Context) error {
	if i.Redis == nil {
		return errors.New("redis is not configured")
	}
	return i.Redis.Ping(ctx).Err()
}

// PingSearch checks the engine cluster.
func (i *Infra) PingSearch(ctx context.Context) error {
	return search.Ping(ctx, i.Search)
}

// Close releases every connection that was opened and flushes traces.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.tracerShutdown != nil {
		if err := i.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
