package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/catalog-search/pkg/config"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/httpclient"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// Config holds configuration shared by the server, worker and catalogctl
// binaries.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort           int      `env:"CATALOG_HTTP_PORT" envDefault:"8020"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Per-client limit on /api/v1. RATE_LIMIT_RPS=0 disables it.
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"CATALOG_DB_NAME" envDefault:"catalog_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	RunMigrations         bool  `env:"DB_RUN_MIGRATIONS" envDefault:"true"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Result cache over relational listings
	ResultCacheEnabled bool `env:"RESULT_CACHE_ENABLED" envDefault:"true"`
	ResultCacheTTLSecs int  `env:"RESULT_CACHE_TTL_SECONDS" envDefault:"300"`

	// Elasticsearch
	ElasticsearchHosts          []string `env:"ELASTICSEARCH_HOSTS" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchUsername       string   `env:"ELASTICSEARCH_USERNAME" envDefault:""`
	ElasticsearchPassword       string   `env:"ELASTICSEARCH_PASSWORD" envDefault:""`
	ElasticsearchIndex          string   `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_items"`
	ElasticsearchRetries        int      `env:"ELASTICSEARCH_RETRIES" envDefault:"2"`
	ElasticsearchSuggestionSize int      `env:"ELASTICSEARCH_SUGGESTION_SIZE" envDefault:"5"`
	ElasticsearchTimeoutSecs    int      `env:"ELASTICSEARCH_TIMEOUT_SECONDS" envDefault:"5"`

	// Circuit breaker in front of the engine
	SearchBreakerEnabled      bool    `env:"SEARCH_BREAKER_ENABLED" envDefault:"true"`
	SearchBreakerFailureRatio float64 `env:"SEARCH_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	SearchBreakerMinRequests  uint32  `env:"SEARCH_BREAKER_MIN_REQUESTS" envDefault:"5"`
	SearchBreakerOpenSecs     int     `env:"SEARCH_BREAKER_OPEN_SECONDS" envDefault:"30"`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaSearchSyncTopic string   `env:"KAFKA_SEARCH_SYNC_TOPIC" envDefault:"catalog.search-sync"`
	KafkaAuditTopic      string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"catalog.audit"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"catalog-worker"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. It runs as part of Load.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative, got %d/%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.ElasticsearchHosts) == 0 {
		return fmt.Errorf("ELASTICSEARCH_HOSTS is required")
	}
	for _, h := range c.ElasticsearchHosts {
		if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
			return fmt.Errorf("ELASTICSEARCH_HOSTS entry %q must include a scheme", h)
		}
	}
	if strings.TrimSpace(c.ElasticsearchIndex) == "" {
		return fmt.Errorf("ELASTICSEARCH_INDEX is required")
	}
	if c.ElasticsearchRetries < 0 {
		return fmt.Errorf("ELASTICSEARCH_RETRIES must not be negative, got %d", c.ElasticsearchRetries)
	}
	if c.ElasticsearchSuggestionSize < 1 {
		return fmt.Errorf("ELASTICSEARCH_SUGGESTION_SIZE must be positive, got %d", c.ElasticsearchSuggestionSize)
	}
	if c.ElasticsearchTimeoutSecs < 1 {
		return fmt.Errorf("ELASTICSEARCH_TIMEOUT_SECONDS must be positive, got %d", c.ElasticsearchTimeoutSecs)
	}
	if c.SearchBreakerFailureRatio <= 0 || c.SearchBreakerFailureRatio > 1 {
		return fmt.Errorf("SEARCH_BREAKER_FAILURE_RATIO must be within (0,1], got %f", c.SearchBreakerFailureRatio)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.KafkaSearchSyncTopic == "" || c.KafkaAuditTopic == "" {
		return fmt.Errorf("KAFKA_SEARCH_SYNC_TOPIC and KAFKA_AUDIT_TOPIC are required")
	}
	if c.KafkaSearchSyncTopic == c.KafkaAuditTopic {
		return fmt.Errorf("search sync and audit jobs need separate topics, both are %q", c.KafkaAuditTopic)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 3 * time.Second,
	}
}

// ResultCacheTTL is how long relational listings stay cached.
func (c *Config) ResultCacheTTL() time.Duration {
	return time.Duration(c.ResultCacheTTLSecs) * time.Second
}

// ElasticsearchTimeout bounds a single engine round trip.
func (c *Config) ElasticsearchTimeout() time.Duration {
	return time.Duration(c.ElasticsearchTimeoutSecs) * time.Second
}

// SearchBreaker returns the breaker settings for engine calls.
func (c *Config) SearchBreaker() httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig("elasticsearch")
	cb.FailureRatio = c.SearchBreakerFailureRatio
	cb.MinRequests = c.SearchBreakerMinRequests
	cb.Timeout = time.Duration(c.SearchBreakerOpenSecs) * time.Second
	return cb
}

// Tracing returns the tracer provider settings for service.
func (c *Config) Tracing(service string) tracing.Config {
	tc := tracing.DefaultConfig(service)
	tc.Environment = c.Environment
	tc.Enabled = c.OTELEnabled
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	return tc
}

// SlowQueryThreshold is the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
