package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-search/pkg/httpclient"
)

var tracer = otel.Tracer("github.com/utafrali/catalog-search/internal/search")

// ClientConfig configures the engine client.
type ClientConfig struct {
	Hosts    []string
	Username string
	Password string
	// Retries is how many times a request is retried on another node or
	// after a network error.
	Retries int
	// Timeout bounds the wait for response headers.
	Timeout time.Duration
	// Breaker guards the transport; nil disables it.
	Breaker *httpclient.CircuitBreakerConfig
}

// NewClient builds an Elasticsearch client over the pooled transport,
// optionally guarded by a circuit breaker. An open breaker surfaces as
// ErrUnreachable to callers.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*elasticsearch.Client, error) {
	var transport http.RoundTripper = httpclient.NewTransport(httpclient.TransportConfig{
		DialTimeout:           httpclient.DefaultTransportConfig().DialTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
	})
	if cfg.Breaker != nil {
		transport = httpclient.NewBreakerTransport(transport, *cfg.Breaker, logger)
	}

	esCfg := elasticsearch.Config{
		Addresses:    cfg.Hosts,
		MaxRetries:   cfg.Retries,
		DisableRetry: cfg.Retries == 0,
		RetryBackoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 100 * time.Millisecond
		},
		Transport: transport,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return client, nil
}

// Ping checks whether the cluster answers.
func Ping(ctx context.Context, client *elasticsearch.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return transportError("ping", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// startSpan opens a client span for one engine call.
func startSpan(ctx context.Context, name, index string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "elasticsearch"),
			attribute.String("search.index", index),
		),
	)
}

// endSpan records err on span, ignoring classified non-errors.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
