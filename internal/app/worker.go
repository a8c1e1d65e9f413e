package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/event"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// WorkerServiceName labels traces and metrics of the queue worker.
const WorkerServiceName = "catalog-worker"

// auditDedupTTL is how long processed audit job ids are remembered.
const auditDedupTTL = 24 * time.Hour

// Worker consumes the search sync and audit lanes.
type Worker struct {
	logger    *slog.Logger
	infra     *Infra
	dlq       *pkgkafka.DLQProducer
	consumers []*pkgkafka.Consumer
	runner    *event.Worker
}

// NewWorker creates the worker process, initializing all dependencies.
func NewWorker(cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	infra, err := NewInfra(cfg, logger, InfraOptions{Service: WorkerServiceName, Migrate: true, Redis: true})
	if err != nil {
		return nil, err
	}

	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	syncHandler := event.NewSyncHandler(infra.Indexer, logger)
	auditHandler := event.NewAuditHandler(infra.Audits, logger)
	seen := cache.NewIdempotencyStore(infra.Store, auditDedupTTL)

	syncConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup + "-search-sync",
		Topic:    cfg.KafkaSearchSyncTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, syncHandler.Handle, logger, pkgkafka.WithDeadLetter(dlq))

	auditConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup + "-audit",
		Topic:    cfg.KafkaAuditTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(seen, auditHandler.Handle, logger), logger, pkgkafka.WithDeadLetter(dlq))

	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("search_sync_topic", cfg.KafkaSearchSyncTopic),
		slog.String("audit_topic", cfg.KafkaAuditTopic),
	)

	return &Worker{
		logger:    logger,
		infra:     infra,
		dlq:       dlq,
		consumers: []*pkgkafka.Consumer{syncConsumer, auditConsumer},
		runner:    event.NewWorker(logger, syncConsumer, auditConsumer),
	}, nil
}

// Run consumes both lanes until the context is canceled or a consumer
// fails.
func (w *Worker) Run(ctx context.Context) error {
	err := w.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(fmt.Errorf("run consumers: %w", err), w.Shutdown())
	}
	w.logger.Info("shutdown signal received")
	return w.Shutdown()
}

// Shutdown closes the consumers and connections.
func (w *Worker) Shutdown() error {
	w.logger.Info("shutting down worker...")

	var errs []error
	for _, c := range w.consumers {
		if err := c.Close(); err != nil {
			w.logger.Error("kafka consumer close error",
				slog.String("topic", c.Topic()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	if err := w.dlq.Close(); err != nil {
		errs = append(errs, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.infra.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	w.logger.Info("worker shutdown complete")
	return errors.Join(errs...)
}
