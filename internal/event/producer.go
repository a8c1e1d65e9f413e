package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// Event types carried on the two lanes.
const (
	EventItemSync    = "catalog.item.sync"
	EventItemAudited = "catalog.item.audited"
)

// Default topics.
const (
	DefaultSyncTopic  = "catalog.search-sync"
	DefaultAuditTopic = "catalog.audit"
)

// SourceCatalogAPI identifies events published by the API.
const SourceCatalogAPI = "catalog-api"

// SyncOperation tells the indexer what to do with an item.
type SyncOperation string

const (
	SyncUpsert SyncOperation = "upsert"
	SyncDelete SyncOperation = "delete"
)

// SyncJob asks the worker to bring one item's document up to date.
type SyncJob struct {
	ItemID    int64         `json:"item_id"`
	Operation SyncOperation `json:"operation"`
}

// AuditJob asks the worker to record one mutation.
type AuditJob struct {
	Action      domain.AuditAction  `json:"action"`
	SubjectType string              `json:"subject_type"`
	SubjectID   int64               `json:"subject_id"`
	Payload     domain.AuditPayload `json:"payload"`
	UserID      *string             `json:"user_id,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Topics names the two lanes.
type Topics struct {
	Sync  string
	Audit string
}

// Producer publishes mutation jobs after the relational write returned.
type Producer struct {
	publisher pkgkafka.Publisher
	topics    Topics
	logger    *slog.Logger
	now       func() time.Time
}

// NewProducer creates a producer. Empty topics use the defaults.
func NewProducer(publisher pkgkafka.Publisher, topics Topics, logger *slog.Logger) *Producer {
	if topics.Sync == "" {
		topics.Sync = DefaultSyncTopic
	}
	if topics.Audit == "" {
		topics.Audit = DefaultAuditTopic
	}
	return &Producer{publisher: publisher, topics: topics, logger: logger, now: time.Now}
}

// ItemCreated publishes the create audit entry and an upsert sync job.
func (p *Producer) ItemCreated(ctx context.Context, item domain.Item) error {
	return errors.Join(
		p.publishAudit(ctx, domain.AuditCreate, item.ID, domain.CreatedPayload(item)),
		p.publishSync(ctx, item.ID, SyncUpsert),
	)
}

// ItemUpdated publishes the update audit entry and an upsert sync job. An
// update that changed no editable attribute publishes nothing.
func (p *Producer) ItemUpdated(ctx context.Context, before, after domain.Item) error {
	payload, changed := domain.UpdatedPayload(before, after)
	if !changed {
		p.logger.DebugContext(ctx, "item update changed nothing, no jobs published", slog.Int64("item_id", after.ID))
		return nil
	}
	return errors.Join(
		p.publishAudit(ctx, domain.AuditUpdate, after.ID, payload),
		p.publishSync(ctx, after.ID, SyncUpsert),
	)
}

// ItemDeleted publishes the delete audit entry and a delete sync job.
func (p *Producer) ItemDeleted(ctx context.Context, item domain.Item) error {
	return errors.Join(
		p.publishAudit(ctx, domain.AuditDelete, item.ID, domain.DeletedPayload(item)),
		p.publishSync(ctx, item.ID, SyncDelete),
	)
}

func (p *Producer) publishSync(ctx context.Context, id int64, op SyncOperation) error {
	job := SyncJob{ItemID: id, Operation: op}
	if err := p.publish(ctx, p.topics.Sync, EventItemSync, id, job); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "published search sync job",
		slog.Int64("item_id", id),
		slog.String("operation", string(op)),
	)
	return nil
}

func (p *Producer) publishAudit(ctx context.Context, action domain.AuditAction, id int64, payload domain.AuditPayload) error {
	job := AuditJob{
		Action:      action,
		SubjectType: domain.SubjectCatalogItem,
		SubjectID:   id,
		Payload:     payload,
		OccurredAt:  p.now().UTC(),
	}
	if uid := logger.UserIDFromContext(ctx); uid != "" {
		job.UserID = &uid
	}
	return p.publish(ctx, p.topics.Audit, EventItemAudited, id, job)
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, id int64, data any) error {
	var opts []pkgkafka.EventOption
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		opts = append(opts, pkgkafka.WithCorrelationID(cid))
	}

	event, err := pkgkafka.NewEvent(eventType, strconv.FormatInt(id, 10), domain.SubjectCatalogItem, SourceCatalogAPI, data, opts...)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}
