package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/repository"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// SearchIndexer applies sync jobs to the search index.
type SearchIndexer interface {
	IndexByID(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// SyncHandler consumes the search sync lane.
type SyncHandler struct {
	indexer SearchIndexer
	logger  *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(indexer SearchIndexer, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{indexer: indexer, logger: logger}
}

// Handle applies one sync job. Upserts re-read the item so a stale job
// never writes an old version.
func (h *SyncHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != EventItemSync {
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	job, err := decode[SyncJob](event)
	if err != nil {
		return err
	}

	switch job.Operation {
	case SyncUpsert:
		err = h.indexer.IndexByID(ctx, job.ItemID)
	case SyncDelete:
		err = h.indexer.Delete(ctx, job.ItemID)
	default:
		h.logger.WarnContext(ctx, "unknown sync operation",
			slog.String("operation", string(job.Operation)),
			slog.Int64("item_id", job.ItemID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s item %d in search index: %w", job.Operation, job.ItemID, err)
	}

	h.logger.DebugContext(ctx, "search index synced",
		slog.Int64("item_id", job.ItemID),
		slog.String("operation", string(job.Operation)),
	)
	return nil
}

// AuditHandler consumes the audit lane.
type AuditHandler struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(repo repository.AuditRepository, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, logger: logger}
}

// Handle stores one audit entry.
func (h *AuditHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != EventItemAudited {
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	job, err := decode[AuditJob](event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := &domain.AuditEntry{
		Action:      job.Action,
		SubjectType: job.SubjectType,
		SubjectID:   job.SubjectID,
		Data:        data,
		UserID:      job.UserID,
		CreatedAt:   job.OccurredAt,
	}
	if err := h.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s audit for %s %d: %w", job.Action, job.SubjectType, job.SubjectID, err)
	}

	h.logger.DebugContext(ctx, "audit entry recorded",
		slog.Int64("audit_id", entry.ID),
		slog.String("action", string(entry.Action)),
		slog.Int64("subject_id", entry.SubjectID),
	)
	return nil
}

// decode unmarshals the payload of event into a job.
func decode[T any](event *pkgkafka.Event) (T, error) {
	var job T
	if err := json.Unmarshal(event.Data, &job); err != nil {
		return job, fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	return job, nil
}
