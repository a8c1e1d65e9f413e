package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// ItemFinder loads catalog items from the relational store.
type ItemFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	// FindByIDs returns the items that exist, in no particular order.
	FindByIDs(ctx context.Context, ids []int64) ([]domain.Item, error)
}

// BulkError lists the documents a bulk request failed to index.
type BulkError struct {
	Failures map[string]string
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for id, reason := range e.Failures {
		parts = append(parts, fmt.Sprintf("id=%s: %s", id, reason))
	}
	return fmt.Sprintf("elasticsearch bulk index: %d failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string       `json:"_id"`
		Status int          `json:"status"`
		Error  *errorDetail `json:"error"`
	} `json:"items"`
}

// Indexer keeps the catalog index in step with the relational store.
// Writes use refresh=false; the index catches up on its refresh interval.
type Indexer struct {
	client  *elasticsearch.Client
	indexes *IndexManager
	finder  ItemFinder
	logger  *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(client *elasticsearch.Client, indexes *IndexManager, finder ItemFinder, logger *slog.Logger) *Indexer {
	return &Indexer{client: client, indexes: indexes, finder: finder, logger: logger}
}

// IndexByID re-reads the item and indexes it, or deletes its document when
// the item no longer exists.
func (ix *Indexer) IndexByID(ctx context.Context, id int64) error {
	item, err := ix.finder.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ix.Delete(ctx, id)
		}
		return fmt.Errorf("load item %d for indexing: %w", id, err)
	}
	return ix.Index(ctx, *item)
}

// Index upserts the document of item. An unreachable engine is logged and
// skipped.
func (ix *Indexer) Index(ctx context.Context, item domain.Item) error {
	if _, err := ix.indexes.EnsureExists(ctx); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "document.index", ix.indexes.Name())
	err := ix.index(ctx, item)
	endSpan(span, err)
	return err
}

func (ix *Indexer) index(ctx context.Context, item domain.Item) error {
	body, err := json.Marshal(NewDocument(item))
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := ix.client.Index(
		ix.indexes.Name(),
		bytes.NewReader(body),
		ix.client.Index.WithDocumentID(strconv.FormatInt(item.ID, 10)),
		ix.client.Index.WithRefresh("false"),
		ix.client.Index.WithContext(ctx),
	)
	if err != nil {
		err = transportError("index", err)
		if IsUnreachable(err) {
			ix.logger.WarnContext(ctx, "could not sync item to search index, no node available",
				slog.Int64("item_id", item.ID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("index", res)
	}

	ix.logger.DebugContext(ctx, "indexed item", slog.Int64("item_id", item.ID))
	return nil
}

// BulkIndex upserts items in a single request, preserving input order.
func (ix *Indexer) BulkIndex(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := ix.indexes.EnsureExists(ctx); err != nil {
		return err
	}

	ctx, span := startSpan(ctx, "document.bulk", ix.indexes.Name())
	err := ix.bulk(ctx, items)
	endSpan(span, err)
	return err
}

func (ix *Indexer) bulk(ctx context.Context, items []domain.Item) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range items {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": ix.indexes.Name(),
				"_id":    strconv.FormatInt(items[i].ID, 10),
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(NewDocument(items[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := ix.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		ix.client.Bulk.WithRefresh("false"),
		ix.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		err = transportError("bulk index", err)
		if IsUnreachable(err) {
			ix.logger.WarnContext(ctx, "could not bulk sync items to search index, no node available",
				slog.Int("count", len(items)),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk index", res)
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}
	if bulkResp.Errors {
		failures := make(map[string]string)
		for _, entry := range bulkResp.Items {
			for _, result := range entry {
				if result.Error != nil {
					failures[result.ID] = result.Error.Type + ": " + result.Error.Reason
				}
			}
		}
		if len(failures) > 0 {
			return &BulkError{Failures: failures}
		}
	}

	ix.logger.InfoContext(ctx, "bulk indexed items", slog.Int("count", len(items)))
	return nil
}

// Delete removes the document of id. A missing index or document is not an
// error; an unreachable engine is logged and skipped.
func (ix *Indexer) Delete(ctx context.Context, id int64) error {
	available, err := ix.indexes.Available(ctx)
	if err != nil {
		return err
	}
	if !available {
		return nil
	}

	ctx, span := startSpan(ctx, "document.delete", ix.indexes.Name())
	err = ix.delete(ctx, id)
	endSpan(span, err)
	return err
}

func (ix *Indexer) delete(ctx context.Context, id int64) error {
	res, err := ix.client.Delete(
		ix.indexes.Name(),
		strconv.FormatInt(id, 10),
		ix.client.Delete.WithContext(ctx),
	)
	if err != nil {
		err = transportError("delete", err)
		if IsUnreachable(err) {
			ix.logger.WarnContext(ctx, "could not remove item from search index, no node available",
				slog.Int64("item_id", id),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

// RecreateIndex drops and recreates the index.
func (ix *Indexer) RecreateIndex(ctx context.Context) error {
	return ix.indexes.Recreate(ctx)
}

// EnsureIndex creates the index when it does not exist.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	ok, err := ix.indexes.EnsureExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("elasticsearch ensure index %s: %w", ix.indexes.Name(), ErrUnreachable)
	}
	return nil
}
