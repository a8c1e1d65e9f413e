package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/domain"
)

// DefaultReindexChunk is the number of items sent per bulk request.
const DefaultReindexChunk = 500

// ChunkSource reads items in ascending id order.
type ChunkSource interface {
	Chunk(ctx context.Context, afterID int64, limit int) ([]domain.Item, error)
	Count(ctx context.Context) (int, error)
}

// BulkIndexer writes items to the search index.
type BulkIndexer interface {
	EnsureIndex(ctx context.Context) error
	RecreateIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, items []domain.Item) error
}

// ReindexOptions controls a full reindex.
type ReindexOptions struct {
	// Fresh drops and recreates the index before indexing.
	Fresh bool
	Chunk int
}

// Reindex copies every item from the relational store into the search
// index and returns how many were indexed. A failed chunk stops the run.
func Reindex(ctx context.Context, src ChunkSource, dst BulkIndexer, opts ReindexOptions, logger *slog.Logger) (int, error) {
	if opts.Chunk < 1 {
		opts.Chunk = DefaultReindexChunk
	}

	if opts.Fresh {
		if err := dst.RecreateIndex(ctx); err != nil {
			return 0, fmt.Errorf("recreate index: %w", err)
		}
	} else if err := dst.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("ensure index: %w", err)
	}

	total, err := src.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	logger.Info("reindex started",
		slog.Int("items", total),
		slog.Int("chunk", opts.Chunk),
		slog.Bool("fresh", opts.Fresh),
	)

	var (
		indexed int
		afterID int64
	)
	for {
		items, err := src.Chunk(ctx, afterID, opts.Chunk)
		if err != nil {
			return indexed, fmt.Errorf("read items after id %d: %w", afterID, err)
		}
		if len(items) == 0 {
			break
		}
		if err := dst.BulkIndex(ctx, items); err != nil {
			return indexed, fmt.Errorf("index items after id %d: %w", afterID, err)
		}
		indexed += len(items)
		afterID = items[len(items)-1].ID
		logger.Info("reindex progress", slog.Int("indexed", indexed), slog.Int("items", total))

		if len(items) < opts.Chunk {
			break
		}
	}

	logger.Info("reindex finished", slog.Int("indexed", indexed))
	return indexed, nil
}
