package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/repository"
	"github.com/utafrali/catalog-search/internal/repository/postgres"
	"github.com/utafrali/catalog-search/internal/search"
	"github.com/utafrali/catalog-search/pkg/logger"
)

type sliceSource struct {
	items   []domain.Item
	calls   []int64
	failAt  int64
	failErr error
}

func (s *sliceSource) Chunk(_ context.Context, afterID int64, limit int) ([]domain.Item, error) {
	s.calls = append(s.calls, afterID)
	if s.failErr != nil && afterID == s.failAt {
		return nil, s.failErr
	}
	var out []domain.Item
	for _, it := range s.items {
		if it.ID > afterID && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *sliceSource) Count(context.Context) (int, error) {
	return len(s.items), nil
}

type recordingIndexer struct {
	ensured   int
	recreated int
	batches   [][]int64
	ensureErr error
	bulkErr   error
}

func (r *recordingIndexer) EnsureIndex(context.Context) error {
	r.ensured++
	return r.ensureErr
}

func (r *recordingIndexer) RecreateIndex(context.Context) error {
	r.recreated++
	return nil
}

func (r *recordingIndexer) BulkIndex(_ context.Context, items []domain.Item) error {
	if r.bulkErr != nil {
		return r.bulkErr
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	r.batches = append(r.batches, ids)
	return nil
}

func itemsWithIDs(ids ...int64) []domain.Item {
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Item{ID: id, Name: "item"})
	}
	return out
}

func TestReindex_ChunksInIDOrder(t *testing.T) {
	src := &sliceSource{items: itemsWithIDs(2, 5, 9, 12, 20)}
	dst := &recordingIndexer{}

	n, err := Reindex(context.Background(), src, dst, ReindexOptions{Chunk: 2}, logger.Discard())

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, dst.ensured)
	assert.Equal(t, 0, dst.recreated)
	assert.Equal(t, [][]int64{{2, 5}, {9, 12}, {20}}, dst.batches)
	assert.Equal(t, []int64{0, 5, 12}, src.calls)
}

func TestReindex_ExactMultipleReadsOneEmptyChunk(t *testing.T) {
	src := &sliceSource{items: itemsWithIDs(1, 2, 3, 4)}
	dst := &recordingIndexer{}

	n, err := Reindex(context.Background(), src, dst, ReindexOptions{Chunk: 2}, logger.Discard())

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int64{0, 2, 4}, src.calls)
	assert.Len(t, dst.batches, 2)
}

func TestReindex_FreshRecreates(t *testing.T) {
	dst := &recordingIndexer{}

	n, err := Reindex(context.Background(), &sliceSource{}, dst, ReindexOptions{Fresh: true}, logger.Discard())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, dst.recreated)
	assert.Zero(t, dst.ensured)
	assert.Empty(t, dst.batches)
}

func TestReindex_DefaultChunk(t *testing.T) {
	ids := make([]int64, 0, DefaultReindexChunk+1)
	for i := int64(1); i <= DefaultReindexChunk+1; i++ {
		ids = append(ids, i)
	}
	dst := &recordingIndexer{}

	n, err := Reindex(context.Background(), &sliceSource{items: itemsWithIDs(ids...)}, dst, ReindexOptions{}, logger.Discard())

	require.NoError(t, err)
	assert.Equal(t, DefaultReindexChunk+1, n)
	require.Len(t, dst.batches, 2)
	assert.Len(t, dst.batches[0], DefaultReindexChunk)
}

func TestReindex_EnsureFails(t *testing.T) {
	dst := &recordingIndexer{ensureErr: search.ErrUnreachable}

	_, err := Reindex(context.Background(), &sliceSource{items: itemsWithIDs(1)}, dst, ReindexOptions{}, logger.Discard())

	require.ErrorIs(t, err, search.ErrUnreachable)
	assert.Empty(t, dst.batches)
}

func TestReindex_StopsOnFailedChunk(t *testing.T) {
	src := &sliceSource{items: itemsWithIDs(1, 2, 3), failAt: 2, failErr: assert.AnError}
	dst := &recordingIndexer{}

	n, err := Reindex(context.Background(), src, dst, ReindexOptions{Chunk: 2}, logger.Discard())

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, n)
}

func TestReindex_BulkFailure(t *testing.T) {
	dst := &recordingIndexer{bulkErr: &search.BulkError{Failures: map[string]string{"1": "mapper_parsing_exception"}}}

	n, err := Reindex(context.Background(), &sliceSource{items: itemsWithIDs(1)}, dst, ReindexOptions{}, logger.Discard())

	var bulkErr *search.BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Zero(t, n)
}

var (
	_ ChunkSource               = (*postgres.ItemRepository)(nil)
	_ BulkIndexer               = (*search.Indexer)(nil)
	_ repository.ItemRepository = (*postgres.ItemRepository)(nil)
)
