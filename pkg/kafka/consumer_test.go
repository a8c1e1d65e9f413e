package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/pkg/logger"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	done      chan struct{}
	want      int
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{pending: msgs, done: make(chan struct{}), want: len(msgs)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.committed) == r.want {
		close(r.done)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recordingDLQ struct {
	mu   sync.Mutex
	msgs []kafka.Message
	errs []error
}

func (d *recordingDLQ) Publish(_ context.Context, msg kafka.Message, lastErr error, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	d.errs = append(d.errs, lastErr)
	return nil
}

func eventMessage(t *testing.T, offset int64, eventType string) kafka.Message {
	t.Helper()
	e, err := NewEvent(eventType, "7", "catalog_item", "test", map[string]int{"item_id": 7})
	require.NoError(t, err)
	raw, err := e.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "catalog.search-sync", Offset: offset, Value: raw}
}

func runUntilCommitted(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not committed")
	}
	cancel()
	require.NoError(t, <-errCh)
}

func noBackoff(int) time.Duration { return 0 }

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := newFakeReader(eventMessage(t, 1, "catalog.item.sync"), eventMessage(t, 2, "catalog.item.sync"))
	var handled int
	c := newConsumer(r, "catalog.search-sync", "catalog-indexer", func(ctx context.Context, e *Event) error {
		handled++
		return nil
	}, logger.Discard())

	runUntilCommitted(t, c, r)
	assert.Equal(t, 2, handled)
	assert.Len(t, r.committed, 2)
}

func TestConsumer_RetriesThreeTimesThenDeadLetters(t *testing.T) {
	r := newFakeReader(eventMessage(t, 5, "catalog.item.sync"))
	dlq := &recordingDLQ{}
	boom := errors.New("elasticsearch unreachable")

	attempts := 0
	c := newConsumer(r, "catalog.search-sync", "catalog-indexer-exhausted", func(ctx context.Context, e *Event) error {
		attempts++
		return boom
	}, logger.Discard(), WithDeadLetter(dlq), WithRetryBackoff(noBackoff))

	runUntilCommitted(t, c, r)
	assert.Equal(t, MaxHandlerAttempts, attempts)
	assert.Equal(t, float64(MaxHandlerAttempts-1), testutil.ToFloat64(ConsumerHandlerRetries.WithLabelValues("catalog.search-sync", "catalog-indexer-exhausted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ConsumerMessagesFailed.WithLabelValues("catalog.search-sync", "catalog-indexer-exhausted")))
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, int64(5), dlq.msgs[0].Offset)
	assert.ErrorIs(t, dlq.errs[0], boom)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_SucceedsOnRetry(t *testing.T) {
	r := newFakeReader(eventMessage(t, 1, "catalog.item.sync"))
	dlq := &recordingDLQ{}

	attempts := 0
	c := newConsumer(r, "catalog.search-sync", "catalog-indexer", func(ctx context.Context, e *Event) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, logger.Discard(), WithDeadLetter(dlq), WithRetryBackoff(noBackoff))

	runUntilCommitted(t, c, r)
	assert.Equal(t, 2, attempts)
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_UndecodableMessageIsDeadLettered(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "catalog.audit", Offset: 3, Value: []byte("garbage")})
	dlq := &recordingDLQ{}
	c := newConsumer(r, "catalog.audit", "catalog-audit", func(ctx context.Context, e *Event) error {
		t.Fatal("handler must not run")
		return nil
	}, logger.Discard(), WithDeadLetter(dlq))

	runUntilCommitted(t, c, r)
	assert.Len(t, dlq.msgs, 1)
}

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: logger.Discard()}

	orig := kafka.Message{Topic: "catalog.audit", Partition: 2, Offset: 99, Key: []byte("7"), Value: []byte("{}")}
	require.NoError(t, d.Publish(context.Background(), orig, errors.New("boom"), "catalog-audit"))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "catalog.audit.dlq", msg.Topic)
	assert.Equal(t, "catalog.audit", header(msg, "dlq.original_topic"))
	assert.Equal(t, "2", header(msg, "dlq.original_partition"))
	assert.Equal(t, "99", header(msg, "dlq.original_offset"))
	assert.Equal(t, "boom", header(msg, "dlq.error"))
}
