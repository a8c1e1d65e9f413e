package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
)

// CreateOutcome is the result of an index creation attempt.
type CreateOutcome int

const (
	// CreateFailed means no node answered; the index state is unknown.
	CreateFailed CreateOutcome = iota
	Created
	AlreadyPresent
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyPresent:
		return "already_present"
	default:
		return "failed"
	}
}

// IndexManager owns the lifecycle of the catalog index. Once the index is
// confirmed the result is memoized for the life of the process.
type IndexManager struct {
	client    *elasticsearch.Client
	index     string
	logger    *slog.Logger
	confirmed atomic.Bool
}

// NewIndexManager creates a manager for index.
func NewIndexManager(client *elasticsearch.Client, index string, logger *slog.Logger) *IndexManager {
	if index == "" {
		index = DefaultIndexName
	}
	return &IndexManager{client: client, index: index, logger: logger}
}

// Name returns the managed index name.
func (m *IndexManager) Name() string { return m.index }

// Exists asks the engine whether the index exists. An unreachable engine
// is reported as absent.
func (m *IndexManager) Exists(ctx context.Context) (bool, error) {
	ctx, span := startSpan(ctx, "index.exists", m.index)
	exists, err := m.exists(ctx)
	endSpan(span, err)
	return exists, err
}

func (m *IndexManager) exists(ctx context.Context) (bool, error) {
	res, err := m.client.Indices.Exists([]string{m.index}, m.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		err = transportError("index exists", err)
		if IsUnreachable(err) {
			m.logger.WarnContext(ctx, "could not check search index existence, no node available",
				slog.String("index", m.index),
				slog.String("error", err.Error()),
			)
			return false, nil
		}
		return false, err
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError("index exists", res)
	}
}

// Available reports whether the index is known to exist, asking the
// engine only until a positive answer has been memoized.
func (m *IndexManager) Available(ctx context.Context) (bool, error) {
	if m.confirmed.Load() {
		return true, nil
	}
	exists, err := m.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		m.confirmed.Store(true)
	}
	return exists, nil
}

// EnsureExists confirms the index exists, creating it when absent. Once
// confirmed no further round trip is made.
func (m *IndexManager) EnsureExists(ctx context.Context) (bool, error) {
	if m.confirmed.Load() {
		return true, nil
	}

	exists, err := m.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		m.confirmed.Store(true)
		return true, nil
	}

	outcome, err := m.Create(ctx)
	if err != nil {
		return false, err
	}
	ok := outcome != CreateFailed
	m.confirmed.Store(ok)
	return ok, nil
}

// Forget drops the memoized confirmation, e.g. after the engine reported
// the index missing.
func (m *IndexManager) Forget() {
	m.confirmed.Store(false)
}

// Create creates the index with the catalog settings and mappings.
func (m *IndexManager) Create(ctx context.Context) (CreateOutcome, error) {
	ctx, span := startSpan(ctx, "index.create", m.index)
	outcome, err := m.create(ctx)
	endSpan(span, err)
	return outcome, err
}

func (m *IndexManager) create(ctx context.Context) (CreateOutcome, error) {
	body, err := json.Marshal(indexBody())
	if err != nil {
		return CreateFailed, fmt.Errorf("elasticsearch create index: marshal body: %w", err)
	}

	res, err := m.client.Indices.Create(
		m.index,
		m.client.Indices.Create.WithBody(bytes.NewReader(body)),
		m.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		err = transportError("create index", err)
		if IsUnreachable(err) {
			m.logger.WarnContext(ctx, "could not create search index, no node available",
				slog.String("index", m.index),
				slog.String("error", err.Error()),
			)
			return CreateFailed, nil
		}
		return CreateFailed, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		rerr := responseError("create index", res)
		if IsAlreadyExists(rerr) {
			return AlreadyPresent, nil
		}
		return CreateFailed, rerr
	}

	m.logger.InfoContext(ctx, "search index created", slog.String("index", m.index))
	return Created, nil
}

// Recreate deletes and recreates the index.
func (m *IndexManager) Recreate(ctx context.Context) error {
	if err := m.Delete(ctx); err != nil {
		return err
	}
	outcome, err := m.Create(ctx)
	if err != nil {
		return err
	}
	m.confirmed.Store(outcome != CreateFailed)
	if outcome == CreateFailed {
		return fmt.Errorf("elasticsearch recreate index %s: %w", m.index, ErrUnreachable)
	}
	return nil
}

// Delete removes the index. A missing index is not an error.
func (m *IndexManager) Delete(ctx context.Context) error {
	exists, err := m.Exists(ctx)
	if err != nil {
		return err
	}
	m.confirmed.Store(false)
	if !exists {
		return nil
	}

	ctx, span := startSpan(ctx, "index.delete", m.index)
	err = m.delete(ctx)
	endSpan(span, err)
	return err
}

func (m *IndexManager) delete(ctx context.Context) error {
	res, err := m.client.Indices.Delete([]string{m.index}, m.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		err = transportError("delete index", err)
		if IsUnreachable(err) {
			m.logger.WarnContext(ctx, "could not delete search index, no node available",
				slog.String("index", m.index),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}

	m.logger.InfoContext(ctx, "search index deleted", slog.String("index", m.index))
	return nil
}
