package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/logger"
)

const testIndex = "catalog_items"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeNode is an httptest Elasticsearch node. Handlers are keyed by
// "METHOD /path"; unmatched requests get a 500.
type fakeNode struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
	server   *httptest.Server
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{routes: make(map[string]http.HandlerFunc)}
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n.mu.Lock()
		n.requests = append(n.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
		h, ok := n.routes[r.Method+" "+r.URL.Path]
		n.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"type":"unexpected_request","reason":"no route"},"status":500}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) on(method, path string, h http.HandlerFunc) {
	n.mu.Lock()
	n.routes[method+" "+path] = h
	n.mu.Unlock()
}

// reply registers a fixed status and body.
func (n *fakeNode) reply(method, path string, status int, body string) {
	n.on(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// drop closes the connection without answering.
func (n *fakeNode) drop(method, path string) {
	n.on(method, path, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("hijacking not supported")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})
}

func (n *fakeNode) count(method, path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, r := range n.requests {
		if r.Method == method && r.Path == path {
			c++
		}
	}
	return c
}

func (n *fakeNode) last(method, path string) (recordedRequest, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.requests) - 1; i >= 0; i-- {
		if n.requests[i].Method == method && n.requests[i].Path == path {
			return n.requests[i], true
		}
	}
	return recordedRequest{}, false
}

func (n *fakeNode) client(t *testing.T) *elasticsearch.Client {
	t.Helper()
	c, err := NewClient(ClientConfig{Hosts: []string{n.server.URL}}, logger.Discard())
	require.NoError(t, err)
	return c
}

// unreachableClient points at a port nothing listens on.
func unreachableClient(t *testing.T) *elasticsearch.Client {
	t.Helper()
	c, err := NewClient(ClientConfig{Hosts: []string{"http://127.0.0.1:1"}}, logger.Discard())
	require.NoError(t, err)
	return c
}

type fakeFinder struct {
	mu    sync.Mutex
	items map[int64]domain.Item
	calls [][]int64
}

func newFakeFinder(items ...domain.Item) *fakeFinder {
	f := &fakeFinder{items: make(map[int64]domain.Item)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeFinder) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, apperrors.NotFound("catalog item", id)
	}
	return &it, nil
}

// FindByIDs answers in ascending id order, unlike the hit order.
func (f *fakeFinder) FindByIDs(_ context.Context, ids []int64) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	var out []domain.Item
	for _, id := range sorted {
		if it, ok := f.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
