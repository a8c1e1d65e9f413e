package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// clientTTL is how long an idle client keeps its bucket.
const clientTTL = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets holds one token bucket per client address. Idle buckets are
// swept on access, at most once per ttl.
type clientBuckets struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientBuckets(rps, burst int, ttl time.Duration, now func() time.Time) *clientBuckets {
	return &clientBuckets{
		clients:   make(map[string]*client),
		limit:     rate.Limit(rps),
		burst:     burst,
		ttl:       ttl,
		lastSweep: now(),
		now:       now,
	}
}

// allow spends one token of addr's bucket.
func (b *clientBuckets) allow(addr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= b.ttl {
		for k, c := range b.clients {
			if now.Sub(c.lastSeen) >= b.ttl {
				delete(b.clients, k)
			}
		}
		b.lastSweep = now
	}

	c, ok := b.clients[addr]
	if !ok {
		c = &client{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.clients[addr] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (b *clientBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// RateLimit caps each client address at rps requests per second with bursts
// of up to burst. Rejected requests get 429 RATE_LIMITED. rps <= 0 disables
// the limit.
func RateLimit(rps, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(rps, burst, clientTTL, time.Now, l)
}

func rateLimit(rps, burst int, ttl time.Duration, now func() time.Time, l *slog.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = rps
	}
	buckets := newClientBuckets(rps, burst, ttl, now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if !buckets.allow(addr) {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("client", addr),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "RATE_LIMITED",
						Message:   "too many requests, slow down",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr is the host part of RemoteAddr. Forwarded headers are not
// trusted here; a proxy in front is expected to rewrite RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
