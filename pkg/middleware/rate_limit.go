package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "agendly/pkg/errors"
	httputil "agendly/pkg/http"
	"agendly/pkg/logger"
)

const defaultRateLimitCleanup = time.Minute

type KeyExtractor func(r *http.Request) string

// RateLimitStore counts hits per key over a trailing window. Allow records
// the hit only when it is admitted.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimiter is a sliding window limiter keyed by whatever the extractor
// returns. An empty key is never limited, and neither is anything when the
// limit or window is not positive.
type RateLimiter struct {
	store     RateLimitStore
	limit     int
	window    time.Duration
	extractor KeyExtractor
	log       *logger.Logger
}

func NewRateLimiter(store RateLimitStore, limit int, window time.Duration, extractor KeyExtractor, log *logger.Logger) *RateLimiter {
	if extractor == nil {
		extractor = ClientAddrKey
	}
	return &RateLimiter{
		store:     store,
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
	}
}

func (rl *RateLimiter) Enabled() bool {
	return rl.store != nil && rl.limit > 0 && rl.window > 0
}

func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" || !rl.Enabled() {
		return true, nil
	}
	return rl.store.Allow(ctx, key, rl.limit, rl.window)
}

// Middleware rejects callers over the limit with 429. A failing store lets
// the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.extractor(r)
		allowed, err := rl.Allow(r.Context(), key)
		if err != nil {
			rl.log.Warn("Rate limit store unavailable, admitting request",
				"request_id", RequestIDFrom(r.Context()),
				"key", key,
				"error", err,
			)
			allowed = true
		}
		if !allowed {
			rl.log.Warn("Rate limit exceeded",
				"request_id", RequestIDFrom(r.Context()),
				"key", key,
				"path", r.URL.Path,
			)
			_ = httputil.WriteError(w, apperrors.RateLimited("Too many booking attempts, try again shortly"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientAddrKey keys callers by the address of the connection. Client
// supplied headers are ignored since rotating them would reset the count.
func ClientAddrKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		return ""
	}
	return "addr:" + host
}

type rateWindow struct {
	hits   []time.Time
	window time.Duration
}

// InMemoryRateLimitStore keeps counts in process memory, so each replica
// limits on its own. Use the Redis store when replicas share traffic.
type InMemoryRateLimitStore struct {
	mu       sync.Mutex
	keys     map[string]*rateWindow
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryRateLimitStore(cleanupEvery time.Duration) *InMemoryRateLimitStore {
	if cleanupEvery <= 0 {
		cleanupEvery = defaultRateLimitCleanup
	}
	store := &InMemoryRateLimitStore{
		keys:   make(map[string]*rateWindow),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	go store.cleanup(cleanupEvery)

	return store
}

func (s *InMemoryRateLimitStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, w := range s.keys {
				if len(w.hits) == 0 || now.Sub(w.hits[len(w.hits)-1]) >= w.window {
					delete(s.keys, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryRateLimitStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.keys[key]
	if !ok {
		w = &rateWindow{}
		s.keys[key] = w
	}
	w.window = window

	valid := w.hits[:0]
	for _, ts := range w.hits {
		if now.Sub(ts) < window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= limit {
		w.hits = valid
		return false, nil
	}

	w.hits = append(valid, now)
	return true, nil
}
