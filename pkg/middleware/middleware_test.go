package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
)

var testLogger = logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestRequestLogging_RequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if seen != "req-123" || w.Header().Get(HeaderRequestID) != "req-123" {
			t.Errorf("expected req-123, got context %q header %q", seen, w.Header().Get(HeaderRequestID))
		}
	})

	t.Run("generates one when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" || w.Header().Get(HeaderRequestID) != seen {
			t.Errorf("expected generated id echoed, got context %q header %q", seen, w.Header().Get(HeaderRequestID))
		}
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if code := decodeCode(t, w); code != apperrors.CodeInternal {
		t.Errorf("expected %s, got %s", apperrors.CodeInternal, code)
	}
}

func TestRequestTimeout(t *testing.T) {
	handler := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	if code := decodeCode(t, w); code != apperrors.CodeTimeout {
		t.Errorf("expected %s, got %s", apperrors.CodeTimeout, code)
	}
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{"json body", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusNoContent},
		{"form body", http.MethodPost, `a=b`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"empty post", http.MethodPost, "", "", http.StatusNoContent},
		{"get", http.MethodGet, "", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body == "" {
				req = httptest.NewRequest(tt.method, "/", nil)
			} else {
				req = httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestIdempotency(t *testing.T) {
	var calls atomic.Int32
	store := NewInMemoryIdempotencyStore(time.Hour)
	handler := Idempotency(store, testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"call":` + strconv.Itoa(int(n)) + `}}`))
	}))

	send := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := send("/bookings", "key-1")
	second := send("/bookings", "key-1")
	if calls.Load() != 1 {
		t.Fatalf("expected handler once, got %d", calls.Load())
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replay of %q, got %d %q", first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay marker header")
	}

	send("/other", "key-1")
	if calls.Load() != 2 {
		t.Errorf("same key on another path must not replay, calls=%d", calls.Load())
	}

	send("/fail", "key-2")
	send("/fail", "key-2")
	if calls.Load() != 4 {
		t.Errorf("failed responses must not be cached, calls=%d", calls.Load())
	}

	send("/bookings", "")
	send("/bookings", "")
	if calls.Load() != 6 {
		t.Errorf("requests without a key must pass through, calls=%d", calls.Load())
	}
}

func TestRateLimiter(t *testing.T) {
	store := NewInMemoryRateLimitStore(time.Minute)
	defer store.Stop()
	limiter := NewRateLimiter(store, 2, time.Minute, nil, testLogger)

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(addr, session string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		req.Header.Set("X-Session-ID", session)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if send("10.0.0.1:1000", "s-1") != http.StatusCreated || send("10.0.0.1:1001", "s-2") != http.StatusCreated {
		t.Fatal("expected first two requests allowed")
	}
	for i := 0; i < 5; i++ {
		if code := send("10.0.0.1:1002", "rotated-"+strconv.Itoa(i)); code != http.StatusTooManyRequests {
			t.Fatalf("rotating the session must not reset the limit, got %d on attempt %d", code, i)
		}
	}
	if code := send("10.0.0.2:1000", "s-1"); code != http.StatusCreated {
		t.Errorf("other addresses are limited separately, got %d", code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		window time.Duration
	}{
		{name: "zero limit and window", limit: 0, window: 0},
		{name: "zero limit", limit: 0, window: time.Minute},
		{name: "zero window", limit: 5, window: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore(tt.window)
			defer store.Stop()
			limiter := NewRateLimiter(store, tt.limit, tt.window, nil, testLogger)

			if limiter.Enabled() {
				t.Fatal("expected limiter to be disabled")
			}
			for i := 0; i < 10; i++ {
				allowed, err := limiter.Allow(context.Background(), "addr:10.0.0.1")
				if err != nil || !allowed {
					t.Fatalf("disabled limiter must admit everything, got allowed=%v err=%v", allowed, err)
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_WindowSlides(t *testing.T) {
	store := NewInMemoryRateLimitStore(time.Minute)
	defer store.Stop()

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := store.Allow(ctx, "k", 2, time.Minute); !ok {
			t.Fatalf("hit %d should be admitted", i)
		}
	}
	if ok, _ := store.Allow(ctx, "k", 2, time.Minute); ok {
		t.Fatal("third hit inside the window should be rejected")
	}

	now = now.Add(time.Minute)
	if ok, _ := store.Allow(ctx, "k", 2, time.Minute); !ok {
		t.Error("hits a full window old should no longer count")
	}
}

type failingRateLimitStore struct{}

func (failingRateLimitStore) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimiter_StoreFailureAdmits(t *testing.T) {
	limiter := NewRateLimiter(failingRateLimitStore{}, 1, time.Minute, nil, testLogger)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("expected request admitted when the store fails, got %d", w.Code)
	}
}

func TestClientAddrKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		session    string
		want       string
	}{
		{name: "ipv4", remoteAddr: "10.0.0.7:51234", want: "addr:10.0.0.7"},
		{name: "session header ignored", remoteAddr: "10.0.0.7:51234", session: "abc", want: "addr:10.0.0.7"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", want: "addr:2001:db8::1"},
		{name: "no port", remoteAddr: "10.0.0.8", want: "addr:10.0.0.8"},
		{name: "empty", remoteAddr: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.session != "" {
				req.Header.Set("X-Session-ID", tt.session)
			}
			if got := ClientAddrKey(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
