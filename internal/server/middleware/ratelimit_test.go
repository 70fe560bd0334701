package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubLimiter is a scriptable domain.RateLimiter.
type stubLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.lastKey = key
	return s.allowed, s.err
}

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed request passes", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		h := RateLimit(limiter, 10, time.Minute)(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "api:203.0.113.9", limiter.lastKey)
	})

	t.Run("denied request gets 429", func(t *testing.T) {
		h := RateLimit(&stubLimiter{allowed: false}, 10, time.Minute)(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markets", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, rec.Body.String())
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		h := RateLimit(&stubLimiter{err: errors.New("redis down")}, 10, time.Minute)(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markets", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("real ip header used when no forwarded header", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		h := RateLimit(limiter, 10, time.Minute)(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.Header.Set("X-Real-IP", "192.0.2.44")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "api:192.0.2.44", limiter.lastKey)
	})

	t.Run("forwarded header wins over remote addr", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		h := RateLimit(limiter, 10, time.Minute)(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "api:198.51.100.7", limiter.lastKey)
	})
}
