package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Enabled: false})(okHandler())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimitMiddleware_BurstExceeded(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Enabled: true, RPS: 1, Burst: 2})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/users", nil)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rr.Body.String())
}

func TestTokenBucket_Refills(t *testing.T) {
	clock := time.Unix(0, 0)
	bucket := newTokenBucket(2, 1, func() time.Time { return clock })

	assert.True(t, bucket.take())
	assert.False(t, bucket.take())

	clock = clock.Add(250 * time.Millisecond)
	assert.False(t, bucket.take(), "half a token is not enough")

	clock = clock.Add(250 * time.Millisecond)
	assert.True(t, bucket.take())

	clock = clock.Add(10 * time.Second)
	assert.True(t, bucket.take())
	assert.False(t, bucket.take(), "refill is capped at burst")
}
