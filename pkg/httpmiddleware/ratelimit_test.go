package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rateLimitedHandler(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(ctx, cfg)(next)
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_EnforcesBudget(t *testing.T) {
	h := rateLimitedHandler(t, RateLimitConfig{Max: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_PerClient(t *testing.T) {
	h := rateLimitedHandler(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:9999").Code, "same IP, different port")
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1234").Code, "different client has its own budget")
}

func TestRateLimit_WindowResets(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		windows: make(map[string]*window),
	}
	base := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	_, _, allowed := rl.allow("client", base)
	assert.True(t, allowed)
	_, _, allowed = rl.allow("client", base.Add(time.Second))
	assert.False(t, allowed)
	_, _, allowed = rl.allow("client", base.Add(time.Minute+time.Second))
	assert.True(t, allowed, "new window grants a fresh budget")
}

func TestRateLimit_Cleanup(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		windows: make(map[string]*window),
	}
	base := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	rl.allow("stale", base)
	rl.allow("fresh", base.Add(90*time.Second))

	rl.cleanup(base.Add(2*time.Minute + time.Second))
	assert.NotContains(t, rl.windows, "stale")
	assert.Contains(t, rl.windows, "fresh")
}
