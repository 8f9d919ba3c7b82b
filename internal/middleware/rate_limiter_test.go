package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabric/gateway/internal/database"
)

func testLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg, slog.Default())
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowWithinLimit(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxCallsPerMinute: 5, BurstSize: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("acct-1"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("acct-1"))
}

func TestAllowIsolatesKeys(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxCallsPerMinute: 2, BurstSize: 2})

	assert.True(t, rl.Allow("acct-1"))
	assert.True(t, rl.Allow("acct-1"))
	assert.False(t, rl.Allow("acct-1"))

	assert.True(t, rl.Allow("acct-2"))
}

func TestMiddlewareKeysOnAccount(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})

	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(accountID string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
		if accountID != "" {
			ctx := WithAccount(req.Context(), &AccountContext{
				Account: database.Account{ID: accountID},
				Plan:    PlanFor("PRO"),
			})
			req = req.WithContext(ctx)
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("acct-1"))
	assert.Equal(t, http.StatusTooManyRequests, do("acct-1"))
	// A different account gets its own window.
	assert.Equal(t, http.StatusOK, do("acct-2"))
}

func TestMiddlewareSetsRetryAfter(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})

	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	rec = httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestStats(t *testing.T) {
	rl := testLimiter(t, RateLimitConfig{MaxCallsPerMinute: 10, BurstSize: 20})

	rl.Allow("acct-1")
	rl.Allow("acct-2")

	stats := rl.Stats()
	assert.Equal(t, 2, stats["active_windows"])
	assert.Equal(t, 10, stats["max_calls_per_min"])
	assert.Equal(t, 20, stats["burst_size"])
}
