package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiter_Allow(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(Config{RequestsPerMinute: 3}, c.now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other clients are independent")
	assert.Equal(t, int64(1), rl.GetMetrics().TotalHits)

	c.t = c.t.Add(20 * time.Second)
	assert.False(t, rl.Allow("1.2.3.4"), "window does not slide on each request")
	assert.Equal(t, 40*time.Second, rl.RetryAfter("1.2.3.4"))

	c.t = c.t.Add(41 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	c := &clock{t: time.Now()}
	rl := newLimiter(Config{RequestsPerMinute: 10}, c.now)
	rl.Allow("a")
	c.t = c.t.Add(11 * time.Minute)
	rl.Allow("b")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_MiddlewareOnlyLimitsListedMethods(t *testing.T) {
	c := &clock{t: time.Now()}
	rl := newLimiter(Config{RequestsPerMinute: 1}, c.now)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/api/transactions", nil))
		return rr
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost).Code)
	rr := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(http.MethodGet).Code)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
