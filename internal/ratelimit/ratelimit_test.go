package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, cfg Config) (*Pool, *time.Time) {
	t.Helper()
	p := NewPool(cfg)
	t.Cleanup(p.Close)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestPool_BurstThenRefill(t *testing.T) {
	p, now := newTestPool(t, Config{RPS: 1, Burst: 2})

	ok, info := p.Allow("alice")
	require.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = p.Allow("alice")
	require.True(t, ok)

	ok, info = p.Allow("alice")
	assert.False(t, ok)
	assert.Greater(t, info.RetryAfter, time.Duration(0))

	// Other keys have their own bucket.
	ok, _ = p.Allow("bob")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	ok, _ = p.Allow("alice")
	assert.True(t, ok)
}

func TestPool_CleanupForgetsIdleKeys(t *testing.T) {
	p, now := newTestPool(t, Config{RPS: 1, Burst: 1, TTL: time.Minute})

	p.Allow("alice")
	*now = now.Add(30 * time.Second)
	p.Allow("bob")
	*now = now.Add(45 * time.Second)

	p.cleanup()
	assert.Equal(t, 1, p.Len())
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.3")
	assert.Equal(t, "203.0.113.7", GetClientIP(r))
}
