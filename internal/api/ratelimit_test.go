package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRoutesAreRateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 2}})
	creds := map[string]string{"email": "nobody@afriart.test", "password": "guess"}

	for i := 0; i < 2; i++ {
		status, _ := env.callJSON(t, http.MethodPost, "/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := env.callJSON(t, http.MethodPost, "/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests, please try again later", body["error"])

	status, _ = env.call(t, http.MethodGet, "/artworks", "", nil)
	assert.Equal(t, http.StatusOK, status, "catalog routes are not limited")
}

func TestLimiterDisabledWithoutRate(t *testing.T) {
	assert.Nil(t, newIPLimiter(RateLimit{}))

	env := newTestEnv(t, Options{})
	for i := 0; i < 5; i++ {
		status, _ := env.callJSON(t, http.MethodPost, "/login", "", map[string]string{"email": "a@b.c", "password": "x"})
		require.Equal(t, http.StatusUnauthorized, status)
	}
}

func TestLimiterSweepDropsIdleVisitors(t *testing.T) {
	l := newIPLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"), "burst of one")

	now = now.Add(idleLimiterTTL + time.Second)
	require.True(t, l.allow("10.0.0.2"))
	assert.Equal(t, 1, l.sweep())
	assert.Len(t, l.visitors, 1)

	assert.True(t, l.allow("10.0.0.1"), "a swept visitor starts with a fresh bucket")
}

func TestClientIP(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	r.RemoteAddr = "192.0.2.10:51234"
	assert.Equal(t, "192.0.2.10", clientIP(r))
	r.RemoteAddr = "192.0.2.11"
	assert.Equal(t, "192.0.2.11", clientIP(r))
}
