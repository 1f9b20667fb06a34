package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/flights", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, body []byte) string {
	t.Helper()
	var msg string
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		v, err := d.Str()
		msg = v
		return err
	})
	require.NoError(t, err)
	return msg
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:9999", nil).Code)
	}

	w := hit(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decodeMessage(t, w.Body.Bytes()))
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		first   func() *http.Request
		same    func() *http.Request
		another func() *http.Request
	}{
		{
			name: "remote addr",
			first: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "10.0.0.1:1234"
				return r
			},
			same: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "10.0.0.1:5678"
				return r
			},
			another: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "10.0.0.2:1234"
				return r
			},
		},
		{
			name: "x-forwarded-for first hop",
			first: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
				return r
			},
			same: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
				return r
			},
			another: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("X-Real-IP", "198.51.100.7")
				return r
			},
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get("Authorization")
			}},
			first: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer a")
				return r
			},
			same: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer a")
				return r
			},
			another: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer b")
				return r
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max = 1
			cfg.Window = time.Minute
			handler := RateLimit(cfg)(okHandler())

			serve := func(r *http.Request) int {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, r)
				return w.Code
			}
			assert.Equal(t, http.StatusOK, serve(tt.first()))
			assert.Equal(t, http.StatusOK, serve(tt.another()), "independent key")
			assert.Equal(t, http.StatusTooManyRequests, serve(tt.same()))
		})
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(RateLimitConfig{})(okHandler())

	for range 10 {
		w := hit(handler, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Time) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimit_LimiterErrorLetsRequestThrough(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Limiter: failingLimiter{}})(okHandler())

	for range 3 {
		w := hit(handler, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	l := NewMemoryLimiter(4, time.Minute)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := range 4 {
		d, err := l.Allow(ctx, "a", start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, start.Add(time.Minute), d.ResetAt)
	}
	d, err := l.Allow(ctx, "a", start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// A quarter into the next window three quarters of the previous count
	// (3 of 4) still applies, leaving room for one request.
	next := start.Add(time.Minute + 15*time.Second)
	d, err = l.Allow(ctx, "a", next)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "a", next)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Two windows later nothing carries over.
	d, err = l.Allow(ctx, "a", start.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l := NewMemoryLimiter(1, time.Second)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	d, err := l.Allow(ctx, "a", now)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = l.Allow(ctx, "a", now)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	l.Sweep(now.Add(3 * time.Second))
	assert.Empty(t, l.windows)

	d, err = l.Allow(ctx, "a", now.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
