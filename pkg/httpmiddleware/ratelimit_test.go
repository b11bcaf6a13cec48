package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	w := hit(handler, "10.0.0.1:9999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:9999", nil).Code)

	w = hit(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var code int
	var msg string
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			code, err = d.Int()
		case "message":
			msg, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Rate limit exceeded", msg)
}

func TestRateLimit_PerClient(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-Client") },
	})(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", map[string]string{"X-Client": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "2.2.2.2:2", map[string]string{"X-Client": "a"}).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", map[string]string{"X-Client": "b"}).Code)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	t.Run("IgnoredByDefault", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

		assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:4444", map[string]string{"X-Forwarded-For": "10.0.0.1"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.1:4445", map[string]string{"X-Forwarded-For": "10.0.0.2"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.1:4446", map[string]string{"X-Real-IP": "10.0.0.3"}).Code)
	})
	t.Run("TrustedUsesLastHop", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, TrustForwarded: true})(okHandler())

		// The client controls everything before the proxy-appended hop.
		assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:4444", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.50"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.2:5555", map[string]string{"X-Forwarded-For": "2.2.2.2, 203.0.113.50"}).Code)
		assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.2:5555", map[string]string{"X-Forwarded-For": "203.0.113.51"}).Code)
	})
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()

	_, _, ok := rl.allow("k", now)
	require.True(t, ok)

	_, retry, ok := rl.allow("k", now)
	require.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	_, _, ok = rl.allow("k", now.Add(time.Second))
	assert.True(t, ok)
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 5, Window: time.Second})
	now := time.Now()

	rl.allow("old", now)
	rl.allow("fresh", now.Add(3*time.Second))
	rl.evict(now.Add(3 * time.Second))

	assert.NotContains(t, rl.visitors, "old")
	assert.Contains(t, rl.visitors, "fresh")
}
