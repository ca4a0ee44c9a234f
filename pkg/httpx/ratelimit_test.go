package httpx_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// hit sends one GET from remoteAddr and returns the recorder.
func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	extract := httpx.JSONFieldKeyExtractor("email")

	t.Run("normalises the field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":" Thandi@AssetFlow.example ","password":"x"}`))
		require.Equal(t, "thandi@assetflow.example", extract(req))
	})

	t.Run("handler can still read the body", func(t *testing.T) {
		payload := `{"email":"sipho@assetflow.example"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))

		_ = extract(req)
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, payload, string(body))
	})

	for name, body := range map[string]string{
		"missing field":  `{"username":"x"}`,
		"non-string":     `{"email":42}`,
		"malformed json": `{"email":`,
		"not an object":  `["email"]`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			require.Empty(t, extract(req))
		})
	}
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := httpx.CompositeKeyExtractor(":", httpx.ClientIP, httpx.JSONFieldKeyExtractor("email"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"thandi@assetflow.example"}`))
	req.RemoteAddr = "196.201.214.10:51000"
	require.Equal(t, "196.201.214.10:thandi@assetflow.example", extract(req))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.RemoteAddr = "196.201.214.10:51000"
	require.Equal(t, "196.201.214.10", extract(req), "empty parts are skipped")
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("burst then 429", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3})(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, hit(h, "196.201.214.10:51000").Code, "request %d", i+1)
		}
		rec := hit(h, "196.201.214.10:51000")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "20", rec.Header().Get("Retry-After"), "one token refills every 20s")
	})

	t.Run("each client has its own bucket", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})(okHandler)

		require.Equal(t, http.StatusOK, hit(h, "196.201.214.10:51000").Code)
		require.Equal(t, http.StatusTooManyRequests, hit(h, "196.201.214.10:51001").Code, "port does not matter")
		require.Equal(t, http.StatusOK, hit(h, "41.76.108.2:51000").Code)
	})

	t.Run("rejected requests do not spend tokens", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})(okHandler)

		require.Equal(t, http.StatusOK, hit(h, "196.201.214.10:51000").Code)
		for range 5 {
			rec := hit(h, "196.201.214.10:51000")
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
			require.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	})

	t.Run("empty key is not limited", func(t *testing.T) {
		noKey := func(*http.Request) string { return "" }
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, noKey)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, hit(h, "196.201.214.10:51000").Code)
		}
	})

	t.Run("429 response shape", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})(okHandler)

		hit(h, "196.201.214.10:51000")
		rec := hit(h, "196.201.214.10:51000")

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.JSONEq(t, `{"error":"rate_limit_exceeded","error_description":"Too many requests. Please try again later."}`, rec.Body.String())
	})
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	tp, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.Chain(okHandler, httpx.ClientIPMiddleware(tp), httpx.RateLimitByIP(cfg))

	send := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("clients behind the proxy get separate buckets", func(t *testing.T) {
		require.Equal(t, http.StatusOK, send("10.0.0.5:8080", "196.201.214.10"))
		require.Equal(t, http.StatusOK, send("10.0.0.5:8080", "41.76.108.2"))
		require.Equal(t, http.StatusTooManyRequests, send("10.0.0.5:8080", "196.201.214.10"))
	})

	t.Run("untrusted peer cannot rotate forwarded addresses", func(t *testing.T) {
		require.Equal(t, http.StatusOK, send("185.220.101.1:4444", "1.1.1.1"))
		require.Equal(t, http.StatusTooManyRequests, send("185.220.101.1:4444", "2.2.2.2"))
	})
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	h := httpx.RateLimitByIPAndJSONField(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}, "email")(okHandler)

	login := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(fmt.Sprintf(`{"email":%q}`, email)))
		req.RemoteAddr = "196.201.214.10:51000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, login("thandi@assetflow.example"))
	require.Equal(t, http.StatusOK, login("Thandi@AssetFlow.example"))
	require.Equal(t, http.StatusTooManyRequests, login("thandi@assetflow.example"))
	require.Equal(t, http.StatusOK, login("sipho@assetflow.example"))
}

func TestRateLimitProfiles(t *testing.T) {
	ordered := []httpx.RateLimitConfig{httpx.StrictLimit, httpx.ModerateLimit, httpx.LenientLimit, httpx.PublicLimit}
	for i, cfg := range ordered {
		require.Positive(t, cfg.RequestsPerWindow)
		require.Positive(t, cfg.Window)
		require.Positive(t, cfg.Burst)
		if i > 0 {
			require.Less(t, ordered[i-1].RequestsPerWindow, cfg.RequestsPerWindow)
		}
	}
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	tests := []struct {
		name string
		env  map[string]string
		want httpx.RateLimitConfig
	}{
		{
			name: "defaults",
			want: def,
		},
		{
			name: "all overridden",
			env: map[string]string{
				"RATELIMIT_TEST_REQUESTS":   "200",
				"RATELIMIT_TEST_WINDOW_SEC": "30",
				"RATELIMIT_TEST_BURST":      "250",
			},
			want: httpx.RateLimitConfig{RequestsPerWindow: 200, Window: 30 * time.Second, Burst: 250},
		},
		{
			name: "partial override",
			env:  map[string]string{"RATELIMIT_TEST_WINDOW_SEC": "120"},
			want: httpx.RateLimitConfig{RequestsPerWindow: 10, Window: 2 * time.Minute, Burst: 10},
		},
		{
			name: "junk keeps defaults",
			env: map[string]string{
				"RATELIMIT_TEST_REQUESTS":   "lots",
				"RATELIMIT_TEST_WINDOW_SEC": "-10",
				"RATELIMIT_TEST_BURST":      "0",
			},
			want: def,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			require.Equal(t, tt.want, httpx.ParseRateLimitFromEnv("TEST", def))
		})
	}
}

func BenchmarkRateLimitManyClients(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1_000_000, Window: time.Minute, Burst: 1000})(okHandler)

	for i := 0; b.Loop(); i++ {
		hit(h, fmt.Sprintf("10.%d.%d.1:443", i%250, (i/250)%250))
	}
}
