package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	t.Run("cidrs and bare addresses", func(t *testing.T) {
		tp, err := httpx.ParseTrustedProxies([]string{" 10.0.0.0/8", "172.20.0.5", "", "fd00::/8"})
		require.NoError(t, err)
		require.False(t, tp.Empty())
	})

	t.Run("nothing trusted by default", func(t *testing.T) {
		tp, err := httpx.ParseTrustedProxies(nil)
		require.NoError(t, err)
		require.True(t, tp.Empty())
		require.True(t, httpx.TrustedProxies{}.Empty())
	})

	for _, bad := range []string{"10.0.0.0/33", "proxy.internal", "10.0.0"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := httpx.ParseTrustedProxies([]string{bad})
			require.ErrorContains(t, err, bad)
		})
	}
}

func TestTrustedProxiesResolve(t *testing.T) {
	tp, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8", "172.20.0.5"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		realIP string
		want   string
	}{
		{
			name:   "untrusted peer ignores forwarded for",
			remote: "185.220.101.1:4444",
			xff:    []string{"196.201.214.10"},
			want:   "185.220.101.1",
		},
		{
			name:   "untrusted peer ignores real ip",
			remote: "185.220.101.1:4444",
			realIP: "196.201.214.10",
			want:   "185.220.101.1",
		},
		{
			name:   "trusted peer honours forwarded for",
			remote: "10.1.2.3:8080",
			xff:    []string{"196.201.214.10"},
			want:   "196.201.214.10",
		},
		{
			name:   "client-prepended entries are not reached",
			remote: "10.1.2.3:8080",
			xff:    []string{"1.1.1.1, 196.201.214.10"},
			want:   "196.201.214.10",
		},
		{
			name:   "trusted hops are skipped",
			remote: "10.1.2.3:8080",
			xff:    []string{"196.201.214.10, 172.20.0.5, 10.9.9.9"},
			want:   "196.201.214.10",
		},
		{
			name:   "repeated headers are one list",
			remote: "10.1.2.3:8080",
			xff:    []string{"1.1.1.1", "196.201.214.10"},
			want:   "196.201.214.10",
		},
		{
			name:   "all hops trusted yields the outermost",
			remote: "10.1.2.3:8080",
			xff:    []string{"10.7.7.7, 172.20.0.5"},
			want:   "10.7.7.7",
		},
		{
			name:   "malformed hop stops the walk",
			remote: "10.1.2.3:8080",
			xff:    []string{"196.201.214.10, not-an-ip, 10.9.9.9"},
			want:   "10.9.9.9",
		},
		{
			name:   "trusted peer falls back to real ip",
			remote: "172.20.0.5:8080",
			realIP: "196.201.214.10",
			want:   "196.201.214.10",
		},
		{
			name:   "trusted peer without headers",
			remote: "10.1.2.3:8080",
			want:   "10.1.2.3",
		},
		{
			name:   "ipv4-mapped peer is trusted",
			remote: "[::ffff:10.1.2.3]:8080",
			xff:    []string{"196.201.214.10"},
			want:   "196.201.214.10",
		},
		{
			name:   "remote without port",
			remote: "185.220.101.1",
			want:   "185.220.101.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			require.Equal(t, tt.want, tp.Resolve(req))
		})
	}
}

func TestClientIP(t *testing.T) {
	tp, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var got string
	h := httpx.ClientIPMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = httpx.ClientIP(r)
	}))

	t.Run("middleware stores the resolved address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:8080"
		req.Header.Set("X-Forwarded-For", "196.201.214.10")
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.Equal(t, "196.201.214.10", got)
	})

	t.Run("spoofed header from the internet is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "185.220.101.1:4444"
		req.Header.Set("X-Forwarded-For", "196.201.214.10")
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.Equal(t, "185.220.101.1", got)
	})

	t.Run("without middleware only the peer counts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:8080"
		req.Header.Set("X-Forwarded-For", "196.201.214.10")
		require.Equal(t, "10.1.2.3", httpx.ClientIP(req))
	})
}
