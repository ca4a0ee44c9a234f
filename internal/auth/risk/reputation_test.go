package risk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/assetflow/internal/auth/risk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func abuseServer(t *testing.T, data map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/check", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Key"))
		require.NotEmpty(t, r.URL.Query().Get("ipAddress"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(url string) *risk.AbuseIPDB {
	c := risk.NewAbuseIPDB("test-key", "ke", 70, time.Second)
	c.BaseURL = url
	return c
}

func TestAbuseIPDBClassification(t *testing.T) {
	clean := map[string]any{"countryCode": "KE", "usageType": "Fixed Line ISP", "isp": "Safaricom", "abuseConfidenceScore": 0}

	cases := []struct {
		name       string
		override   map[string]any
		suspicious bool
		reason     string
	}{
		{"clean domestic", nil, false, "isp: Safaricom"},
		{"tor exit", map[string]any{"isTor": true}, true, "vpn/proxy/tor"},
		{"vpn isp", map[string]any{"isp": "NordVPN"}, true, "vpn/proxy/tor"},
		{"datacenter", map[string]any{"usageType": "Data Center/Web Hosting/Transit"}, true, "hosting/datacenter"},
		{"reverse dns", map[string]any{"hostnames": []string{"scan.example.net"}}, true, "hostnames: scan.example.net"},
		{"foreign", map[string]any{"countryCode": "US"}, true, "foreign country: US"},
		{"abusive", map[string]any{"abuseConfidenceScore": 71}, true, "abuse_score: 71"},
		{"at limit", map[string]any{"abuseConfidenceScore": 70}, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := map[string]any{}
			for k, v := range clean {
				data[k] = v
			}
			for k, v := range tc.override {
				data[k] = v
			}
			srv, _ := abuseServer(t, data)

			v, err := newClient(srv.URL).Check(context.Background(), "41.90.1.1")
			require.NoError(t, err)
			require.Equal(t, tc.suspicious, v.Suspicious)
			require.Contains(t, v.Reason, tc.reason)
		})
	}
}

func TestAbuseIPDBErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := risk.NewAbuseIPDB("", "KE", 70, 0).Check(context.Background(), "1.1.1.1")
		require.ErrorIs(t, err, risk.ErrNotConfigured)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := newClient(srv.URL).Check(context.Background(), "1.1.1.1")
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		c := newClient(srv.URL)
		c.Client.Timeout = 50 * time.Millisecond
		_, err := c.Check(context.Background(), "1.1.1.1")
		require.Error(t, err)
	})
}

type stubChecker struct {
	v     risk.Verdict
	err   error
	calls int
}

func (s *stubChecker) Check(context.Context, string) (risk.Verdict, error) {
	s.calls++
	return s.v, s.err
}

func TestAssessor(t *testing.T) {
	ctx := context.Background()

	t.Run("clean", func(t *testing.T) {
		a := &risk.Assessor{Checker: &stubChecker{v: risk.Verdict{Reason: "ok"}}, ScoreLimit: 70}
		got := a.Assess(ctx, "1.1.1.1")
		require.False(t, got.Suspicious)
		require.Zero(t, got.FraudScore)
		require.False(t, got.Degraded)
	})

	t.Run("suspicious scores 100", func(t *testing.T) {
		a := &risk.Assessor{Checker: &stubChecker{v: risk.Verdict{Suspicious: true, Reason: "tor"}}, ScoreLimit: 70}
		got := a.Assess(ctx, "1.1.1.1")
		require.True(t, got.Suspicious)
		require.Equal(t, 100, got.FraudScore)
	})

	t.Run("failure closes by default", func(t *testing.T) {
		a := &risk.Assessor{Checker: &stubChecker{err: errors.New("down")}, ScoreLimit: 70}
		got := a.Assess(ctx, "1.1.1.1")
		require.True(t, got.Suspicious)
		require.True(t, got.Degraded)
		require.Contains(t, got.Reason, "down")
	})

	t.Run("no checker closes", func(t *testing.T) {
		got := (&risk.Assessor{ScoreLimit: 70}).Assess(ctx, "1.1.1.1")
		require.True(t, got.Suspicious)
	})

	t.Run("fail open still exceeds score limit", func(t *testing.T) {
		a := &risk.Assessor{Checker: &stubChecker{err: errors.New("down")}, ScoreLimit: 70, FailOpen: true}
		got := a.Assess(ctx, "1.1.1.1")
		require.False(t, got.Suspicious)
		require.True(t, got.Degraded)
		require.Equal(t, 71, got.FraudScore)
	})
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCachedChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("caches successful lookups", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		next := &stubChecker{v: risk.Verdict{Suspicious: true, Reason: "tor", AbuseScore: 90}}
		c := &risk.CachedChecker{Next: next, Redis: rdb, TTL: time.Hour}

		first, err := c.Check(ctx, "5.5.5.5")
		require.NoError(t, err)
		second, err := c.Check(ctx, "5.5.5.5")
		require.NoError(t, err)

		require.Equal(t, 1, next.calls)
		require.Equal(t, first.Reason, second.Reason)
		require.True(t, second.Suspicious)
		require.True(t, mr.Exists("reputation:5.5.5.5"))
		require.Equal(t, time.Hour, mr.TTL("reputation:5.5.5.5"))

		mr.FastForward(2 * time.Hour)
		_, err = c.Check(ctx, "5.5.5.5")
		require.NoError(t, err)
		require.Equal(t, 2, next.calls)
	})

	t.Run("does not cache failures", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		next := &stubChecker{err: errors.New("down")}
		c := &risk.CachedChecker{Next: next, Redis: rdb, TTL: time.Hour}

		_, err := c.Check(ctx, "6.6.6.6")
		require.Error(t, err)
		require.False(t, mr.Exists("reputation:6.6.6.6"))
	})

	t.Run("redis outage falls through", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		mr.Close()
		next := &stubChecker{v: risk.Verdict{Reason: "ok"}}
		c := &risk.CachedChecker{Next: next, Redis: rdb, TTL: time.Hour}

		v, err := c.Check(ctx, "7.7.7.7")
		require.NoError(t, err)
		require.Equal(t, "ok", v.Reason)
	})

	t.Run("end to end with abuseipdb", func(t *testing.T) {
		_, rdb := newTestRedis(t)
		srv, calls := abuseServer(t, map[string]any{"countryCode": "KE", "abuseConfidenceScore": 1})
		c := &risk.CachedChecker{Next: newClient(srv.URL), Redis: rdb, TTL: time.Minute}

		for range 3 {
			v, err := c.Check(ctx, "41.90.1.1")
			require.NoError(t, err)
			require.False(t, v.Suspicious)
		}
		require.EqualValues(t, 1, calls.Load())
	})
}
