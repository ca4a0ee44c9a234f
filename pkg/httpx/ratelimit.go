package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: RequestsPerWindow tokens refill over
// Window and at most Burst can be spent at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

func (c RateLimitConfig) limit() rate.Limit {
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// refill is how long an untouched bucket takes to fill up again.
func (c RateLimitConfig) refill() time.Duration {
	if c.RequestsPerWindow <= 0 {
		return c.Window
	}
	return time.Duration(float64(c.Window) * float64(c.Burst) / float64(c.RequestsPerWindow))
}

// Route profiles. Each can be overridden with
// RATELIMIT_<NAME>_{REQUESTS,WINDOW_SEC,BURST}.
var (
	// Credentials, MFA codes and password changes.
	StrictLimit = ParseRateLimitFromEnv("STRICT", RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5})
	// Account changes and admin reads.
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20})
	// Self-service reads and health checks.
	LenientLimit = ParseRateLimitFromEnv("LENIENT", RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100})
	// JWKS and permission checks made by other services.
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000})
)

// ParseRateLimitFromEnv overlays RATELIMIT_<prefix>_REQUESTS, _WINDOW_SEC and
// _BURST on def. Missing, malformed or non-positive values keep the default.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// KeyExtractor returns the bucket a request is charged to. An empty key
// leaves the request unlimited.
type KeyExtractor func(*http.Request) string

// UserIDKeyExtractor keys on the authenticated account.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// CompositeKeyExtractor joins the non-empty keys of several extractors.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// JSONFieldKeyExtractor keys on a top-level string field of a JSON body, such
// as the email of a login request. The body is restored for the handler.
func JSONFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return ""
		}
		v, _ := fields[fieldName].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketSet holds one bucket per key. Buckets idle long enough to have
// refilled are dropped on the next sweep, which loses nothing.
type bucketSet struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

const sweepEvery = time.Minute

func newBucketSet(cfg RateLimitConfig) *bucketSet {
	return &bucketSet{cfg: cfg, buckets: make(map[string]*bucket)}
}

// take spends one token for key. When none is left it reports how long
// until one is.
func (s *bucketSet) take(key string, now time.Time) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		idle := s.cfg.refill()
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > idle {
				delete(s.buckets, k)
			}
		}
		s.nextSweep = now.Add(sweepEvery)
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.cfg.limit(), s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, s.cfg.Window
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// RateLimitMiddleware charges each request to the bucket chosen by key and
// answers 429 with Retry-After once the bucket is empty.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	set := newBucketSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit key missing, request not limited", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := set.take(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"client_ip", ClientIP(r),
				"retry_after", retryAfter,
			)
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP keys on the resolved client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, ClientIP)
}

// RateLimitByUser keys on the account and client address, so a stolen token
// used from elsewhere gets its own bucket.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", UserIDKeyExtractor, ClientIP))
}

// RateLimitByIPAndJSONField keys on client address plus a body field. Login
// uses it with "email" so one address cannot spray a single account.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", ClientIP, JSONFieldKeyExtractor(fieldName)))
}
