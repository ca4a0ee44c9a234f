package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetflow"

// Metrics groups every collector the service exports. All methods are safe to
// call on a nil *Metrics so packages can be exercised without a registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginOutcomes     *prometheus.CounterVec
	lockouts          *prometheus.CounterVec
	reputationLookups *prometheus.CounterVec
	authzDecisions    *prometheus.CounterVec
	auditEvents       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	buildInfo         *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Terminal outcomes of the login flow.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts temp-disabled or suspended, by trigger.",
		}, []string{"status", "trigger"}),
		reputationLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_reputation_lookups_total",
			Help:      "IP reputation lookups by result.",
		}, []string{"result"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Permission evaluations by deciding layer and effect.",
		}, []string{"layer", "effect"}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Audit events by fate: written, dropped_full, dropped_error.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Security notifications by kind and delivery result.",
		}, []string{"kind", "result"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, value is always 1.",
		}, []string{"version"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.loginOutcomes, m.lockouts, m.reputationLookups, m.authzDecisions,
		m.auditEvents, m.notifications, m.buildInfo,
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version).Set(1)
}

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout(status, trigger string) {
	if m == nil {
		return
	}
	m.lockouts.WithLabelValues(status, trigger).Inc()
}

func (m *Metrics) ReputationLookup(result string) {
	if m == nil {
		return
	}
	m.reputationLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AuthzDecision(layer, effect string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(layer, effect).Inc()
}

func (m *Metrics) AuditEvents(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.auditEvents.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

// Instrument records request count, latency and in-flight gauge.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := CanonicalPath(r.URL.Path)
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath collapses path parameters so label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	switch {
	case strings.HasPrefix(p, "/v1/auth/devices/"):
		return "/v1/auth/devices/:id"
	case strings.HasPrefix(p, "/v1/admin/accounts/") && strings.HasSuffix(p, "/login-history"):
		return "/v1/admin/accounts/:id/login-history"
	case strings.HasPrefix(p, "/swagger/"):
		return "/swagger/"
	}
	return p
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
