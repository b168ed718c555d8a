package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_login_attempts_total",
			Help: "Login attempts by credential backend and result.",
		},
		[]string{"backend", "result"},
	)

	directoryAuthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authcore_directory_auth_seconds",
			Help:    "Directory bind+search latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_permission_cache_lookups_total",
			Help: "Permission cache lookups by entry level and result.",
		},
		[]string{"level", "result"},
	)

	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_authorization_decisions_total",
			Help: "Authorization gate decisions.",
		},
		[]string{"decision"},
	)
)

// Init registers all service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttempts, directoryAuthDuration, cacheLookups, authzDecisions,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLogin counts one authentication attempt.
func RecordLogin(backend string, ok bool) {
	loginAttempts.WithLabelValues(backend, resultLabel(ok)).Inc()
}

// ObserveDirectoryAuth records one directory round-trip.
func ObserveDirectoryAuth(d time.Duration, result string) {
	directoryAuthDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordCacheLookup counts one permission cache lookup.
// level is "grantgroup" or "principal"; result is "hit", "miss" or "error".
func RecordCacheLookup(level, result string) {
	cacheLookups.WithLabelValues(level, result).Inc()
}

// RecordAuthzDecision counts one gate decision ("allow", "deny", "unauthorized").
func RecordAuthzDecision(decision string) {
	authzDecisions.WithLabelValues(decision).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath normalizes a request path for metric labels: the query string
// is dropped and trailing slashes are trimmed to keep cardinality bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
