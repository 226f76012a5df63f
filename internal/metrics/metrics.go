package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: results served from the result cache.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spamcheck_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
	)

	// Counter: lookups that had to go to the backend.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spamcheck_cache_misses_total",
			Help: "Total number of result cache misses.",
		},
	)

	// Counter: storage errors absorbed by the fail-open cache.
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spamcheck_cache_errors_total",
			Help: "Cache storage errors treated as miss or no-op.",
		},
		[]string{"op"},
	)

	// Counter: model answers that needed the keyword heuristic.
	HeuristicFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spamcheck_heuristic_fallbacks_total",
			Help: "Model responses that did not match the requested format.",
		},
		[]string{"format"},
	)

	// Counter: verdicts returned to callers.
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spamcheck_verdicts_total",
			Help: "Classification results by verdict and cache source.",
		},
		[]string{"is_spam", "cached"},
	)

	// Histogram: time spent waiting on the text generator.
	BackendLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spamcheck_backend_latency_seconds",
			Help:    "Latency of generate calls to the LLM backend in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"backend", "outcome"},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spamcheck_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"path", "method", "status_code"},
	)

	registerOnce sync.Once
)

// Register is called once in main() to register metrics.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheHitsTotal,
			CacheMissesTotal,
			CacheErrorsTotal,
			HeuristicFallbacksTotal,
			VerdictsTotal,
			BackendLatencySeconds,
			HTTPLatencySeconds,
		)
	})
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request. The route pattern is
// used as the path label so cardinality stays bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
