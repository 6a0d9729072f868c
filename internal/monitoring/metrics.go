package monitoring

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetpipe"

// Metrics collects the Prometheus metrics of the asset server. Every metric
// is registered on the registry given to NewMetrics, never on the global
// default.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.SummaryVec
	notFound        prometheus.Counter
	notModified     prometheus.Counter
	reloads         prometheus.Counter
	setFailures     prometheus.Gauge
	conflicts       prometheus.Gauge
}

// NewMetrics creates the metrics on a fresh registry together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route"},
		),
		responseSize: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Subsystem:  "http",
				Name:       "response_size_bytes",
				Help:       "HTTP response size in bytes",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"route"},
		),
		notFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "not_found_total",
			Help:      "Asset requests that resolved to no file",
		}),
		notModified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "not_modified_total",
			Help:      "Asset requests answered with 304 Not Modified",
		}),
		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "reloads_total",
			Help:      "Cache resets triggered by file changes",
		}),
		setFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "failed_sets",
			Help:      "Asset sets that failed to compile at startup",
		}),
		conflicts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "package_conflicts",
			Help:      "Asset names excluded because two packages of equal rank provide them",
		}),
	}
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CacheStats reports content cache counters.
type CacheStats interface {
	Stats() (hits, misses int64)
	Len() int
}

// BuildStats reports content plan builds.
type BuildStats interface {
	SourceBuilds() int64
	ContentBuilds() int64
	Len() int
}

// ObserveCaches exposes cache and build counters as function-backed metrics.
func (m *Metrics) ObserveCaches(cache CacheStats, builds BuildStats) {
	factory := promauto.With(m.registry)

	if cache != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content_cache", Name: "hits_total",
			Help: "Content cache hits",
		}, func() float64 {
			hits, _ := cache.Stats()
			return float64(hits)
		})
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content_cache", Name: "misses_total",
			Help: "Content cache misses",
		}, func() float64 {
			_, misses := cache.Stats()
			return float64(misses)
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "content_cache", Name: "entries",
			Help: "Built contents held by the content cache",
		}, func() float64 { return float64(cache.Len()) })
	}

	if builds != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content_plans", Name: "source_builds_total",
			Help: "Content sources built",
		}, func() float64 { return float64(builds.SourceBuilds()) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "content_plans", Name: "content_builds_total",
			Help: "Content builds run, failed ones included",
		}, func() float64 { return float64(builds.ContentBuilds()) })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "content_plans", Name: "sources",
			Help: "Memoized content sources",
		}, func() float64 { return float64(builds.Len()) })
	}
}

// SetStartupState records the outcome of bootstrap.
func (m *Metrics) SetStartupState(failedSets, conflicts int) {
	m.setFailures.Set(float64(failedSets))
	m.conflicts.Set(float64(conflicts))
}

// Reloaded counts one cache reset.
func (m *Metrics) Reloaded() {
	m.reloads.Inc()
}

// RouteLabel maps a request path onto a bounded label set.
func RouteLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/_content/"):
		return "content"
	case path == "/health":
		return "health"
	case path == "/metrics":
		return "metrics"
	case strings.HasPrefix(path, "/_assets/"):
		return strings.TrimPrefix(path, "/_assets/")
	default:
		return "other"
	}
}

// Middleware records request count, duration and size.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := RouteLabel(r.URL.Path)

		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		status := rec.Status()
		m.requestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		if rec.Size() > 0 {
			m.responseSize.WithLabelValues(route).Observe(float64(rec.Size()))
		}

		if route == "content" {
			switch status {
			case http.StatusNotFound:
				m.notFound.Inc()
			case http.StatusNotModified:
				m.notModified.Inc()
			}
		}
	})
}

// StatusRecorder captures the status and body size of a response. It keeps
// hijacking and flushing available to the wrapped writer.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

// NewStatusRecorder wraps w.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

func (r *StatusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *StatusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.size += n
	return n, err
}

// Status is the response status, 200 when none was written.
func (r *StatusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Size is the number of body bytes written.
func (r *StatusRecorder) Size() int {
	return r.size
}

func (r *StatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
