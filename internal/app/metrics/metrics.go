package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace_console",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_console",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace_console",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	directoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_console",
			Name:      "directory_lookups_total",
			Help:      "Display-name lookups against the user directory by outcome.",
		},
		[]string{"status"},
	)

	directoryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marketplace_console",
			Name:      "directory_lookup_duration_seconds",
			Help:      "Duration of display-name lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11),
		},
	)

	directoryCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_console",
			Name:      "directory_cache_total",
			Help:      "Display-name cache hits and misses.",
		},
		[]string{"result"},
	)

	recommendedChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_console",
			Subsystem: "recommended_apps",
			Name:      "changes_total",
			Help:      "Publish and unpublish attempts by outcome.",
		},
		[]string{"action", "result"},
	)

	setupEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace_console",
			Subsystem: "setup",
			Name:      "events_total",
			Help:      "Setup, init validation and insert attempts by outcome.",
		},
		[]string{"step", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		directoryLookups,
		directoryDuration,
		directoryCache,
		recommendedChanges,
		setupEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// HTTPRecorder feeds the HTTP collectors. Its zero value is ready to use.
type HTTPRecorder struct{}

func (HTTPRecorder) IncrementInFlight() { httpInFlight.Inc() }
func (HTTPRecorder) DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records a finished request. An empty path template is
// replaced by a canonical form of rawPath.
func (HTTPRecorder) RecordHTTPRequest(method, pathTemplate, rawPath, status string, duration time.Duration) {
	path := pathTemplate
	if path == "" {
		path = canonicalPath(rawPath)
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDirectoryLookup records one display-name lookup.
func RecordDirectoryLookup(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	directoryLookups.WithLabelValues(status).Inc()
	if duration > 0 {
		directoryDuration.Observe(duration.Seconds())
	}
}

// RecordDirectoryCache records cache hits and misses for one lookup.
func RecordDirectoryCache(hits, misses int) {
	if hits > 0 {
		directoryCache.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		directoryCache.WithLabelValues("miss").Add(float64(misses))
	}
}

// RecordRecommendedChange records a publish or unpublish outcome.
func RecordRecommendedChange(action, result string) {
	recommendedChanges.WithLabelValues(action, result).Inc()
}

// RecordSetupEvent records a setup flow outcome.
func RecordSetupEvent(step, result string) {
	setupEvents.WithLabelValues(step, result).Inc()
}

// maxPathSegments keeps "/<prefix>/explore/apps/:id" intact.
const maxPathSegments = 5

// canonicalPath collapses identifiers so unmatched paths do not explode
// label cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			parts[i] = ":id"
		}
	}
	if len(parts) > maxPathSegments {
		parts = append(parts[:maxPathSegments], "*")
	}
	return "/" + strings.Join(parts, "/")
}
