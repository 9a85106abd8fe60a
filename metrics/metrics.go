// Package metrics provides Prometheus metrics for publishing, serving and hydrating templates.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedemo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livedemo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	contentBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livedemo_content_bytes_served_total",
			Help: "Total bytes of file contents served",
		},
	)

	// Manifest metrics
	publishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedemo_manifest_publishes_total",
			Help: "Total number of manifest publishes",
		},
		[]string{"status"},
	)

	publishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "livedemo_manifest_publish_duration_seconds",
			Help:    "Time to snapshot the template and publish its manifest",
			Buckets: prometheus.DefBuckets,
		},
	)

	manifestEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livedemo_manifest_entries",
			Help: "Number of entries in the latest published manifest",
		},
		[]string{"type"},
	)

	// Hydration metrics
	hydrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedemo_hydrations_total",
			Help: "Total number of mount tree hydrations",
		},
		[]string{"status"},
	)

	hydratedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livedemo_hydrated_bytes_total",
			Help: "Total bytes of file contents fetched while hydrating",
		},
	)

	// Editor metrics
	editsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedemo_edits_written_total",
			Help: "Total number of editor syncs written into the sandbox",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if len(path) == 0 {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordContentServed(bytes int) {
	contentBytesServed.Add(float64(bytes))
}

// RecordPublish records a snapshot and publish attempt.
func RecordPublish(duration time.Duration, files, dirs int, err error) {
	publishDuration.Observe(duration.Seconds())

	if err != nil {
		publishesTotal.WithLabelValues("failure").Inc()
		return
	}

	publishesTotal.WithLabelValues("success").Inc()
	manifestEntries.WithLabelValues("file").Set(float64(files))
	manifestEntries.WithLabelValues("directory").Set(float64(dirs))
}

func RecordHydration(bytes int, err error) {
	if err != nil {
		hydrationsTotal.WithLabelValues("failure").Inc()
		return
	}

	hydrationsTotal.WithLabelValues("success").Inc()
	hydratedBytes.Add(float64(bytes))
}

func RecordEdit(err error) {
	if err != nil {
		editsWritten.WithLabelValues("failure").Inc()
	} else {
		editsWritten.WithLabelValues("success").Inc()
	}
}
