package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metric definitions for the monitoring API.

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctor",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "proctor",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method", "handler"},
	)

	violationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctor",
			Subsystem: "session",
			Name:      "violations_total",
			Help:      "Total integrity violations recorded",
		},
		[]string{"reason"},
	)

	sessionsLocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proctor",
			Subsystem: "session",
			Name:      "locked_total",
			Help:      "Total interviews locked for repeated violations",
		},
	)

	visionQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proctor",
			Subsystem: "vision",
			Name:      "queue_depth",
			Help:      "Video chunks waiting for analysis",
		},
	)

	visionActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proctor",
			Subsystem: "vision",
			Name:      "active_jobs",
			Help:      "Vision analysis jobs currently running",
		},
	)

	eventsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proctor",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Integrity events persisted",
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proctor",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Integrity events dropped by the emitter",
		},
	)
)

// InstrumentHTTPHandler wraps a handler with request metrics.
func InstrumentHTTPHandler(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		duration := time.Since(start).Seconds()
		httpRequestDuration.WithLabelValues(r.Method, handlerName).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, handlerName, statusCodeClass(rw.statusCode)).Inc()
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func statusCodeClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// RecordViolation increments the violation counter for a reason.
func RecordViolation(reason string) {
	violationsTotal.WithLabelValues(reason).Inc()
}

// RecordSessionLocked increments the lock counter.
func RecordSessionLocked() {
	sessionsLocked.Inc()
}

// UpdateVisionQueue publishes the current queue shape.
func UpdateVisionQueue(active, pending int) {
	visionActiveJobs.Set(float64(active))
	visionQueueDepth.Set(float64(pending))
}

// UpdateEmitterCounters publishes the emitter's totals.
func UpdateEmitterCounters(sent, dropped int64) {
	// Counters are monotonic; publish deltas from the last observation.
	eventsEmitted.Add(float64(sent - lastSent))
	eventsDropped.Add(float64(dropped - lastDropped))
	lastSent, lastDropped = sent, dropped
}

var lastSent, lastDropped int64
