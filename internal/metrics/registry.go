package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the monitoring backend.
type Registry struct {
	meter metric.Meter

	// Proctoring metrics
	ViolationCounter metric.Int64Counter
	LockCounter      metric.Int64Counter
	GazeAwayDuration metric.Float64Histogram

	// Event pipeline metrics
	EventsEmitted metric.Int64Counter
	EventsDropped metric.Int64Counter

	// Analysis pipeline metrics
	VisionQueueDepth      metric.Int64ObservableGauge
	VisionActiveJobs      metric.Int64ObservableGauge
	VisionJobDuration     metric.Float64Histogram
	ShadowAnalysisCounter metric.Int64Counter
	ShadowStageDuration   metric.Float64Histogram

	// Upload metrics
	UploadBytes    metric.Int64Counter
	UploadDuration metric.Float64Histogram

	// API metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	// State for observable metrics
	mu               sync.RWMutex
	visionQueueDepth int64
	visionActiveJobs int64
}

// NewRegistry creates a metrics registry with all domain metrics.
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initProctorMetrics(); err != nil {
		return nil, err
	}
	if err := r.initPipelineMetrics(); err != nil {
		return nil, err
	}
	if err := r.initAPIMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initProctorMetrics() error {
	var err error

	r.ViolationCounter, err = r.meter.Int64Counter(
		"proctor.violation_total",
		metric.WithDescription("Total integrity violations recorded"),
	)
	if err != nil {
		return err
	}

	r.LockCounter, err = r.meter.Int64Counter(
		"proctor.lock_total",
		metric.WithDescription("Total interviews locked for repeated violations"),
	)
	if err != nil {
		return err
	}

	r.GazeAwayDuration, err = r.meter.Float64Histogram(
		"proctor.gaze_away_duration",
		metric.WithDescription("Duration of confirmed gaze-away episodes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1.5, 3, 5, 10, 30, 60, 120),
	)
	return err
}

func (r *Registry) initPipelineMetrics() error {
	var err error

	r.EventsEmitted, err = r.meter.Int64Counter(
		"proctor.events_emitted_total",
		metric.WithDescription("Integrity events successfully persisted"),
	)
	if err != nil {
		return err
	}

	r.EventsDropped, err = r.meter.Int64Counter(
		"proctor.events_dropped_total",
		metric.WithDescription("Integrity events dropped because the emitter buffer was full"),
	)
	if err != nil {
		return err
	}

	r.VisionQueueDepth, err = r.meter.Int64ObservableGauge(
		"proctor.vision_queue_depth",
		metric.WithDescription("Video chunks waiting for vision analysis"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.visionQueueDepth)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.VisionActiveJobs, err = r.meter.Int64ObservableGauge(
		"proctor.vision_active_jobs",
		metric.WithDescription("Vision analysis jobs currently running"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.visionActiveJobs)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.VisionJobDuration, err = r.meter.Float64Histogram(
		"proctor.vision_job_duration",
		metric.WithDescription("Wall time of one vision worker invocation in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return err
	}

	r.ShadowAnalysisCounter, err = r.meter.Int64Counter(
		"proctor.shadow_analysis_total",
		metric.WithDescription("Audio answers assessed, labeled by the stage that settled"),
	)
	if err != nil {
		return err
	}

	r.ShadowStageDuration, err = r.meter.Float64Histogram(
		"proctor.shadow_stage_duration",
		metric.WithDescription("Duration of one shadow pipeline stage in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60),
	)
	return err
}

func (r *Registry) initAPIMetrics() error {
	var err error

	r.UploadBytes, err = r.meter.Int64Counter(
		"proctor.upload_bytes_total",
		metric.WithDescription("Total media bytes accepted"),
	)
	if err != nil {
		return err
	}

	r.UploadDuration, err = r.meter.Float64Histogram(
		"proctor.upload_duration",
		metric.WithDescription("Media upload handling time in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"proctor.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"proctor.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	return err
}

// SetVisionQueueDepth sets the pending vision job count.
func (r *Registry) SetVisionQueueDepth(depth int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visionQueueDepth = depth
}

// SetVisionActiveJobs sets the running vision job count.
func (r *Registry) SetVisionActiveJobs(active int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visionActiveJobs = active
}

// RecordViolation records one violation, locking included when it tipped the
// interview over the threshold.
func (r *Registry) RecordViolation(ctx context.Context, reason string, locked bool) {
	attrs := []attribute.KeyValue{attribute.String("reason", reason)}
	r.ViolationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if locked {
		r.LockCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordShadowAnalysis records one settled answer assessment.
func (r *Registry) RecordShadowAnalysis(ctx context.Context, stage string, duration float64) {
	attrs := []attribute.KeyValue{attribute.String("stage", stage)}
	r.ShadowAnalysisCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.ShadowStageDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

// RecordUpload records one accepted media upload.
func (r *Registry) RecordUpload(ctx context.Context, kind string, bytes int64, durationMS float64) {
	attrs := []attribute.KeyValue{attribute.String("kind", kind)}
	r.UploadBytes.Add(ctx, bytes, metric.WithAttributes(attrs...))
	r.UploadDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
}

// RecordAPIRequest records API request metrics.
func (r *Registry) RecordAPIRequest(ctx context.Context, duration float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}
	r.APIRequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
