package instrumentation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	"github.com/provenly/interview-integrity-backend/internal/domain/media"
	"github.com/provenly/interview-integrity-backend/internal/metrics"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
	"github.com/provenly/interview-integrity-backend/internal/service/vision"
)

// Sink matches the best-effort event emitter surface.
type Sink interface {
	Emit(interviewID uuid.UUID, eventType string, payload map[string]any)
}

// MetricsSink decorates an event sink with domain metric recording: it
// counts violations and locks, and measures gaze-away episode durations
// from the start/end event pair. Emission itself is untouched.
type MetricsSink struct {
	next Sink
	reg  *metrics.Registry

	mu        sync.Mutex
	awaySince map[uuid.UUID]time.Time
}

func NewMetricsSink(next Sink, reg *metrics.Registry) *MetricsSink {
	return &MetricsSink{
		next:      next,
		reg:       reg,
		awaySince: make(map[uuid.UUID]time.Time),
	}
}

func (s *MetricsSink) Emit(interviewID uuid.UUID, eventType string, payload map[string]any) {
	ctx := context.Background()

	switch eventType {
	case event.TypeProctorViolation:
		s.reg.RecordViolation(ctx, reasonOf(payload), false)
	case event.TypeProctorLocked:
		s.reg.RecordViolation(ctx, reasonOf(payload), true)
	case event.TypeGazeAwayStart:
		s.mu.Lock()
		s.awaySince[interviewID] = time.Now()
		s.mu.Unlock()
	case event.TypeGazeAwayEnd:
		s.mu.Lock()
		since, ok := s.awaySince[interviewID]
		delete(s.awaySince, interviewID)
		s.mu.Unlock()
		if ok {
			s.reg.GazeAwayDuration.Record(ctx, time.Since(since).Seconds())
		}
	}

	s.next.Emit(interviewID, eventType, payload)
}

func reasonOf(payload map[string]any) string {
	if r, ok := payload["reason"].(string); ok {
		return r
	}
	return "unknown"
}

// TimedVisionWorker measures the wall time of each vision worker
// invocation.
type TimedVisionWorker struct {
	next vision.Worker
	reg  *metrics.Registry
}

func NewTimedVisionWorker(next vision.Worker, reg *metrics.Registry) *TimedVisionWorker {
	return &TimedVisionWorker{next: next, reg: reg}
}

func (w *TimedVisionWorker) Analyze(ctx context.Context, videoPath, referencePath string) (*media.VisionResult, error) {
	start := time.Now()
	res, err := w.next.Analyze(ctx, videoPath, referencePath)
	w.reg.VisionJobDuration.Record(ctx, time.Since(start).Seconds())
	return res, err
}

// TimedAudioAnalyzer labels the direct-audio stage of the shadow pipeline.
type TimedAudioAnalyzer struct {
	next shadow.AudioAnalyzer
	reg  *metrics.Registry
}

func NewTimedAudioAnalyzer(next shadow.AudioAnalyzer, reg *metrics.Registry) *TimedAudioAnalyzer {
	return &TimedAudioAnalyzer{next: next, reg: reg}
}

func (a *TimedAudioAnalyzer) AnalyzeAnswer(ctx context.Context, audioPath, priorContext string) (*shadow.Outcome, error) {
	start := time.Now()
	out, err := a.next.AnalyzeAnswer(ctx, audioPath, priorContext)
	a.reg.RecordShadowAnalysis(ctx, "direct_audio", time.Since(start).Seconds())
	return out, err
}

// TimedTranscriber labels the transcription stage of the shadow pipeline.
type TimedTranscriber struct {
	next shadow.Transcriber
	reg  *metrics.Registry
}

func NewTimedTranscriber(next shadow.Transcriber, reg *metrics.Registry) *TimedTranscriber {
	return &TimedTranscriber{next: next, reg: reg}
}

func (t *TimedTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	start := time.Now()
	out, err := t.next.Transcribe(ctx, audioPath)
	t.reg.RecordShadowAnalysis(ctx, "transcription", time.Since(start).Seconds())
	return out, err
}

// TimedTextAnalyzer labels the text-assessment stage of the shadow
// pipeline.
type TimedTextAnalyzer struct {
	next shadow.TextAnalyzer
	reg  *metrics.Registry
}

func NewTimedTextAnalyzer(next shadow.TextAnalyzer, reg *metrics.Registry) *TimedTextAnalyzer {
	return &TimedTextAnalyzer{next: next, reg: reg}
}

func (t *TimedTextAnalyzer) AnalyzeTranscript(ctx context.Context, transcript, priorContext string) (*media.Analysis, error) {
	start := time.Now()
	out, err := t.next.AnalyzeTranscript(ctx, transcript, priorContext)
	t.reg.RecordShadowAnalysis(ctx, "text_inference", time.Since(start).Seconds())
	return out, err
}
