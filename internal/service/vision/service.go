package vision

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// Job identifies one uploaded video chunk awaiting analysis.
type Job struct {
	MediaID     uuid.UUID
	InterviewID uuid.UUID
	VideoPath   string
}

// Service schedules video chunks through the bounded vision queue,
// persists worker results and fans detected anomalies out as integrity
// events. Every failure mode is inert: the job settles with an error
// summary and the interview continues.
type Service struct {
	queue      *Queue
	worker     Worker
	media      MediaStore
	interviews InterviewStore
	sink       EventSink
	logger     *zap.Logger
}

func NewService(queue *Queue, worker Worker, mediaStore MediaStore, interviews InterviewStore, sink EventSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		queue:      queue,
		worker:     worker,
		media:      mediaStore,
		interviews: interviews,
		sink:       sink,
		logger:     logger,
	}
}

// Process enqueues a chunk for analysis and returns immediately. The caller
// (the upload handler) must not wait on the result. Jobs carry no deadline:
// a slow analysis is allowed to run to completion, and a wedged worker
// process is the worker's problem to terminate, not ours to guess at.
func (s *Service) Process(job Job) {
	s.queue.Enqueue(func() {
		s.run(context.Background(), job)
	})
}

// QueueDepth reports running and pending jobs for health and metrics.
func (s *Service) QueueDepth() (active, pending int) {
	return s.queue.Active(), s.queue.Pending()
}

func (s *Service) run(ctx context.Context, job Job) {
	result := s.analyze(ctx, job)

	if err := s.media.MarkVisionProcessed(ctx, job.MediaID, summaryOf(result)); err != nil {
		s.logger.Error("failed to persist vision result",
			zap.String("media_id", job.MediaID.String()),
			zap.Error(err))
		return
	}

	for _, ev := range result.Events {
		if ev.Type == "" {
			continue
		}
		s.sink.Emit(job.InterviewID, ev.Type, ev.Payload)
	}
}

// analyze runs the worker and never returns nil: failures collapse into a
// result carrying only an error string.
func (s *Service) analyze(ctx context.Context, job Job) *media.VisionResult {
	if _, err := os.Stat(job.VideoPath); err != nil {
		s.logger.Warn("video chunk missing on disk, skipping analysis",
			zap.String("media_id", job.MediaID.String()),
			zap.String("path", job.VideoPath))
		return &media.VisionResult{Error: "video file not found"}
	}

	reference, err := s.interviews.ReferenceFacePath(ctx, job.InterviewID)
	if err != nil {
		// Face matching degrades to object detection only.
		s.logger.Warn("reference face lookup failed",
			zap.String("interview_id", job.InterviewID.String()),
			zap.Error(err))
		reference = ""
	}

	result, err := s.worker.Analyze(ctx, job.VideoPath, reference)
	if err != nil {
		s.logger.Error("vision analysis failed",
			zap.String("media_id", job.MediaID.String()),
			zap.Error(err))
		return &media.VisionResult{Error: err.Error()}
	}
	if result == nil {
		return &media.VisionResult{Error: "empty result from vision worker"}
	}
	return result
}

func summaryOf(result *media.VisionResult) map[string]any {
	if result.Error != "" {
		return map[string]any{"error": result.Error}
	}
	if result.Summary == nil {
		return map[string]any{}
	}
	return result.Summary
}
