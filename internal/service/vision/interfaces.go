package vision

import (
	"context"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// Worker invokes the external per-video vision-analysis process. The
// contract: the process receives the video path, a --model flag and an
// optional --reference face image, and prints exactly one JSON object as
// its final output line.
type Worker interface {
	Analyze(ctx context.Context, videoPath, referencePath string) (*media.VisionResult, error)
}

// MediaStore is the slice of the media repository this service needs.
type MediaStore interface {
	MarkVisionProcessed(ctx context.Context, id uuid.UUID, summary map[string]any) error
}

// InterviewStore resolves the reference face for an interview.
type InterviewStore interface {
	ReferenceFacePath(ctx context.Context, interviewID uuid.UUID) (string, error)
}

// EventSink receives best-effort integrity events.
type EventSink interface {
	Emit(interviewID uuid.UUID, eventType string, payload map[string]any)
}
