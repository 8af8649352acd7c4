package shadow

import (
	"context"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// Outcome is the settled result of analyzing one audio answer, whichever
// stage of the fallback chain produced it.
type Outcome struct {
	Transcript string
	Analysis   media.Analysis
}

// Transcoder normalizes an uploaded answer into the mono 24kHz WAV the
// analysis models expect. It returns the path of the produced file.
type Transcoder interface {
	ToWAV(ctx context.Context, inputPath string) (string, error)
}

// AudioAnalyzer is the primary stage: the model hears the answer directly
// and returns transcript plus structured assessment in one call.
type AudioAnalyzer interface {
	AnalyzeAnswer(ctx context.Context, audioPath, priorContext string) (*Outcome, error)
}

// Transcriber converts an audio answer to text for the degraded stage.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TextAnalyzer assesses an already-transcribed answer.
type TextAnalyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript, priorContext string) (*media.Analysis, error)
}

// MediaStore is the slice of the media repository this service needs.
type MediaStore interface {
	MarkAnalyzed(ctx context.Context, id uuid.UUID, transcript string, analysis *media.Analysis) error
	Transcripts(ctx context.Context, interviewID, exclude uuid.UUID, limit int) ([]string, error)
	AnalyzedScores(ctx context.Context, interviewID uuid.UUID) ([]float64, error)
}

// InterviewStore is the slice of the interview repository this service needs.
type InterviewStore interface {
	AppendFollowUp(ctx context.Context, id uuid.UUID, q interview.Question, limit int) (bool, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, s *interview.Summary) error
}
