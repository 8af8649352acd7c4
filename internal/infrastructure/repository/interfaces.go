package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// InterviewRepository persists interview aggregates.
type InterviewRepository interface {
	Create(ctx context.Context, iv *interview.Interview) error
	GetByID(ctx context.Context, id uuid.UUID) (*interview.Interview, error)
	// AppendFollowUp atomically appends an AI follow-up question while the
	// explicit counter is below the cap. Returns false when the cap was
	// already reached.
	AppendFollowUp(ctx context.Context, id uuid.UUID, q interview.Question, limit int) (bool, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, s *interview.Summary) error
	SetReferenceFace(ctx context.Context, id uuid.UUID, path string) error
}

// EventRepository is the append-only store for integrity events.
type EventRepository interface {
	Append(ctx context.Context, ev *event.IntegrityEvent) error
	// LatestWarning returns the most recent event within the lookback
	// window whose type belongs to the given tag set, or nil when none.
	LatestWarning(ctx context.Context, interviewID uuid.UUID, since time.Time, types []string) (*event.IntegrityEvent, error)
	ListByInterview(ctx context.Context, interviewID uuid.UUID) ([]*event.IntegrityEvent, error)
}

// MediaRepository persists media records and their analysis results.
type MediaRepository interface {
	Create(ctx context.Context, rec *media.Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*media.Record, error)
	MarkVisionProcessed(ctx context.Context, id uuid.UUID, summary map[string]any) error
	MarkAnalyzed(ctx context.Context, id uuid.UUID, transcript string, analysis *media.Analysis) error
	// Transcripts returns prior transcripts for the interview, most recent
	// first, excluding the given record, capped at limit.
	Transcripts(ctx context.Context, interviewID, exclude uuid.UUID, limit int) ([]string, error)
	// AnalyzedScores returns the scores of every analyzed record for the
	// interview, the input to the summary recompute.
	AnalyzedScores(ctx context.Context, interviewID uuid.UUID) ([]float64, error)
}

// Repositories bundles the stores handed to the REST layer.
type Repositories struct {
	Interview InterviewRepository
	Event     EventRepository
	Media     MediaRepository
}
