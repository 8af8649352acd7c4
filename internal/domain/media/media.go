package media

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record tracks one uploaded media chunk and the result of its background
// analysis. Created on upload completion; mutated exactly once by the
// matching pipeline (vision for video, shadow for audio) when analysis
// completes; never deleted during a session.
type Record struct {
	ID          uuid.UUID `json:"id"`
	InterviewID uuid.UUID `json:"interview_id"`
	Kind        Kind      `json:"kind"`
	StoragePath string    `json:"storage_path"`
	Processed   bool      `json:"processed"`

	// Vision pipeline output (video records).
	VisionSummary map[string]any `json:"vision_summary,omitempty"`

	// Shadow pipeline output (audio records).
	Transcript string    `json:"transcript,omitempty"`
	Analysis   *Analysis `json:"analysis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ParseKind maps the wire form back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "video":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	}
	return 0, fmt.Errorf("unknown media kind %q", s)
}

// Analysis is the structured result of the AI shadow pipeline for one
// audio answer.
type Analysis struct {
	Score            float64   `json:"score"`
	Contradiction    string    `json:"contradiction,omitempty"`
	Emotion          string    `json:"emotion"`
	FollowUpQuestion string    `json:"follow_up_question,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// VisionResult is the contract the external vision worker must honor: its
// final stdout line is one JSON object of this shape.
type VisionResult struct {
	Summary map[string]any `json:"summary"`
	Events  []VisionEvent  `json:"events"`
	Error   string         `json:"error,omitempty"`
}

// VisionEvent is one detected anomaly inside a VisionResult.
type VisionEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// NewRecord creates a media record for a completed upload.
func NewRecord(interviewID uuid.UUID, kind Kind, storagePath string) (*Record, error) {
	if interviewID == uuid.Nil {
		return nil, fmt.Errorf("interview ID cannot be nil")
	}
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}

	now := time.Now().UTC()
	return &Record{
		ID:          uuid.New(),
		InterviewID: interviewID,
		Kind:        kind,
		StoragePath: storagePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
