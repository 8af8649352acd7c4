package rest

import (
	"time"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

type createInterviewRequest struct {
	CandidateName  string            `json:"candidate_name" validate:"required,min=1,max=200"`
	CandidateEmail string            `json:"candidate_email" validate:"required,email"`
	ScheduledAt    time.Time         `json:"scheduled_at" validate:"required"`
	Questions      []questionRequest `json:"questions" validate:"dive"`
}

type questionRequest struct {
	Text        string `json:"text" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=audio text code"`
	DurationSec int    `json:"duration_sec" validate:"gte=0,lte=3600"`
}

// eventRequest is the envelope for everything the monitored client reports:
// lifecycle signals, violations, key chords and raw gaze samples.
type eventRequest struct {
	Type    string         `json:"type" validate:"required,max=64"`
	Payload map[string]any `json:"payload"`
}

type calibrationRequest struct {
	Bounds  domaingaze.CalibrationBounds `json:"bounds" validate:"required"`
	Samples []gazeSampleRequest          `json:"samples" validate:"max=500,dive"`
}

type gazeSampleRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	T          int64   `json:"t"` // epoch milliseconds
}

// visionResultRequest is what the out-of-process vision worker posts back.
type visionResultRequest struct {
	Summary map[string]any       `json:"summary"`
	Events  []visionEventRequest `json:"events" validate:"max=100,dive"`
	Error   string               `json:"error"`
}

type visionEventRequest struct {
	Type    string         `json:"type" validate:"required,max=64"`
	Payload map[string]any `json:"payload"`
}
