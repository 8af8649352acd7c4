package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IntegrityEvent is an append-only record of a monitored occurrence during
// an interview. Events are never mutated after creation; timestamp ordering
// matters for audit, not for the correctness of any single decision.
type IntegrityEvent struct {
	ID          uuid.UUID      `json:"id"`
	InterviewID uuid.UUID      `json:"interview_id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Event type tags. The type field is an open-ended string so external
// workers can introduce new tags without a schema change; the constants
// below are the tags this backend itself emits or filters on.
const (
	TypeProctorStarted   = "PROCTOR_STARTED"
	TypeProctorViolation = "PROCTOR_VIOLATION"
	TypeProctorLocked    = "PROCTOR_LOCKED"

	TypeFullscreenEnter = "FULLSCREEN_ENTER"
	TypeFullscreenFail  = "FULLSCREEN_FAIL"

	TypeGazeAwayStart  = "GAZE_AWAY_START"
	TypeGazeAwayEnd    = "GAZE_AWAY_END"
	TypeReadingPattern = "READING_PATTERN"

	TypeVideoChunkUploaded  = "video_chunk_uploaded"
	TypeAudioAnswerUploaded = "audio_answer_uploaded"

	// Warning-class tags produced by the vision worker.
	TypeFaceMismatch    = "proctor_face_mismatch"
	TypeForbiddenObject = "proctor_forbidden_object"
	TypePhoneDetected   = "proctor_phone_detected"
	TypeMultiplePeople  = "proctor_multiple_people"
)

// WarningTypes is the fixed set of tags the alert surface considers
// user-visible warnings.
func WarningTypes() []string {
	return []string{
		TypeFaceMismatch,
		TypeForbiddenObject,
		TypePhoneDetected,
		TypeMultiplePeople,
	}
}

// IsWarning reports whether t belongs to the warning-class tag set.
func IsWarning(t string) bool {
	switch t {
	case TypeFaceMismatch, TypeForbiddenObject, TypePhoneDetected, TypeMultiplePeople:
		return true
	}
	return false
}

// New creates an IntegrityEvent for the given interview.
func New(interviewID uuid.UUID, eventType string, payload map[string]any) (*IntegrityEvent, error) {
	if interviewID == uuid.Nil {
		return nil, fmt.Errorf("interview ID cannot be nil")
	}
	if eventType == "" {
		return nil, fmt.Errorf("event type cannot be empty")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return &IntegrityEvent{
		ID:          uuid.New(),
		InterviewID: interviewID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
