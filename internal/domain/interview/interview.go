package interview

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxFollowUps caps AI-generated follow-up questions per interview.
const MaxFollowUps = 3

type Interview struct {
	ID             uuid.UUID `json:"id"`
	CandidateName  string    `json:"candidate_name"`
	CandidateEmail string    `json:"candidate_email"`
	Status         Status    `json:"status"`
	ScheduledAt    time.Time `json:"scheduled_at"`

	// Active question set. Follow-ups synthesized by the shadow pipeline
	// are appended here, bounded by FollowUpCount.
	Questions     []Question `json:"questions"`
	FollowUpCount int        `json:"follow_up_count"`

	// Reference media captured during biometric setup.
	ReferenceFacePath string `json:"reference_face_path,omitempty"`

	Summary *Summary `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusScheduled Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Question is one entry of an interview's active question set.
type Question struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	Kind        string    `json:"kind"` // "audio" answers feed the shadow pipeline
	DurationSec int       `json:"duration_sec"`
	FollowUp    bool      `json:"follow_up"`
}

// Summary is the rolling AI assessment of an interview, recomputed from all
// analyzed media records each time a new analysis lands.
type Summary struct {
	OverallScore float64   `json:"overall_score"`
	Strengths    []string  `json:"strengths"`
	Weaknesses   []string  `json:"weaknesses"`
	LastUpdated  time.Time `json:"last_updated"`
}

func New(candidateName, candidateEmail string, scheduledAt time.Time) (*Interview, error) {
	if candidateName == "" {
		return nil, fmt.Errorf("candidate name cannot be empty")
	}
	if candidateEmail == "" {
		return nil, fmt.Errorf("candidate email cannot be empty")
	}

	now := time.Now().UTC()
	return &Interview{
		ID:             uuid.New(),
		CandidateName:  candidateName,
		CandidateEmail: candidateEmail,
		Status:         StatusScheduled,
		ScheduledAt:    scheduledAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanAddFollowUp reports whether another AI follow-up may be appended.
func (iv *Interview) CanAddFollowUp() bool {
	return iv.FollowUpCount < MaxFollowUps
}

// AddFollowUp appends an AI-synthesized follow-up question and bumps the
// explicit follow-up counter. The counter, not the question ids, is the
// source of truth for the cap.
func (iv *Interview) AddFollowUp(text string, durationSec int) (*Question, error) {
	if !iv.CanAddFollowUp() {
		return nil, fmt.Errorf("follow-up cap reached (%d)", MaxFollowUps)
	}
	if text == "" {
		return nil, fmt.Errorf("follow-up text cannot be empty")
	}
	if durationSec <= 0 {
		durationSec = 60
	}

	q := Question{
		ID:          uuid.New(),
		Text:        fmt.Sprintf("(Follow-up) %s", text),
		Kind:        "audio",
		DurationSec: durationSec,
		FollowUp:    true,
	}
	iv.Questions = append(iv.Questions, q)
	iv.FollowUpCount++
	iv.UpdatedAt = time.Now().UTC()
	return &q, nil
}

// ComputeSummary derives the rolling summary from a set of analyzed scores.
// It is a pure function of its input: the same scores always yield the same
// summary modulo the LastUpdated stamp.
func ComputeSummary(scores []float64, now time.Time) *Summary {
	var total float64
	for _, s := range scores {
		total += s
	}
	count := len(scores)
	if count == 0 {
		count = 1
	}
	avg := total / float64(count)

	s := &Summary{
		OverallScore: avg,
		LastUpdated:  now,
	}
	if avg > 7 {
		s.Strengths = []string{"Technical Proficiency", "Clarity"}
	} else {
		s.Strengths = []string{"Communication"}
	}
	if avg < 5 {
		s.Weaknesses = []string{"Depth of Knowledge"}
	} else {
		s.Weaknesses = []string{}
	}
	return s
}
