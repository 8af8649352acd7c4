package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type uploadResponse struct {
	OK   bool      `json:"ok"`
	ID   uuid.UUID `json:"id"`
	Path string    `json:"path"`
}

type interviewResponse struct {
	ID             uuid.UUID            `json:"id"`
	CandidateName  string               `json:"candidate_name"`
	CandidateEmail string               `json:"candidate_email"`
	Status         string               `json:"status"`
	ScheduledAt    time.Time            `json:"scheduled_at"`
	Questions      []interview.Question `json:"questions"`
	FollowUpCount  int                  `json:"follow_up_count"`
	Summary        *interview.Summary   `json:"summary,omitempty"`
}

func toInterviewResponse(iv *interview.Interview) interviewResponse {
	return interviewResponse{
		ID:             iv.ID,
		CandidateName:  iv.CandidateName,
		CandidateEmail: iv.CandidateEmail,
		Status:         iv.Status.String(),
		ScheduledAt:    iv.ScheduledAt,
		Questions:      iv.Questions,
		FollowUpCount:  iv.FollowUpCount,
		Summary:        iv.Summary,
	}
}

// sessionResponse is the live monitoring snapshot for one interview.
type sessionResponse struct {
	State          string `json:"state"`
	Violations     int    `json:"violations"`
	Locked         bool   `json:"locked"`
	NeedsAttention bool   `json:"needs_attention"`
	GazeAway       bool   `json:"gaze_away"`
	Reading        bool   `json:"reading"`
}
