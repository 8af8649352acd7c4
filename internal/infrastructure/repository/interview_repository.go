package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
)

// interviewRepository implements InterviewRepository using PostgreSQL
type interviewRepository struct {
	db *sql.DB
}

// NewInterviewRepository creates a new interview repository
func NewInterviewRepository(db *sql.DB) InterviewRepository {
	return &interviewRepository{db: db}
}

// Create inserts a new interview.
func (r *interviewRepository) Create(ctx context.Context, iv *interview.Interview) error {
	if iv.CandidateName == "" || iv.CandidateEmail == "" {
		return errors.New("candidate name and email cannot be empty")
	}

	questionsJSON, err := json.Marshal(iv.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	query := `
		INSERT INTO interviews (
			id, candidate_name, candidate_email, status, scheduled_at,
			questions, follow_up_count, reference_face_path,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		iv.ID, iv.CandidateName, iv.CandidateEmail, iv.Status.String(),
		iv.ScheduledAt, questionsJSON, iv.FollowUpCount,
		nullString(iv.ReferenceFacePath), iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create interview: %w", err)
	}
	return nil
}

// GetByID retrieves an interview by its ID.
func (r *interviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*interview.Interview, error) {
	query := `
		SELECT id, candidate_name, candidate_email, status, scheduled_at,
		       questions, follow_up_count, reference_face_path, summary,
		       created_at, updated_at
		FROM interviews
		WHERE id = $1
	`

	var iv interview.Interview
	var statusStr string
	var questions, summary []byte
	var refFace sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&iv.ID, &iv.CandidateName, &iv.CandidateEmail, &statusStr,
		&iv.ScheduledAt, &questions, &iv.FollowUpCount, &refFace,
		&summary, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}

	iv.Status = parseStatus(statusStr)
	if refFace.Valid {
		iv.ReferenceFacePath = refFace.String
	}
	if len(questions) > 0 {
		_ = json.Unmarshal(questions, &iv.Questions)
	}
	if len(summary) > 0 {
		var s interview.Summary
		if err := json.Unmarshal(summary, &s); err == nil {
			iv.Summary = &s
		}
	}
	return &iv, nil
}

// AppendFollowUp appends q to the question set and bumps the follow-up
// counter, guarded in a single statement so concurrent analyses cannot
// exceed the cap.
func (r *interviewRepository) AppendFollowUp(ctx context.Context, id uuid.UUID, q interview.Question, limit int) (bool, error) {
	qJSON, err := json.Marshal(q)
	if err != nil {
		return false, fmt.Errorf("failed to marshal question: %w", err)
	}

	query := `
		UPDATE interviews
		SET questions = COALESCE(questions, '[]'::jsonb) || $2::jsonb,
		    follow_up_count = follow_up_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND follow_up_count < $3
	`

	result, err := r.db.ExecContext(ctx, query, id, qJSON, limit)
	if err != nil {
		return false, fmt.Errorf("failed to append follow-up: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateSummary stores the recomputed rolling summary.
func (r *interviewRepository) UpdateSummary(ctx context.Context, id uuid.UUID, s *interview.Summary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `UPDATE interviews SET summary = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReferenceFace stores the reference face image path for the vision
// worker.
func (r *interviewRepository) SetReferenceFace(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE interviews SET reference_face_path = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, path)
	if err != nil {
		return fmt.Errorf("failed to set reference face: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseStatus(s string) interview.Status {
	switch s {
	case "scheduled":
		return interview.StatusScheduled
	case "in_progress":
		return interview.StatusInProgress
	case "completed":
		return interview.StatusCompleted
	case "cancelled":
		return interview.StatusCancelled
	default:
		return interview.StatusScheduled
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
