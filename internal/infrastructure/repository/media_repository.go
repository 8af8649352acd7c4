package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// mediaRepository implements MediaRepository using PostgreSQL
type mediaRepository struct {
	db querier
}

// NewMediaRepository creates a new media record repository
func NewMediaRepository(db *sql.DB) MediaRepository {
	return &mediaRepository{db: db}
}

// Create inserts a media record for a completed upload.
func (r *mediaRepository) Create(ctx context.Context, rec *media.Record) error {
	if rec.InterviewID == uuid.Nil {
		return errors.New("interview_id cannot be nil")
	}
	if rec.StoragePath == "" {
		return errors.New("storage_path cannot be empty")
	}

	query := `
		INSERT INTO media_records (
			id, interview_id, kind, storage_path, processed,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.InterviewID, rec.Kind.String(), rec.StoragePath,
		rec.Processed, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media record: %w", err)
	}
	return nil
}

// GetByID retrieves a media record by its ID.
func (r *mediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*media.Record, error) {
	query := `
		SELECT id, interview_id, kind, storage_path, processed,
		       vision_summary, transcript, analysis, created_at, updated_at
		FROM media_records
		WHERE id = $1
	`

	var rec media.Record
	var kindStr string
	var visionSummary, analysis []byte
	var transcript sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.InterviewID, &kindStr, &rec.StoragePath, &rec.Processed,
		&visionSummary, &transcript, &analysis, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media record: %w", err)
	}

	rec.Kind, err = media.ParseKind(kindStr)
	if err != nil {
		return nil, err
	}
	if transcript.Valid {
		rec.Transcript = transcript.String
	}
	if len(visionSummary) > 0 {
		_ = json.Unmarshal(visionSummary, &rec.VisionSummary)
	}
	if len(analysis) > 0 {
		var a media.Analysis
		if err := json.Unmarshal(analysis, &a); err == nil {
			rec.Analysis = &a
		}
	}
	return &rec, nil
}

// MarkVisionProcessed stores the vision summary and flips processed. Called
// exactly once per record by the vision pipeline.
func (r *mediaRepository) MarkVisionProcessed(ctx context.Context, id uuid.UUID, summary map[string]any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal vision summary: %w", err)
	}

	query := `
		UPDATE media_records
		SET processed = TRUE, vision_summary = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to mark vision processed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAnalyzed stores the shadow pipeline result. A re-run overwrites the
// previous analysis rather than duplicating the record.
func (r *mediaRepository) MarkAnalyzed(ctx context.Context, id uuid.UUID, transcript string, analysis *media.Analysis) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	query := `
		UPDATE media_records
		SET processed = TRUE, transcript = $2, analysis = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, transcript, analysisJSON)
	if err != nil {
		return fmt.Errorf("failed to mark analyzed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transcripts returns prior transcripts for the interview, most recent
// first, excluding the given record.
func (r *mediaRepository) Transcripts(ctx context.Context, interviewID, exclude uuid.UUID, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `
		SELECT transcript
		FROM media_records
		WHERE interview_id = $1
		  AND id <> $2
		  AND kind = 'audio'
		  AND transcript IS NOT NULL
		  AND transcript <> ''
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, interviewID, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AnalyzedScores returns the score of every analyzed record for the
// interview. The summary recompute is a pure function of this slice.
func (r *mediaRepository) AnalyzedScores(ctx context.Context, interviewID uuid.UUID) ([]float64, error) {
	query := `
		SELECT COALESCE((analysis->>'score')::float8, 0)
		FROM media_records
		WHERE interview_id = $1
		  AND analysis IS NOT NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyzed scores: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
