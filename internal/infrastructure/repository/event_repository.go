package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
)

// eventRepository implements EventRepository using PostgreSQL
type eventRepository struct {
	db querier
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewEventRepository creates a new integrity event repository
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

// Append inserts one integrity event. Events are append-only; there is no
// update path.
func (r *eventRepository) Append(ctx context.Context, ev *event.IntegrityEvent) error {
	if ev.InterviewID == uuid.Nil {
		return errors.New("interview_id cannot be nil")
	}
	if ev.Type == "" {
		return errors.New("type cannot be empty")
	}

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO integrity_events (id, interview_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		ev.ID, ev.InterviewID, ev.Type, payloadJSON, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// LatestWarning returns the newest event within the lookback window whose
// type belongs to the warning tag set, or nil when the window is clean.
func (r *eventRepository) LatestWarning(ctx context.Context, interviewID uuid.UUID, since time.Time, types []string) (*event.IntegrityEvent, error) {
	if len(types) == 0 {
		return nil, nil
	}

	args := []interface{}{interviewID, since}
	placeholders := make([]string, len(types))
	for i, t := range types {
		args = append(args, t)
		placeholders[i] = fmt.Sprintf("$%d", i+3)
	}

	query := fmt.Sprintf(`
		SELECT id, interview_id, type, payload, created_at
		FROM integrity_events
		WHERE interview_id = $1
		  AND created_at >= $2
		  AND type IN (%s)
		ORDER BY created_at DESC
		LIMIT 1
	`, strings.Join(placeholders, ", "))

	ev, err := r.scanEvent(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest warning: %w", err)
	}
	return ev, nil
}

// ListByInterview returns all events for an interview in emission order.
func (r *eventRepository) ListByInterview(ctx context.Context, interviewID uuid.UUID) ([]*event.IntegrityEvent, error) {
	query := `
		SELECT id, interview_id, type, payload, created_at
		FROM integrity_events
		WHERE interview_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*event.IntegrityEvent
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *eventRepository) scanEvent(row rowScanner) (*event.IntegrityEvent, error) {
	var ev event.IntegrityEvent
	var payload []byte

	if err := row.Scan(&ev.ID, &ev.InterviewID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &ev.Payload); err != nil {
		ev.Payload = map[string]any{}
	}
	return &ev, nil
}
