package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
)

const (
	defaultLookback = 30 * time.Second
	defaultMessage  = "Suspicious activity detected."
)

// Alert is the interviewer-facing view of recent warning activity for one
// interview. HasWarning false means a clean window.
type Alert struct {
	HasWarning bool      `json:"hasWarning"`
	Type       string    `json:"type,omitempty"`
	Message    string    `json:"message,omitempty"`
	Objects    []string  `json:"objects,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// EventStore is the slice of the event repository the alert surface needs.
type EventStore interface {
	LatestWarning(ctx context.Context, interviewID uuid.UUID, since time.Time, types []string) (*event.IntegrityEvent, error)
}

// Service answers "is anything suspicious happening right now" by scanning
// the recent event window for warning-class tags.
type Service struct {
	events   EventStore
	lookback time.Duration
	logger   *zap.Logger
}

func NewService(events EventStore, lookback time.Duration, logger *zap.Logger) *Service {
	if lookback <= 0 {
		lookback = defaultLookback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, lookback: lookback, logger: logger}
}

// Check returns the most recent warning inside the lookback window, or a
// clean alert when there is none.
func (s *Service) Check(ctx context.Context, interviewID uuid.UUID) (Alert, error) {
	since := time.Now().UTC().Add(-s.lookback)

	ev, err := s.events.LatestWarning(ctx, interviewID, since, event.WarningTypes())
	if err != nil {
		return Alert{}, err
	}
	if ev == nil {
		return Alert{}, nil
	}

	return Alert{
		HasWarning: true,
		Type:       ev.Type,
		Message:    messageOf(ev),
		Objects:    objectsOf(ev),
		CreatedAt:  ev.CreatedAt,
	}, nil
}

func messageOf(ev *event.IntegrityEvent) string {
	if m, ok := ev.Payload["message"].(string); ok && m != "" {
		return m
	}
	return defaultMessage
}

// objectsOf tolerates both []string and the []any that JSON decoding
// produces.
func objectsOf(ev *event.IntegrityEvent) []string {
	switch v := ev.Payload["objects"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
