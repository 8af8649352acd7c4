package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AlertSnapshotStore remembers the timestamp of the last alert surfaced per
// interview so the poller de-duplicates across restarts and instances.
type AlertSnapshotStore struct {
	client *redis.Client
}

func NewAlertSnapshotStore(client *redis.Client) *AlertSnapshotStore {
	return &AlertSnapshotStore{client: client}
}

func alertKey(interviewID uuid.UUID) string {
	return fmt.Sprintf("alert_last_seen:%s", interviewID)
}

// LastSeen returns the stored timestamp, zero when none.
func (s *AlertSnapshotStore) LastSeen(ctx context.Context, interviewID uuid.UUID) (time.Time, error) {
	v, err := s.client.Get(ctx, alertKey(interviewID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("alert snapshot load failed: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastSeen records the timestamp of the alert just surfaced.
func (s *AlertSnapshotStore) SetLastSeen(ctx context.Context, interviewID uuid.UUID, t time.Time) error {
	err := s.client.Set(ctx, alertKey(interviewID), t.Format(time.RFC3339Nano), time.Hour).Err()
	if err != nil {
		return fmt.Errorf("alert snapshot save failed: %w", err)
	}
	return nil
}
