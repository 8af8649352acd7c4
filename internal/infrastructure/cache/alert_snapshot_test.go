package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewAlertSnapshotStore(testClient(t))
	id := uuid.New()

	seen := time.Date(2026, 3, 10, 14, 30, 12, 345678000, time.UTC)
	require.NoError(t, store.SetLastSeen(ctx, id, seen))

	got, err := store.LastSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Equal(seen))
}

func TestAlertSnapshotZeroWhenUnset(t *testing.T) {
	store := NewAlertSnapshotStore(testClient(t))

	got, err := store.LastSeen(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestAlertSnapshotCorruptEntryTreatedAsUnset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewAlertSnapshotStore(client)
	id := uuid.New()

	require.NoError(t, mr.Set(alertKey(id), "not-a-timestamp"))

	got, err := store.LastSeen(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
