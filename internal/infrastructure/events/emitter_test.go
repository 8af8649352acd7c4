package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
)

type memStore struct {
	mu      sync.Mutex
	events  []*event.IntegrityEvent
	err     error
	release chan struct{}
}

func (s *memStore) Append(_ context.Context, ev *event.IntegrityEvent) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEmitterDelivers(t *testing.T) {
	store := &memStore{}
	e := NewEmitter(store, 16, zap.NewNop())
	defer e.Close()

	id := uuid.New()
	e.Emit(id, event.TypeProctorViolation, map[string]any{"reason": "TAB_OR_WINDOW_SWITCH"})

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), e.Sent())
	assert.Zero(t, e.Dropped())

	store.mu.Lock()
	ev := store.events[0]
	store.mu.Unlock()
	assert.Equal(t, id, ev.InterviewID)
	assert.Equal(t, event.TypeProctorViolation, ev.Type)
	assert.Equal(t, "TAB_OR_WINDOW_SWITCH", ev.Payload["reason"])
}

func TestEmitterNeverBlocksOnFullBuffer(t *testing.T) {
	store := &memStore{release: make(chan struct{})}
	e := NewEmitter(store, 1, zap.NewNop())
	defer e.Close()

	id := uuid.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		// The store is stalled; one event is in flight, one fills the
		// buffer, the rest must drop immediately.
		for i := 0; i < 10; i++ {
			e.Emit(id, event.TypeGazeAwayStart, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	assert.GreaterOrEqual(t, e.Dropped(), int64(8))
	close(store.release)
}

func TestEmitterCountsStoreFailures(t *testing.T) {
	store := &memStore{err: errors.New("database down")}
	e := NewEmitter(store, 16, zap.NewNop())
	defer e.Close()

	e.Emit(uuid.New(), event.TypeProctorStarted, nil)

	require.Eventually(t, func() bool { return e.Dropped() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, e.Sent())
}

func TestEmitterRejectsMalformedEvents(t *testing.T) {
	store := &memStore{}
	e := NewEmitter(store, 16, zap.NewNop())
	defer e.Close()

	e.Emit(uuid.Nil, event.TypeProctorStarted, nil)
	e.Emit(uuid.New(), "", nil)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, store.count())
	assert.Zero(t, e.Sent())
}

func TestEmitterNilLoggerDefaults(t *testing.T) {
	store := &memStore{}
	e := NewEmitter(store, 16, nil)
	defer e.Close()

	// Both the malformed-event path and the happy path log; neither may
	// panic without an injected logger.
	e.Emit(uuid.Nil, event.TypeProctorStarted, nil)
	e.Emit(uuid.New(), event.TypeProctorStarted, nil)

	require.Eventually(t, func() bool { return e.Sent() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.count())
}

func TestEmitterCloseFlushesBacklog(t *testing.T) {
	store := &memStore{}
	e := NewEmitter(store, 64, zap.NewNop())

	id := uuid.New()
	for i := 0; i < 20; i++ {
		e.Emit(id, event.TypeGazeAwayEnd, nil)
	}
	e.Close()

	require.Eventually(t, func() bool { return e.Sent() == 20 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 20, store.count())
}
