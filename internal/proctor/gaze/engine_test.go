package gaze

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

type fakeEngine struct {
	starts   int
	stops    int
	startErr error
	ch       chan domaingaze.Sample
}

func (e *fakeEngine) Start(context.Context) (<-chan domaingaze.Sample, error) {
	e.starts++
	if e.startErr != nil {
		return nil, e.startErr
	}
	if e.ch == nil {
		e.ch = make(chan domaingaze.Sample)
	}
	return e.ch, nil
}

func (e *fakeEngine) Stop() error {
	e.stops++
	return nil
}

func TestHandleSharesOneEngineStart(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandle(eng)

	ch1, err := h.Acquire(context.Background())
	require.NoError(t, err)
	ch2, err := h.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, eng.starts)
	assert.Equal(t, 2, h.Refs())
	// Both holders read the same channel.
	assert.True(t, ch1 == ch2)
}

func TestHandleStopsOnLastRelease(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandle(eng)

	_, err := h.Acquire(context.Background())
	require.NoError(t, err)
	_, err = h.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Release())
	assert.Equal(t, 0, eng.stops)

	require.NoError(t, h.Release())
	assert.Equal(t, 1, eng.stops)
	assert.Equal(t, 0, h.Refs())

	// Releasing past zero is inert.
	require.NoError(t, h.Release())
	assert.Equal(t, 1, eng.stops)
}

func TestHandleRestartsAfterFullRelease(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandle(eng)

	_, err := h.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Release())

	_, err = h.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, eng.starts)
}

func TestHandleStartFailureIsSticky(t *testing.T) {
	eng := &fakeEngine{startErr: errors.New("camera busy")}
	h := NewHandle(eng)

	_, err := h.Acquire(context.Background())
	require.Error(t, err)
	_, err = h.Acquire(context.Background())
	require.Error(t, err)

	// The camera is never re-opened mid-interview.
	assert.Equal(t, 1, eng.starts)
	assert.Equal(t, 0, h.Refs())
}
