package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := uuid.New()
	ev, err := New(id, TypeProctorViolation, map[string]any{"reason": "WINDOW_BLUR"})
	require.NoError(t, err)

	assert.Equal(t, id, ev.InterviewID)
	assert.Equal(t, TypeProctorViolation, ev.Type)
	assert.Equal(t, "WINDOW_BLUR", ev.Payload["reason"])
	assert.False(t, ev.CreatedAt.IsZero())
}

func TestNewDefaultsPayload(t *testing.T) {
	ev, err := New(uuid.New(), TypeProctorStarted, nil)
	require.NoError(t, err)
	assert.NotNil(t, ev.Payload)
}

func TestNewValidation(t *testing.T) {
	_, err := New(uuid.Nil, TypeProctorStarted, nil)
	assert.Error(t, err)

	_, err = New(uuid.New(), "", nil)
	assert.Error(t, err)
}

func TestIsWarning(t *testing.T) {
	for _, warning := range WarningTypes() {
		assert.True(t, IsWarning(warning), warning)
	}
	assert.False(t, IsWarning(TypeProctorViolation))
	assert.False(t, IsWarning(TypeGazeAwayStart))
	assert.False(t, IsWarning("custom_worker_tag"))
}
