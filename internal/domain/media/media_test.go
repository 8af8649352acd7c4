package media

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	id := uuid.New()
	rec, err := NewRecord(id, KindVideo, "/uploads/abc/video_1.webm")
	require.NoError(t, err)

	assert.Equal(t, id, rec.InterviewID)
	assert.Equal(t, KindVideo, rec.Kind)
	assert.False(t, rec.Processed)
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestNewRecordValidation(t *testing.T) {
	_, err := NewRecord(uuid.Nil, KindVideo, "/uploads/x.webm")
	assert.Error(t, err)

	_, err = NewRecord(uuid.New(), KindAudio, "")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("video")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, k)

	k, err = ParseKind("audio")
	require.NoError(t, err)
	assert.Equal(t, KindAudio, k)

	_, err = ParseKind("screenshot")
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "audio", KindAudio.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
