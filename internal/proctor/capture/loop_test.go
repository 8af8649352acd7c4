package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRecorder struct {
	mu     sync.Mutex
	chunks []Chunk
	errs   []error
	calls  int
	cancel context.CancelFunc
}

func (r *scriptedRecorder) Record(ctx context.Context, _ time.Duration) (Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if i >= len(r.chunks) {
		// Script exhausted: end the loop the way a session end would.
		if r.cancel != nil {
			r.cancel()
		}
		return Chunk{}, ctx.Err()
	}
	return r.chunks[i], r.errs[i]
}

type countingUploader struct {
	mu       sync.Mutex
	uploaded []Chunk
	failAt   map[int]error
	calls    int
}

func (u *countingUploader) Upload(_ context.Context, _ uuid.UUID, c Chunk) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	i := u.calls
	u.calls++
	if err, ok := u.failAt[i]; ok {
		return err
	}
	u.uploaded = append(u.uploaded, c)
	return nil
}

func chunkOf(data string) Chunk {
	return Chunk{Data: []byte(data), MimeType: "video/webm", RecordedAt: time.Now()}
}

func TestLoopUploadsEveryChunk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &scriptedRecorder{
		chunks: []Chunk{chunkOf("one"), chunkOf("two"), chunkOf("three")},
		errs:   []error{nil, nil, nil},
		cancel: cancel,
	}
	up := &countingUploader{}
	loop := NewLoop(uuid.New(), rec, up, time.Second, nil)

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, int64(3), loop.Chunks())
	assert.Zero(t, loop.Failures())
	require.Len(t, up.uploaded, 3)
	assert.Equal(t, []byte("two"), up.uploaded[1].Data)
}

func TestLoopContinuesPastUploadFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &scriptedRecorder{
		chunks: []Chunk{chunkOf("one"), chunkOf("two"), chunkOf("three")},
		errs:   []error{nil, nil, nil},
		cancel: cancel,
	}
	up := &countingUploader{failAt: map[int]error{1: errors.New("store unavailable")}}
	loop := NewLoop(uuid.New(), rec, up, time.Second, nil)

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The failed chunk is lost, the rest survive.
	assert.Equal(t, int64(3), loop.Chunks())
	assert.Equal(t, int64(1), loop.Failures())
	require.Len(t, up.uploaded, 2)
	assert.Equal(t, []byte("one"), up.uploaded[0].Data)
	assert.Equal(t, []byte("three"), up.uploaded[1].Data)
}

func TestLoopStopsOnRecordingError(t *testing.T) {
	rec := &scriptedRecorder{
		chunks: []Chunk{chunkOf("one"), {}},
		errs:   []error{nil, errors.New("media handle revoked")},
	}
	up := &countingUploader{}
	loop := NewLoop(uuid.New(), rec, up, time.Second, nil)

	err := loop.Run(context.Background())
	require.EqualError(t, err, "media handle revoked")
	assert.Equal(t, int64(1), loop.Chunks())
}

func TestLoopSkipsEmptyChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &scriptedRecorder{
		chunks: []Chunk{{}, chunkOf("real")},
		errs:   []error{nil, nil},
		cancel: cancel,
	}
	up := &countingUploader{}
	loop := NewLoop(uuid.New(), rec, up, time.Second, nil)

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), loop.Chunks())
	require.Len(t, up.uploaded, 1)
}
