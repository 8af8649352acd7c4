package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Chunk is one self-contained recording: it carries its own container
// header/trailer so earlier footage survives a mid-interview failure.
type Chunk struct {
	Data       []byte
	MimeType   string
	RecordedAt time.Time
}

// Recorder wraps the camera/microphone handle. The handle is acquired once
// by the caller; Record produces exactly one fixed-duration chunk.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) (Chunk, error)
}

// Uploader delivers a completed chunk to the store.
type Uploader interface {
	Upload(ctx context.Context, interviewID uuid.UUID, c Chunk) error
}

// Loop records a continuous series of chunks, uploading each as it
// completes. Chunks are strictly serialized: the next recording starts only
// after the previous chunk's upload attempt returns, so at most one chunk
// is in flight. A failed upload loses that chunk and nothing else; chunk
// loss is acceptable, a halted recording is not.
type Loop struct {
	interviewID   uuid.UUID
	recorder      Recorder
	uploader      Uploader
	chunkDuration time.Duration
	logger        *zap.Logger

	chunks   atomic.Int64
	failures atomic.Int64
}

func NewLoop(interviewID uuid.UUID, rec Recorder, up Uploader, chunkDuration time.Duration, logger *zap.Logger) *Loop {
	if chunkDuration <= 0 {
		chunkDuration = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		interviewID:   interviewID,
		recorder:      rec,
		uploader:      up,
		chunkDuration: chunkDuration,
		logger:        logger,
	}
}

// Run drives the capture loop until the context is cancelled. A recording
// error ends the loop (the media handle is gone); an upload error does not.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := l.recorder.Record(ctx, l.chunkDuration)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("recording failed, stopping capture loop",
				zap.String("interview_id", l.interviewID.String()),
				zap.Error(err))
			return err
		}
		if len(chunk.Data) == 0 {
			continue
		}
		l.chunks.Add(1)

		if err := l.uploader.Upload(ctx, l.interviewID, chunk); err != nil {
			l.failures.Add(1)
			l.logger.Warn("chunk upload failed, continuing with next chunk",
				zap.String("interview_id", l.interviewID.String()),
				zap.Int("size", len(chunk.Data)),
				zap.Error(err))
		}
	}
}

// Chunks returns the number of completed recordings.
func (l *Loop) Chunks() int64 { return l.chunks.Load() }

// Failures returns the number of chunks lost to upload errors.
func (l *Loop) Failures() int64 { return l.failures.Load() }
