package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/proctor/capture"
)

// ffmpegRecorder captures one fixed-duration webcam chunk per Record call
// by shelling out to ffmpeg. Each chunk is a complete webm file, so earlier
// footage survives a mid-interview crash.
type ffmpegRecorder struct {
	binary string
	device string
	logger *zap.Logger
}

func newFFmpegRecorder(binary, device string, logger *zap.Logger) *ffmpegRecorder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ffmpegRecorder{binary: binary, device: device, logger: logger}
}

func (r *ffmpegRecorder) Record(ctx context.Context, d time.Duration) (capture.Chunk, error) {
	out := filepath.Join(os.TempDir(), fmt.Sprintf("chunk_%d.webm", time.Now().UnixNano()))
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, r.binary,
		"-f", "v4l2",
		"-i", r.device,
		"-t", strconv.FormatFloat(d.Seconds(), 'f', -1, 64),
		"-y",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	recordedAt := time.Now().UTC()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return capture.Chunk{}, ctx.Err()
		}
		r.logger.Error("ffmpeg capture failed",
			zap.String("device", r.device),
			zap.String("stderr", tail(stderr.String(), 512)),
			zap.Error(err))
		return capture.Chunk{}, fmt.Errorf("recording chunk: %w", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return capture.Chunk{}, fmt.Errorf("reading recorded chunk: %w", err)
	}
	return capture.Chunk{Data: data, MimeType: "video/webm", RecordedAt: recordedAt}, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
