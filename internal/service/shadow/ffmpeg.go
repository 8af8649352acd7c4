package shadow

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// FFmpegTranscoder shells out to ffmpeg to downmix an uploaded answer to
// mono 24kHz WAV. The output lands next to the input with a .wav extension.
type FFmpegTranscoder struct {
	binary string
	logger *zap.Logger
}

func NewFFmpegTranscoder(binary string, logger *zap.Logger) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegTranscoder{binary: binary, logger: logger}
}

func (t *FFmpegTranscoder) ToWAV(ctx context.Context, inputPath string) (string, error) {
	outputPath := wavPath(inputPath)

	cmd := exec.CommandContext(ctx, t.binary,
		"-i", inputPath,
		"-ac", "1",
		"-ar", "24000",
		"-y",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Warn("ffmpeg transcode failed",
			zap.String("input", inputPath),
			zap.String("stderr", tail(stderr.String(), 512)),
			zap.Error(err))
		return "", fmt.Errorf("transcoding %s: %w", inputPath, err)
	}
	return outputPath, nil
}

func wavPath(inputPath string) string {
	if i := strings.LastIndex(inputPath, "."); i > strings.LastIndex(inputPath, "/") {
		return inputPath[:i] + ".wav"
	}
	return inputPath + ".wav"
}

// tail keeps the last n bytes; ffmpeg puts the useful error at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
