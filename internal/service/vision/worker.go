package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// ProcessWorker runs the external vision-analysis binary. It is treated as
// an opaque black box: argv in, one JSON line out.
type ProcessWorker struct {
	command string
	model   string
	logger  *zap.Logger
}

func NewProcessWorker(command, model string, logger *zap.Logger) *ProcessWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessWorker{command: command, model: model, logger: logger}
}

// Analyze invokes the worker process and parses the last line of its output
// as the result JSON.
func (w *ProcessWorker) Analyze(ctx context.Context, videoPath, referencePath string) (*media.VisionResult, error) {
	args := []string{videoPath, "--model", w.model}
	if referencePath != "" {
		args = append(args, "--reference", referencePath)
	}

	cmd := exec.CommandContext(ctx, w.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		w.logger.Warn("vision worker process failed",
			zap.String("video", videoPath),
			zap.String("stderr", truncate(stderr.String(), 512)),
			zap.Error(err))
		return nil, fmt.Errorf("vision worker failed: %w", err)
	}

	last := lastNonEmptyLine(stdout.String())
	if last == "" {
		return nil, fmt.Errorf("no output from vision worker")
	}

	var result media.VisionResult
	if err := json.Unmarshal([]byte(last), &result); err != nil {
		return nil, fmt.Errorf("parsing vision worker output: %w", err)
	}
	return &result, nil
}

func lastNonEmptyLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
