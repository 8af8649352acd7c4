package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

// processEngine adapts an external eye-tracking process to the shared
// engine handle. The process owns the camera and prints one JSON prediction
// per line on stdout; the channel closes when the process exits.
type processEngine struct {
	command string
	logger  *zap.Logger

	cmd *exec.Cmd
}

// engineSample is the process's wire format. Timestamps are epoch millis.
type engineSample struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	T          int64   `json:"t"`
}

func newProcessEngine(command string, logger *zap.Logger) *processEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &processEngine{command: command, logger: logger}
}

func (e *processEngine) Start(ctx context.Context) (<-chan domaingaze.Sample, error) {
	argv := strings.Fields(e.command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	e.cmd = cmd

	out := make(chan domaingaze.Sample, 32)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			var raw engineSample
			if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
				e.logger.Debug("discarding malformed engine line", zap.Error(err))
				continue
			}
			out <- domaingaze.Sample{
				X:          raw.X,
				Y:          raw.Y,
				Confidence: raw.Confidence,
				T:          time.UnixMilli(raw.T).UTC(),
			}
		}
		cmd.Wait()
	}()
	return out, nil
}

func (e *processEngine) Stop() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	return e.cmd.Process.Kill()
}
