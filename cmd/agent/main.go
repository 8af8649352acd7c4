// The agent runs on the candidate's machine: it records the webcam in
// fixed-duration chunks and streams them to the backend, and optionally
// forwards predictions from a local eye-tracking engine as gaze samples.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
	"github.com/provenly/interview-integrity-backend/internal/proctor/capture"
	gazetrack "github.com/provenly/interview-integrity-backend/internal/proctor/gaze"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:8080", "Backend base URL")
		interview   = flag.String("interview", "", "Interview ID (required)")
		token       = flag.String("token", "", "Candidate bearer token (required)")
		videoDevice = flag.String("video-device", "/dev/video0", "Webcam device")
		ffmpegBin   = flag.String("ffmpeg", "ffmpeg", "ffmpeg binary")
		gazeCommand = flag.String("gaze-command", "", "Eye-tracking engine command (optional)")
	)
	flag.Parse()

	interviewID, err := uuid.Parse(*interview)
	if err != nil {
		log.Fatalf("invalid -interview: %v", err)
	}
	if *token == "" {
		log.Fatal("-token is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(*server, *token, interviewID)

	if *gazeCommand != "" {
		handle := gazetrack.NewHandle(newProcessEngine(*gazeCommand, logger))
		samples, err := handle.Acquire(ctx)
		if err != nil {
			log.Fatalf("eye tracking unavailable: %v", err)
		}
		defer handle.Release()
		go forwardGazeSamples(ctx, client, samples, logger)
	}

	recorder := newFFmpegRecorder(*ffmpegBin, *videoDevice, logger)
	loop := capture.NewLoop(interviewID, recorder, client, cfg.Proctor.ChunkDuration, logger)

	logger.Info("capture agent started",
		zap.String("interview_id", interviewID.String()),
		zap.Duration("chunk_duration", cfg.Proctor.ChunkDuration))

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("capture loop failed", zap.Error(err))
	}
	logger.Info("capture agent stopped",
		zap.Int64("chunks", loop.Chunks()),
		zap.Int64("failures", loop.Failures()))
}

// forwardGazeSamples relays engine predictions to the events endpoint until
// the channel closes. Sample loss is acceptable; each post is best-effort.
func forwardGazeSamples(ctx context.Context, client *apiClient, samples <-chan domaingaze.Sample, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			if err := client.PostGazeSample(ctx, s); err != nil {
				logger.Warn("gaze sample post failed", zap.Error(err))
			}
		}
	}
}
