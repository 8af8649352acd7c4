package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/api/rest"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/ai"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/cache"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/database"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/events"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/instrumentation"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/repository"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/telemetry"
	"github.com/provenly/interview-integrity-backend/internal/metrics"
	"github.com/provenly/interview-integrity-backend/internal/service/alerts"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
	"github.com/provenly/interview-integrity-backend/internal/service/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "interview-integrity-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create zap logger: %v", err)
	}
	defer zapLogger.Sync()

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()
	sqlDB := database.SQLDB(pool)

	redisClient, err := cache.NewClient(&cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	repos := &repository.Repositories{
		Interview: repository.NewInterviewRepository(sqlDB),
		Event:     repository.NewEventRepository(sqlDB),
		Media:     repository.NewMediaRepository(sqlDB),
	}

	emitter := events.NewEmitter(repos.Event, cfg.Proctor.EventBuffer, zapLogger)
	defer emitter.Close()

	registry, err := metrics.NewRegistry("interview-integrity-backend")
	if err != nil {
		log.Fatalf("failed to create metrics registry: %v", err)
	}

	alertSvc := alerts.NewService(repos.Event, cfg.Alerts.Lookback, zapLogger)
	poller := alerts.NewPoller(alertSvc, cache.NewAlertSnapshotStore(redisClient), cfg.Alerts.PollInterval, zapLogger)
	go poller.Run(ctx)

	visionSvc := vision.NewService(
		vision.NewQueue(cfg.Vision.MaxConcurrent),
		instrumentation.NewTimedVisionWorker(
			vision.NewProcessWorker(cfg.Vision.WorkerCommand, cfg.Vision.Model, zapLogger),
			registry,
		),
		repos.Media,
		referenceFaceResolver{repos.Interview},
		emitter,
		zapLogger,
	)

	shadowSvc := buildShadowService(cfg, repos, registry, zapLogger)

	authSvc, err := auth.NewService(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)
	if err != nil {
		log.Fatalf("failed to create auth service: %v", err)
	}

	go publishPipelineMetrics(ctx, registry, visionSvc, emitter)

	handler := rest.NewHandler(cfg, &rest.Services{
		Repos:        repos,
		Emitter:      emitter,
		Vision:       visionSvc,
		Shadow:       shadowSvc,
		Alerts:       alertSvc,
		Poller:       poller,
		Calibrations: cache.NewCalibrationStore(redisClient, zapLogger),
		Metrics:      registry,
	}, logger, zapLogger)

	server := rest.NewServer(cfg, handler, authSvc, sqlDB, redisClient, logger)
	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildShadowService wires the fallback chain. Without an API key the
// orchestrator runs offline on the deterministic mock stage.
func buildShadowService(cfg *config.Config, repos *repository.Repositories, registry *metrics.Registry, zapLogger *zap.Logger) *shadow.Service {
	transcoder := shadow.NewFFmpegTranscoder(cfg.Shadow.FFmpegPath, zapLogger)

	var (
		audio       shadow.AudioAnalyzer
		transcriber shadow.Transcriber
		text        shadow.TextAnalyzer
	)
	if cfg.Shadow.APIKey != "" {
		client := ai.NewClient(ai.Config{
			APIKey:       cfg.Shadow.APIKey,
			AudioModel:   cfg.Shadow.AudioModel,
			TextModel:    cfg.Shadow.TextModel,
			SpeechToText: cfg.Shadow.SpeechToText,
		}, zapLogger)
		audio = instrumentation.NewTimedAudioAnalyzer(client, registry)
		transcriber = instrumentation.NewTimedTranscriber(client, registry)
		text = instrumentation.NewTimedTextAnalyzer(client, registry)
	}

	return shadow.NewService(transcoder, audio, transcriber, text,
		repos.Media, repos.Interview, cfg.Shadow.ContextWindow, zapLogger)
}

// referenceFaceResolver adapts the interview repository to the vision
// service's narrow lookup.
type referenceFaceResolver struct {
	repo repository.InterviewRepository
}

func (r referenceFaceResolver) ReferenceFacePath(ctx context.Context, interviewID uuid.UUID) (string, error) {
	iv, err := r.repo.GetByID(ctx, interviewID)
	if err != nil {
		return "", err
	}
	return iv.ReferenceFacePath, nil
}

// publishPipelineMetrics mirrors queue and emitter state into both metric
// systems on a fixed cadence.
func publishPipelineMetrics(ctx context.Context, registry *metrics.Registry, visionSvc *vision.Service, emitter *events.Emitter) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var prevSent, prevDropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, pending := visionSvc.QueueDepth()
			registry.SetVisionActiveJobs(int64(active))
			registry.SetVisionQueueDepth(int64(pending))
			UpdateVisionQueue(active, pending)

			sent, dropped := emitter.Sent(), emitter.Dropped()
			registry.EventsEmitted.Add(ctx, sent-prevSent)
			registry.EventsDropped.Add(ctx, dropped-prevDropped)
			UpdateEmitterCounters(sent, dropped)
			prevSent, prevDropped = sent, dropped
		}
	}
}
