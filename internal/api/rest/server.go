package rest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
)

// Server is the HTTP front of the monitoring backend.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	handler    *Handler
	logger     *slog.Logger
	db         *sql.DB
	redis      *redis.Client
}

// NewServer assembles routes and middleware around an already-wired Handler.
func NewServer(cfg *config.Config, handler *Handler, authSvc *auth.Service, db *sql.DB, redisClient *redis.Client, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		db:      db,
		redis:   redisClient,
	}

	limiter := newClientLimiter(cfg.Security.RateLimit.RequestsPerSecond, cfg.Security.RateLimit.BurstSize)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/interviews", handler.handleCreateInterview)
	api.HandleFunc("GET /api/interviews/{id}", handler.handleGetInterview)
	// The event route carries camera-frame-rate traffic; it gets its own
	// per-client limit instead of a global one.
	api.Handle("POST /api/interviews/{id}/events",
		limiter.Middleware()(http.HandlerFunc(handler.handlePostEvent)))
	api.HandleFunc("GET /api/interviews/{id}/events", handler.handleListEvents)
	api.HandleFunc("POST /api/interviews/{id}/video", handler.handleUploadVideo)
	api.HandleFunc("POST /api/interviews/{id}/audio", handler.handleUploadAudio)
	api.HandleFunc("GET /api/interviews/{id}/alerts", handler.handleGetAlerts)
	api.HandleFunc("GET /api/interviews/{id}/alerts/stream", handler.handleAlertStream)
	api.HandleFunc("GET /api/interviews/{id}/session", handler.handleGetSession)
	api.HandleFunc("POST /api/interviews/{id}/calibration", handler.handleSaveCalibration)
	api.HandleFunc("GET /api/interviews/{id}/calibration", handler.handleGetCalibration)
	api.HandleFunc("POST /api/interviews/{id}/reference/face", handler.handleUploadReferenceFace)
	api.HandleFunc("POST /api/worker/vision/result/{mediaId}", handler.handleVisionResult)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/", chain(api,
		requestIDMiddleware,
		loggingMiddleware(logger),
		metricsMiddleware(handler.services.Metrics),
		recoveryMiddleware(logger),
		timeoutMiddleware(cfg.Server.WriteTimeout),
		authMiddleware(authSvc),
	))

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        mux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Start serves until an error or a shutdown signal.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if err := s.db.PingContext(ctx); err != nil {
		resp.Checks["database"] = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = "ok"
	}

	if err := s.redis.Ping(ctx).Err(); err != nil {
		resp.Checks["redis"] = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["redis"] = "ok"
	}

	writeJSON(w, status, resp)
}
