package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
	apperrors "github.com/provenly/interview-integrity-backend/internal/errors"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/cache"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/events"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/instrumentation"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/repository"
	"github.com/provenly/interview-integrity-backend/internal/metrics"
	"github.com/provenly/interview-integrity-backend/internal/proctor/violation"
	"github.com/provenly/interview-integrity-backend/internal/service/alerts"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
	"github.com/provenly/interview-integrity-backend/internal/service/vision"
)

// Services bundles everything the handlers depend on.
type Services struct {
	Repos        *repository.Repositories
	Emitter      *events.Emitter
	Vision       *vision.Service
	Shadow       *shadow.Service
	Alerts       *alerts.Service
	Poller       *alerts.Poller
	Calibrations *cache.CalibrationStore
	Metrics      *metrics.Registry
}

// Handler carries the request handlers for the monitoring API.
type Handler struct {
	cfg      *config.Config
	services *Services
	sessions *sessionRegistry
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(cfg *config.Config, services *Services, logger *slog.Logger, zlog *zap.Logger) *Handler {
	var sink violation.EventSink = services.Emitter
	if services.Metrics != nil {
		sink = instrumentation.NewMetricsSink(services.Emitter, services.Metrics)
	}
	return &Handler{
		cfg:      cfg,
		services: services,
		sessions: newSessionRegistry(cfg.Proctor, sink, zlog),
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewValidationError("VALIDATION_ERROR", "malformed request body")
	}
	if err := h.validate.Struct(v); err != nil {
		return apperrors.NewValidationError("VALIDATION_ERROR", err.Error())
	}
	return nil
}

func interviewIDFrom(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// handleCreateInterview schedules a new interview.
func (h *Handler) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleInterviewer) {
		return
	}

	var req createInterviewRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	iv, err := interview.New(req.CandidateName, req.CandidateEmail, req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	for _, q := range req.Questions {
		iv.Questions = append(iv.Questions, interview.Question{
			ID:          uuid.New(),
			Text:        q.Text,
			Kind:        q.Kind,
			DurationSec: q.DurationSec,
		})
	}

	if err := h.services.Repos.Interview.Create(r.Context(), iv); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInterviewResponse(iv))
}

// handleGetInterview returns the interview aggregate, summary included.
func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	iv, err := h.services.Repos.Interview.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInterviewResponse(iv))
}

// handlePostEvent ingests one client-side monitoring signal. Lifecycle and
// violation signals drive the per-session state machine; anything
// unrecognized is persisted verbatim as an audit event.
func (h *Handler) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	var req eventRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	switch req.Type {
	case "session_start":
		if err := h.startSession(r.Context(), id, req.Payload); err != nil {
			writeServiceError(w, err)
			return
		}
	case "session_end":
		h.sessions.end(id)
	case "violation":
		h.signalViolation(id, req.Payload)
	case "keydown":
		h.handleKeydown(id, req.Payload)
	case "focus_regained":
		if s, ok := h.sessions.get(id); ok {
			s.monitor.FocusRegained()
		}
	case "fullscreen_restored":
		if s, ok := h.sessions.get(id); ok {
			s.monitor.FullscreenRestored()
		}
	case "gaze_sample":
		h.offerGazeSample(id, req.Payload)
	default:
		h.services.Emitter.Emit(id, req.Type, req.Payload)
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// startSession builds the monitoring session. The client reports whether
// its fullscreen request was granted; a refusal keeps the machine idle and
// is surfaced as a retryable failure, not a violation.
func (h *Handler) startSession(ctx context.Context, id uuid.UUID, payload map[string]any) error {
	vp := domaingaze.Viewport{
		Width:  numberField(payload, "viewport_width"),
		Height: numberField(payload, "viewport_height"),
	}

	var bounds *domaingaze.CalibrationBounds
	if cal, err := h.services.Calibrations.Load(ctx, id); err == nil && cal != nil {
		bounds = &cal.Bounds
	}

	s := h.sessions.start(id, vp, bounds)

	granted, _ := payload["fullscreen_granted"].(bool)
	return s.monitor.Start(func() error {
		if !granted {
			return fmt.Errorf("client reported fullscreen refusal")
		}
		return nil
	})
}

func (h *Handler) signalViolation(id uuid.UUID, payload map[string]any) {
	s, ok := h.sessions.get(id)
	if !ok {
		return
	}
	if reason, ok := payload["reason"].(string); ok && reason != "" {
		s.monitor.Signal(violation.Reason(reason))
	}
}

func (h *Handler) handleKeydown(id uuid.UUID, payload map[string]any) {
	s, ok := h.sessions.get(id)
	if !ok {
		return
	}
	ctrl, _ := payload["ctrl"].(bool)
	meta, _ := payload["meta"].(bool)
	alt, _ := payload["alt"].(bool)
	key, _ := payload["key"].(string)
	if violation.IsBannedCombo(ctrl, meta, alt, key) {
		s.monitor.Signal(violation.ReasonKeyboardShortcut)
	}
}

func (h *Handler) offerGazeSample(id uuid.UUID, payload map[string]any) {
	s, ok := h.sessions.get(id)
	if !ok {
		return
	}

	t := time.Now().UTC()
	if ms := numberField(payload, "t"); ms > 0 {
		t = time.UnixMilli(int64(ms)).UTC()
	}
	s.tracker.Offer(domaingaze.Sample{
		X:          numberField(payload, "x"),
		Y:          numberField(payload, "y"),
		Confidence: numberField(payload, "confidence"),
		T:          t,
	})
}

// handleGetSession returns the live monitoring snapshot.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	s, ok := h.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no active session for interview")
		return
	}

	snap := s.monitor.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		State:          snap.State.String(),
		Violations:     snap.ViolationCount,
		Locked:         snap.Locked,
		NeedsAttention: snap.NeedsAttention,
		GazeAway:       s.tracker.Away(),
		Reading:        s.tracker.Reading(),
	})
}

// handleGetAlerts answers the interviewer's poll for recent warnings.
func (h *Handler) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireRole(w, r, auth.RoleInterviewer) {
		return
	}

	alert, err := h.services.Alerts.Check(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleListEvents returns the full audit trail for an interview.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireRole(w, r, auth.RoleInterviewer) {
		return
	}

	evs, err := h.services.Repos.Event.ListByInterview(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evs == nil {
		evs = []*event.IntegrityEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func numberField(payload map[string]any, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}
