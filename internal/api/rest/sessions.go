package rest

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
	gazetrack "github.com/provenly/interview-integrity-backend/internal/proctor/gaze"
	"github.com/provenly/interview-integrity-backend/internal/proctor/violation"
)

// session is the server-side monitoring state for one live interview: the
// violation machine plus the gaze tracker fed by the client's sample stream.
type session struct {
	monitor *violation.Monitor
	tracker *gazetrack.Tracker
}

// sessionRegistry keys live sessions by interview id. Sessions are created
// on the start event and dropped when the interview ends; a restart loses
// in-flight session state, which matches the monitoring contract (events
// already persisted survive, counters do not).
type sessionRegistry struct {
	cfg    config.ProctorConfig
	sink   violation.EventSink
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func newSessionRegistry(cfg config.ProctorConfig, sink violation.EventSink, logger *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
	}
}

// start creates (or replaces) the session for an interview. The gaze
// tracker's away edges both feed the violation machine and leave an audit
// trail.
func (r *sessionRegistry) start(interviewID uuid.UUID, vp domaingaze.Viewport, bounds *domaingaze.CalibrationBounds) *session {
	monitor := violation.NewMonitor(interviewID, r.cfg.MaxViolations, r.sink, r.logger)

	tracker := gazetrack.NewTracker(gazetrack.Config{
		Viewport:        vp,
		Bounds:          bounds,
		SmoothingWindow: r.cfg.SmoothingWindow,
		MinAwayDuration: r.cfg.MinAwayDuration,
		MinConfidence:   r.cfg.MinConfidence,
		Margin:          r.cfg.SafeZoneMarginPx,
		OnAwayChange: func(away bool) {
			if away {
				r.sink.Emit(interviewID, event.TypeGazeAwayStart, nil)
				monitor.Signal(violation.ReasonGazeAway)
				return
			}
			r.sink.Emit(interviewID, event.TypeGazeAwayEnd, nil)
		},
		OnReadingChange: func(reading bool) {
			r.sink.Emit(interviewID, event.TypeReadingPattern, map[string]any{"reading": reading})
		},
	}, r.logger)

	s := &session{monitor: monitor, tracker: tracker}

	r.mu.Lock()
	r.sessions[interviewID] = s
	r.mu.Unlock()
	return s
}

func (r *sessionRegistry) get(interviewID uuid.UUID) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[interviewID]
	return s, ok
}

func (r *sessionRegistry) end(interviewID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, interviewID)
	r.mu.Unlock()
}
