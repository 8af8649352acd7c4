package violation

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	apperrors "github.com/provenly/interview-integrity-backend/internal/errors"
)

// MaxViolations is the default lock threshold.
const MaxViolations = 3

// State of the monitor: Idle until the fullscreen grant, Running during the
// interview, Locked terminally once the threshold is crossed.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Reason identifies the discrete signal that produced a violation.
type Reason string

const (
	ReasonTabSwitch        Reason = "TAB_OR_WINDOW_SWITCH"
	ReasonWindowBlur       Reason = "WINDOW_BLUR"
	ReasonFullscreenExit   Reason = "FULLSCREEN_EXIT"
	ReasonKeyboardShortcut Reason = "KEYBOARD_SHORTCUT"
	ReasonRightClick       Reason = "RIGHT_CLICK_ATTEMPT"
	ReasonClipboard        Reason = "CLIPBOARD_ATTEMPT"
	ReasonGazeAway         Reason = "GAZE_AWAY"
)

// EventSink receives best-effort integrity events; satisfied by
// *events.Emitter.
type EventSink interface {
	Emit(interviewID uuid.UUID, eventType string, payload map[string]any)
}

// Snapshot is the externally visible monitor state.
type Snapshot struct {
	State            State
	FullscreenActive bool
	WindowFocused    bool
	ViolationCount   int
	Locked           bool
	LastReason       Reason
	// NeedsAttention marks a transient, recoverable loss (blur or
	// fullscreen exit). Clearing it does not touch the counter.
	NeedsAttention bool
}

// Monitor is the per-session violation state machine. One instance per
// active interview session; all transitions are synchronous within a single
// Signal call, so no signal can be lost mid-transition.
type Monitor struct {
	interviewID   uuid.UUID
	maxViolations int
	sink          EventSink
	logger        *zap.Logger

	mu    sync.Mutex
	snap  Snapshot
}

func NewMonitor(interviewID uuid.UUID, maxViolations int, sink EventSink, logger *zap.Logger) *Monitor {
	if maxViolations <= 0 {
		maxViolations = MaxViolations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interviewID:   interviewID,
		maxViolations: maxViolations,
		sink:          sink,
		logger:        logger,
		snap: Snapshot{
			State:         StateIdle,
			WindowFocused: true,
		},
	}
}

// Start moves the machine to Running once the user grants fullscreen. A
// failed grant is reported but does not count as a violation; the machine
// stays Idle and Start may be retried.
func (m *Monitor) Start(grantFullscreen func() error) error {
	m.mu.Lock()
	if m.snap.State != StateIdle {
		m.mu.Unlock()
		return apperrors.NewDomainError("ALREADY_STARTED", "monitor already running")
	}
	m.mu.Unlock()

	if err := grantFullscreen(); err != nil {
		m.sink.Emit(m.interviewID, event.TypeFullscreenFail, map[string]any{
			"error": err.Error(),
		})
		return apperrors.NewDomainError("FULLSCREEN_REQUIRED", "fullscreen grant refused").WithCause(err)
	}

	m.mu.Lock()
	m.snap.State = StateRunning
	m.snap.FullscreenActive = true
	m.mu.Unlock()

	m.sink.Emit(m.interviewID, event.TypeFullscreenEnter, nil)
	m.sink.Emit(m.interviewID, event.TypeProctorStarted, nil)
	return nil
}

// Signal feeds one discrete violation signal into the machine. Each
// qualifying signal increments the counter by exactly one; the signal that
// reaches the threshold emits PROCTOR_LOCKED instead of PROCTOR_VIOLATION
// and the lock never reverts within the session.
func (m *Monitor) Signal(reason Reason) {
	m.mu.Lock()
	if m.snap.State != StateRunning {
		m.mu.Unlock()
		return
	}

	switch reason {
	case ReasonTabSwitch, ReasonWindowBlur:
		m.snap.WindowFocused = false
		m.snap.NeedsAttention = true
	case ReasonFullscreenExit:
		m.snap.FullscreenActive = false
		m.snap.NeedsAttention = true
	}

	m.snap.ViolationCount++
	m.snap.LastReason = reason
	locked := m.snap.ViolationCount >= m.maxViolations
	count := m.snap.ViolationCount
	if locked {
		m.snap.Locked = true
		m.snap.State = StateLocked
	}
	m.mu.Unlock()

	payload := map[string]any{
		"reason":     string(reason),
		"violations": count,
	}
	if locked {
		m.logger.Warn("interview locked",
			zap.String("interview_id", m.interviewID.String()),
			zap.String("reason", string(reason)),
			zap.Int("violations", count))
		m.sink.Emit(m.interviewID, event.TypeProctorLocked, payload)
		return
	}
	m.sink.Emit(m.interviewID, event.TypeProctorViolation, payload)
}

// FocusRegained records the window regaining focus after a non-fatal loss.
// Clears the transient attention flag without resetting the counter.
func (m *Monitor) FocusRegained() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.State == StateIdle {
		return
	}
	m.snap.WindowFocused = true
	if m.snap.FullscreenActive {
		m.snap.NeedsAttention = false
	}
}

// FullscreenRestored records re-entry into fullscreen after a non-fatal
// exit. Clears the transient attention flag without resetting the counter.
func (m *Monitor) FullscreenRestored() {
	m.mu.Lock()
	if m.snap.State == StateIdle {
		m.mu.Unlock()
		return
	}
	m.snap.FullscreenActive = true
	if m.snap.WindowFocused {
		m.snap.NeedsAttention = false
	}
	m.mu.Unlock()

	m.sink.Emit(m.interviewID, event.TypeFullscreenEnter, nil)
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// bannedCombos are the app-switch / devtools / forced-navigation shortcuts
// that count as violations.
var bannedCombos = map[string]struct{}{
	"Ctrl+L":   {},
	"Meta+L":   {},
	"Alt+Tab":  {},
	"Meta+Tab": {},
	"F11":      {},
}

// IsBannedCombo reports whether a key chord is a proctored shortcut.
func IsBannedCombo(ctrl, meta, alt bool, key string) bool {
	combo := ""
	if ctrl {
		combo += "Ctrl+"
	}
	if meta {
		combo += "Meta+"
	}
	if alt {
		combo += "Alt+"
	}
	combo += key
	_, ok := bannedCombos[combo]
	return ok
}
