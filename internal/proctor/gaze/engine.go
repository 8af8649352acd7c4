package gaze

import (
	"context"
	"fmt"
	"sync"

	"github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

// Engine is the external eye-tracking engine. Start opens the camera and
// begins publishing predictions; Stop releases it.
type Engine interface {
	Start(ctx context.Context) (<-chan gaze.Sample, error)
	Stop() error
}

// Handle is a reference-counted wrapper around a shared Engine so multiple
// consumers never re-initialize the camera. Acquire is idempotent by
// construction: every caller gets the same sample channel, and the engine
// is torn down only when the last holder releases it.
type Handle struct {
	engine Engine

	mu       sync.Mutex
	refs     int
	samples  <-chan gaze.Sample
	startErr error
	started  bool
}

func NewHandle(engine Engine) *Handle {
	return &Handle{engine: engine}
}

// Acquire starts the engine on first use and returns the shared sample
// channel. A failed start is sticky for the handle's lifetime; callers see
// the same error rather than re-opening the camera mid-interview.
func (h *Handle) Acquire(ctx context.Context) (<-chan gaze.Sample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		h.started = true
		h.samples, h.startErr = h.engine.Start(ctx)
	}
	if h.startErr != nil {
		return nil, fmt.Errorf("eye-tracking engine unavailable: %w", h.startErr)
	}
	h.refs++
	return h.samples, nil
}

// Release drops one reference and stops the engine at zero.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 || !h.started || h.startErr != nil {
		return nil
	}
	h.started = false
	h.samples = nil
	return h.engine.Stop()
}

// Refs returns the current holder count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}
