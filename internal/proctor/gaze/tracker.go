package gaze

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

// Config tunes a Tracker. Zero values fall back to the defaults below.
type Config struct {
	Viewport gaze.Viewport
	// Bounds is the calibration box recorded during biometric setup; nil
	// falls back to the viewport shrunk by Margin.
	Bounds *gaze.CalibrationBounds

	SmoothingWindow time.Duration // rolling buffer span, time-based eviction
	MinAwayDuration time.Duration // dwell required before an away flip
	MinConfidence   float64       // noise gate
	Margin          float64       // safe-zone margin in px

	// ReadingEvery runs the reading-pattern heuristic every N accepted
	// samples. The heuristic is a best-effort secondary signal and never
	// feeds the violation counter.
	ReadingEvery int

	// OnAwayChange fires on away-state flips only, never per frame. The
	// violation machine depends on this edge triggering: one event per
	// transition keeps the event store from flooding at camera frame rate.
	OnAwayChange func(away bool)

	// OnReadingChange fires on reading-state flips.
	OnReadingChange func(reading bool)
}

const (
	defaultSmoothingWindow = 800 * time.Millisecond
	defaultMinAwayDuration = 1500 * time.Millisecond
	defaultMinConfidence   = 0.5
	defaultMargin          = 60
	defaultReadingEvery    = 5

	// Reading heuristic thresholds, tuned against the capture engine's
	// frame cadence.
	minReadingSamples   = 15
	saccadeRightPx      = 5
	carriageReturnPx    = -100
	scanFlowRatio       = 0.6
	maxVerticalVariance = 4000
)

// Tracker smooths raw gaze predictions and derives two signals: an
// edge-triggered away flag with time-based hysteresis, and a best-effort
// reading-pattern flag. All work per sample is O(buffer), bounded by the
// smoothing window.
type Tracker struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	samples   []gaze.Sample
	accepted  int
	awaySince *time.Time
	away      bool
	reading   bool
	last      *gaze.Sample
}

func NewTracker(cfg Config, logger *zap.Logger) *Tracker {
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = defaultSmoothingWindow
	}
	if cfg.MinAwayDuration <= 0 {
		cfg.MinAwayDuration = defaultMinAwayDuration
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.Margin <= 0 {
		cfg.Margin = defaultMargin
	}
	if cfg.ReadingEvery <= 0 {
		cfg.ReadingEvery = defaultReadingEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, logger: logger}
}

// Run consumes samples from the engine channel until it closes or the
// context is cancelled.
func (t *Tracker) Run(ctx context.Context, samples <-chan gaze.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			t.Offer(s)
		}
	}
}

// Offer processes one raw prediction. Samples failing the noise gate are
// ignored outright; they are transient noise, never surfaced.
func (t *Tracker) Offer(s gaze.Sample) {
	if s.Confidence < t.cfg.MinConfidence {
		return
	}
	if !t.cfg.Viewport.Plausible(s.X, s.Y) {
		return
	}

	var (
		awayFlip    *bool
		readingFlip *bool
	)

	t.mu.Lock()
	t.samples = append(t.samples, s)
	t.accepted++

	// Evict by timestamp, not count: bounds both memory and lag.
	cutoff := s.T.Add(-t.cfg.SmoothingWindow)
	i := 0
	for i < len(t.samples) && t.samples[i].T.Before(cutoff) {
		i++
	}
	t.samples = t.samples[i:]

	if t.accepted%t.cfg.ReadingEvery == 0 {
		readingFlip = t.analyzeReadingLocked()
	}

	avgX, avgY := t.meanLocked()
	smoothed := gaze.Sample{X: avgX, Y: avgY, Confidence: s.Confidence, T: s.T}
	t.last = &smoothed

	zone := gaze.Zone(t.cfg.Bounds, t.cfg.Viewport, t.cfg.Margin)
	if !zone.Contains(avgX, avgY) {
		if t.awaySince == nil {
			since := s.T
			t.awaySince = &since
		}
		if !t.away && s.T.Sub(*t.awaySince) >= t.cfg.MinAwayDuration {
			t.away = true
			flipped := true
			awayFlip = &flipped
		}
	} else {
		// Back inside resets the dwell timer immediately.
		t.awaySince = nil
		if t.away {
			t.away = false
			flipped := false
			awayFlip = &flipped
		}
	}
	t.mu.Unlock()

	// Callbacks run outside the lock; they may emit events or feed the
	// violation machine.
	if awayFlip != nil && t.cfg.OnAwayChange != nil {
		t.cfg.OnAwayChange(*awayFlip)
	}
	if readingFlip != nil && t.cfg.OnReadingChange != nil {
		t.cfg.OnReadingChange(*readingFlip)
	}
}

// Away reports whether the smoothed gaze has been outside the safe zone
// beyond the dwell threshold.
func (t *Tracker) Away() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.away
}

// Reading reports the current reading-pattern classification.
func (t *Tracker) Reading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reading
}

// LastSmoothed returns the most recent smoothed point.
func (t *Tracker) LastSmoothed() (gaze.Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return gaze.Sample{}, false
	}
	return *t.last, true
}

func (t *Tracker) meanLocked() (float64, float64) {
	n := float64(len(t.samples))
	if n == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, p := range t.samples {
		sx += p.X
		sy += p.Y
	}
	return sx / n, sy / n
}

// analyzeReadingLocked classifies the buffer as a reading pattern:
// consistent left-to-right saccade flow with periodic rapid left snaps,
// while vertical variance stays low (eyes holding a line of text).
func (t *Tracker) analyzeReadingLocked() *bool {
	if len(t.samples) < minReadingSamples {
		return nil
	}

	var ySum float64
	for _, p := range t.samples {
		ySum += p.Y
	}
	yMean := ySum / float64(len(t.samples))

	var yVar float64
	for _, p := range t.samples {
		d := p.Y - yMean
		yVar += d * d
	}
	yVar /= float64(len(t.samples))

	var flow float64
	for i := 1; i < len(t.samples); i++ {
		dx := t.samples[i].X - t.samples[i-1].X
		switch {
		case dx > saccadeRightPx:
			flow++
		case dx < carriageReturnPx:
			flow += 2
		}
	}

	scanning := flow > float64(len(t.samples))*scanFlowRatio
	stableLine := yVar < maxVerticalVariance

	next := scanning && stableLine
	if next == t.reading {
		return nil
	}
	t.reading = next
	flipped := next
	return &flipped
}
