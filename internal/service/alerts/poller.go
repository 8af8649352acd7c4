package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/errors"
)

const defaultPollInterval = 3 * time.Second

// SnapshotStore remembers the timestamp of the last alert surfaced per
// interview so restarts and multiple instances do not replay it.
type SnapshotStore interface {
	LastSeen(ctx context.Context, interviewID uuid.UUID) (time.Time, error)
	SetLastSeen(ctx context.Context, interviewID uuid.UUID, t time.Time) error
}

// Poller periodically checks every subscribed interview for fresh warnings
// and fans them out to subscribers. An alert is delivered at most once: the
// snapshot store keys de-duplication on the event timestamp.
type Poller struct {
	svc       *Service
	snapshots SnapshotStore
	interval  time.Duration
	logger    *zap.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]map[int]chan Alert
	next int
}

func NewPoller(svc *Service, snapshots SnapshotStore, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		svc:       svc,
		snapshots: snapshots,
		interval:  interval,
		logger:    logger,
		subs:      make(map[uuid.UUID]map[int]chan Alert),
	}
}

// Subscribe registers interest in an interview's alerts. The returned cancel
// func must be called when the subscriber goes away; it closes the channel.
func (p *Poller) Subscribe(interviewID uuid.UUID) (<-chan Alert, func()) {
	ch := make(chan Alert, 4)

	p.mu.Lock()
	id := p.next
	p.next++
	if p.subs[interviewID] == nil {
		p.subs[interviewID] = make(map[int]chan Alert)
	}
	p.subs[interviewID][id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if set, ok := p.subs[interviewID]; ok {
			if _, live := set[id]; live {
				delete(set, id)
				close(ch)
			}
			if len(set) == 0 {
				delete(p.subs, interviewID)
			}
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Run polls until the context ends. Intended as a long-lived goroutine.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	for _, interviewID := range p.watched() {
		if err := p.checkOne(ctx, interviewID); err != nil {
			p.logger.Warn("alert sweep failed for interview",
				zap.String("interview_id", interviewID.String()),
				zap.Error(err))
		}
	}
}

func (p *Poller) watched() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	return ids
}

func (p *Poller) checkOne(ctx context.Context, interviewID uuid.UUID) error {
	alert, err := p.svc.Check(ctx, interviewID)
	if err != nil {
		return errors.NewDomainError("ALERT_CHECK_FAILED", "alert check failed").WithCause(err)
	}
	if !alert.HasWarning {
		return nil
	}

	lastSeen, err := p.snapshots.LastSeen(ctx, interviewID)
	if err != nil {
		// Degrade to possibly duplicate delivery rather than silence.
		p.logger.Warn("alert snapshot read failed",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
	}
	if !alert.CreatedAt.After(lastSeen) {
		return nil
	}

	if err := p.snapshots.SetLastSeen(ctx, interviewID, alert.CreatedAt); err != nil {
		p.logger.Warn("alert snapshot write failed",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
	}

	p.broadcast(interviewID, alert)
	return nil
}

// broadcast never blocks: a subscriber that stopped draining misses the
// alert instead of stalling the sweep.
func (p *Poller) broadcast(interviewID uuid.UUID, alert Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[interviewID] {
		select {
		case ch <- alert:
		default:
		}
	}
}
