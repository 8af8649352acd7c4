package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
)

// Store is the collaborator that persists integrity events.
type Store interface {
	Append(ctx context.Context, ev *event.IntegrityEvent) error
}

// Emitter posts typed integrity events to the store on a best-effort,
// fire-and-forget basis. The contract is at-most-once with no ordering
// guarantee across subsystems: a full buffer or a store error drops the
// event and counts it, never blocking or failing the caller. Monitoring
// must never block the interview, so this is intentionally NOT a reliable
// queue.
type Emitter struct {
	store  Store
	logger *zap.Logger

	ch      chan *event.IntegrityEvent
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	sent    atomic.Int64
}

// NewEmitter creates an emitter with the given buffer size and starts its
// drain goroutine.
func NewEmitter(store Store, buffer int, logger *zap.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		store:  store,
		logger: logger,
		ch:     make(chan *event.IntegrityEvent, buffer),
		done:   make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit enqueues an event for delivery. It never blocks: when the buffer is
// full the event is dropped and the drop is logged and counted.
func (e *Emitter) Emit(interviewID uuid.UUID, eventType string, payload map[string]any) {
	ev, err := event.New(interviewID, eventType, payload)
	if err != nil {
		e.logger.Warn("discarding malformed integrity event",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	select {
	case e.ch <- ev:
	default:
		e.dropped.Add(1)
		e.logger.Warn("event buffer full, dropping integrity event",
			zap.String("type", eventType),
			zap.String("interview_id", interviewID.String()))
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case ev := <-e.ch:
			e.deliver(ev)
		case <-e.done:
			// Flush whatever is already buffered, then stop.
			for {
				select {
				case ev := <-e.ch:
					e.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(ev *event.IntegrityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.store.Append(ctx, ev); err != nil {
		// Delivery failures are logged and swallowed; no retry.
		e.dropped.Add(1)
		e.logger.Warn("integrity event delivery failed",
			zap.String("type", ev.Type),
			zap.String("interview_id", ev.InterviewID.String()),
			zap.Error(err))
		return
	}
	e.sent.Add(1)
}

// Dropped returns the number of events lost to overflow or store errors.
func (e *Emitter) Dropped() int64 { return e.dropped.Load() }

// Sent returns the number of events delivered to the store.
func (e *Emitter) Sent() int64 { return e.sent.Load() }

// Close stops the drain goroutine after flushing the buffered backlog.
func (e *Emitter) Close() {
	e.once.Do(func() { close(e.done) })
}
