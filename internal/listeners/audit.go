package listeners

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"cororun/internal/routine"
	"cororun/internal/storage"
	logx "cororun/pkg/logx"
)

var ErrAuditQueueFull = errors.New("audit queue full")

// AuditWriter moves transitions from the pump goroutine to a Store on a
// goroutine of its own, so a slow disk never stalls a tick.
type AuditWriter struct {
	store   storage.Store
	log     logx.Logger
	queue   chan storage.Transition
	dropped atomic.Uint64
	written atomic.Uint64
}

func NewAuditWriter(store storage.Store, queue int, log logx.Logger) *AuditWriter {
	if queue <= 0 {
		queue = 1024
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &AuditWriter{
		store: store,
		log:   log.With(logx.String("comp", "audit")),
		queue: make(chan storage.Transition, queue),
	}
}

// Listener returns a hook listener that queues a transition for kind. A
// full queue drops the transition and reports ErrAuditQueueFull.
func (w *AuditWriter) Listener(kind routine.Kind) routine.Listener {
	return func(r *routine.Routine) error {
		p := payload(kind, r)
		t := storage.Transition{
			At:         r.Env().Now(),
			RoutineID:  p.ID,
			Name:       p.Name,
			Owner:      p.Owner,
			Hook:       p.Hook,
			State:      p.State,
			Persistent: p.Persistent,
		}
		select {
		case w.queue <- t:
			return nil
		default:
			w.dropped.Add(1)
			return ErrAuditQueueFull
		}
	}
}

// Run writes queued transitions until ctx is done, then flushes what is
// left with a short deadline.
func (w *AuditWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case t := <-w.queue:
			// a row dequeued as ctx ends must still land
			w.write(context.WithoutCancel(ctx), t)
		}
	}
}

func (w *AuditWriter) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case t := <-w.queue:
			w.write(ctx, t)
		default:
			return
		}
	}
}

func (w *AuditWriter) write(ctx context.Context, t storage.Transition) {
	if err := w.store.AppendTransition(ctx, t); err != nil {
		w.log.Warn("append transition failed", logx.Uint64("routine_id", t.RoutineID), logx.String("hook", t.Hook), logx.Err(err))
		return
	}
	w.written.Add(1)
}

// Stats returns written and dropped counts.
func (w *AuditWriter) Stats() (written, dropped uint64) {
	return w.written.Load(), w.dropped.Load()
}
