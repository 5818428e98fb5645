// Package bus is the in-process notification fabric between room sessions
// and extensions. It carries no domain logic: sessions publish, extensions
// subscribe, and a broken subscriber never takes anyone else down.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kitbot/domain/event"
	kiterrors "kitbot/errors"
)

// Handler reacts to one published event. Returned errors are logged and
// isolated; they never reach the publisher.
type Handler func(ctx context.Context, e event.Event) error

// Bus maps signal names to ordered handler lists. Handlers for one signal
// run synchronously in registration order. Publishing a signal nobody
// subscribed to is a silent no-op.
//
// The subscriber lists are append-only at runtime; an unsubscribe
// operation would only need to take the write lock, nothing in the
// dispatch path assumes lists never shrink.
//
// Bus is safe for concurrent use by multiple goroutines.
type Bus struct {
	mu       sync.RWMutex
	log      *slog.Logger
	handlers map[string][]Handler
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe appends handler to the list for signal.
func (b *Bus) Subscribe(signal string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[signal] = append(b.handlers[signal], handler)
}

// Publish invokes every handler registered for signal, in order. A handler
// that returns an error or panics is logged and skipped over; the
// remaining handlers still run.
func (b *Bus) Publish(ctx context.Context, signal string, e event.Event) {
	b.mu.RLock()
	handlers := b.handlers[signal]
	b.mu.RUnlock()

	for i, handler := range handlers {
		if err := b.dispatch(ctx, handler, e); err != nil {
			b.log.Error("Event handler failed",
				"signal", signal, "position", i, "room", e.Room().Key(), "error", err)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, handler Handler, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", kiterrors.ErrWorkerPanic, r)
		}
	}()
	return handler(ctx, e)
}
