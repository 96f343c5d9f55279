package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeAll(handler EventHandler)
}

// syncDispatcher runs handlers on the publishing goroutine, type-specific
// handlers first, then catch-all handlers, each in subscription order.
type syncDispatcher struct {
	mu       sync.RWMutex
	byType   map[EventType][]EventHandler
	catchAll []EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &syncDispatcher{byType: make(map[EventType][]EventHandler)}
}

// Publish delivers event to every matching handler. One failing or
// panicking handler does not stop delivery; failures are joined.
func (d *syncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.byType[event.Type])+len(d.catchAll))
	handlers = append(handlers, d.byType[event.Type]...)
	handlers = append(handlers, d.catchAll...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := deliver(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", event.Type, event.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for one event type.
func (d *syncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byType[eventType] = append(d.byType[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (d *syncDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catchAll = append(d.catchAll, handler)
}

func deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
