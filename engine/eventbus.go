package engine

import (
	"context"
	"sync"
	"time"

	"learnxp/core"
)

// DispatchMode selects how Publish delivers events to handlers.
type DispatchMode int

const (
	// DispatchSync invokes handlers inline on the publishing goroutine.
	DispatchSync DispatchMode = iota
	// DispatchAsync queues events to a worker pool.
	DispatchAsync
)

const (
	asyncQueueSize = 2048
	asyncWorkers   = 4
)

type subscription struct {
	id int64
	fn func(context.Context, core.Event)
}

// EventBus is a thread-safe pub/sub for committed domain events. The engine
// publishes on it only after a storage write is confirmed, so subscribers
// never observe state that was rolled back.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.EventType]map[int64]subscription
	nextID int64
	queue  chan core.Event
	ctx    context.Context
	cancel context.CancelFunc
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:   mode,
		subs:   make(map[core.EventType]map[int64]subscription),
		queue:  make(chan core.Event, asyncQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	if mode == DispatchAsync {
		for i := 0; i < asyncWorkers; i++ {
			go eb.worker()
		}
	}
	return eb
}

func (e *EventBus) worker() {
	for {
		select {
		case ev := <-e.queue:
			e.dispatch(context.Background(), ev)
		case <-e.ctx.Done():
			return
		}
	}
}

// Close stops async workers.
func (e *EventBus) Close() {
	e.cancel()
	// allow workers to drain briefly
	time.Sleep(10 * time.Millisecond)
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends an event to subscribers. In async mode a full queue drops the
// event rather than blocking the award path.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case e.queue <- ev:
		default:
		}
		return
	}
	e.dispatch(ctx, ev)
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
