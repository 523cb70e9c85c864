// Package eventbus publishes planner lifecycle events to asynchronous subscribers.
package eventbus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// ChannelEventBus fans events out to subscribers from a pool of workers
// reading a buffered channel.
type ChannelEventBus struct {
	mutex          sync.RWMutex
	subscribers    map[EventType]map[string]EventHandler
	allSubscribers map[string]EventHandler
	closed         bool

	queue chan queuedEvent
	done  chan struct{}
	wg    sync.WaitGroup

	bufferSize    int
	workerCount   int
	maxRetries    int
	retryInterval time.Duration
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

type ChannelEventBusOption func(*ChannelEventBus)

func WithBufferSize(size int) ChannelEventBusOption {
	return func(eb *ChannelEventBus) {
		if size > 0 {
			eb.bufferSize = size
		}
	}
}

func WithWorkerCount(count int) ChannelEventBusOption {
	return func(eb *ChannelEventBus) {
		if count > 0 {
			eb.workerCount = count
		}
	}
}

// WithRetries sets how often a failing handler is retried and the pause between attempts.
func WithRetries(maxRetries int, retryInterval time.Duration) ChannelEventBusOption {
	return func(eb *ChannelEventBus) {
		eb.maxRetries = maxRetries
		eb.retryInterval = retryInterval
	}
}

func NewChannelEventBus(options ...ChannelEventBusOption) *ChannelEventBus {
	eb := &ChannelEventBus{
		subscribers:    make(map[EventType]map[string]EventHandler),
		allSubscribers: make(map[string]EventHandler),
		done:           make(chan struct{}),
		bufferSize:     100,
		workerCount:    5,
		maxRetries:     3,
		retryInterval:  100 * time.Millisecond,
	}
	for _, option := range options {
		option(eb)
	}
	eb.queue = make(chan queuedEvent, eb.bufferSize)
	for i := 0; i < eb.workerCount; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}
	return eb
}

func (eb *ChannelEventBus) worker() {
	defer eb.wg.Done()
	for {
		select {
		case <-eb.done:
			return
		case qe := <-eb.queue:
			eb.dispatch(qe)
		}
	}
}

func (eb *ChannelEventBus) handlersFor(t EventType) []EventHandler {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	handlers := make([]EventHandler, 0, len(eb.subscribers[t])+len(eb.allSubscribers))
	for _, h := range eb.subscribers[t] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allSubscribers {
		handlers = append(handlers, h)
	}
	return handlers
}

func (eb *ChannelEventBus) dispatch(qe queuedEvent) {
	for _, handler := range eb.handlersFor(qe.event.Type()) {
		eb.run(qe.ctx, qe.event, handler)
	}
}

// run calls handler until it succeeds or retries are exhausted.
func (eb *ChannelEventBus) run(ctx context.Context, event Event, handler EventHandler) {
	var err error
	for attempt := 0; attempt <= eb.maxRetries; attempt++ {
		if err = handler(ctx, event); err == nil {
			return
		}
		if attempt == eb.maxRetries {
			break
		}
		select {
		case <-eb.done:
			return
		case <-time.After(eb.retryInterval):
		}
	}
	log.Printf("Event handler failed (event_type: %s, run_id: %s, retries: %d, error: %v)",
		event.Type(), RunID(event), eb.maxRetries, err)
}

// Publish queues event for delivery. Handlers receive a context detached
// from ctx's cancellation so events published by a cancelled run still
// reach observers; ctx only bounds the wait for queue space.
func (eb *ChannelEventBus) Publish(ctx context.Context, event Event) error {
	eb.mutex.RLock()
	closed := eb.closed
	eb.mutex.RUnlock()
	if closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-eb.done:
		return ErrClosed
	case eb.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	}
}

func (eb *ChannelEventBus) Subscribe(eventTypes []EventType, handler EventHandler) (string, error) {
	if handler == nil {
		return "", errors.New("handler cannot be nil")
	}
	if len(eventTypes) == 0 {
		return "", errors.New("at least one event type is required")
	}
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	if eb.closed {
		return "", ErrClosed
	}
	id := uuid.New().String()
	for _, t := range eventTypes {
		if eb.subscribers[t] == nil {
			eb.subscribers[t] = make(map[string]EventHandler)
		}
		eb.subscribers[t][id] = handler
	}
	return id, nil
}

func (eb *ChannelEventBus) SubscribeAll(handler EventHandler) (string, error) {
	if handler == nil {
		return "", errors.New("handler cannot be nil")
	}
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	if eb.closed {
		return "", ErrClosed
	}
	id := uuid.New().String()
	eb.allSubscribers[id] = handler
	return id, nil
}

func (eb *ChannelEventBus) Unsubscribe(subscriptionID string) error {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	if eb.closed {
		return ErrClosed
	}
	delete(eb.allSubscribers, subscriptionID)
	for _, subs := range eb.subscribers {
		delete(subs, subscriptionID)
	}
	return nil
}

// Close stops the workers. Queued events not yet picked up are dropped.
func (eb *ChannelEventBus) Close() error {
	eb.mutex.Lock()
	if eb.closed {
		eb.mutex.Unlock()
		return nil
	}
	eb.closed = true
	eb.mutex.Unlock()

	close(eb.done)
	eb.wg.Wait()
	return nil
}
