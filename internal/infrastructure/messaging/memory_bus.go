// Package messaging delivers practice domain events to subscribers, either
// within one process or across processes through Redis Pub/Sub.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/pkg/logger"
)

var (
	// ErrEventBusClosed is returned by every operation after Close.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	errNilHandler = errors.New("handler cannot be nil")
	errNilEvent   = errors.New("event cannot be nil")
)

// anyEvent keys the subscribers that receive every event type.
const anyEvent shared.EventType = ""

// InMemoryEventBusConfig configures an InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode hands deliveries to a worker pool instead of running
	// handlers on the publisher's goroutine.
	AsyncMode bool

	// WorkerPoolSize is the number of workers in async mode.
	WorkerPoolSize int

	Logger        *logger.Logger
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns an async bus with four workers and
// metrics on.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		EnableMetrics:  true,
	}
}

type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// InMemoryEventBus fans events out to handlers registered in this process.
type InMemoryEventBus struct {
	log     *logger.Logger
	metrics *EventBusMetrics

	mu     sync.RWMutex
	subs   map[shared.EventType][]shared.EventHandler
	closed bool

	// Async mode only.
	queue     chan delivery
	inflight  sync.WaitGroup
	workersWG sync.WaitGroup
}

// NewInMemoryEventBus creates a bus. In async mode its workers start
// immediately and stop on Close.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	b := &InMemoryEventBus{
		log:  log.With(logger.Component("eventbus")),
		subs: make(map[shared.EventType][]shared.EventHandler),
	}
	if cfg.EnableMetrics {
		b.metrics = NewEventBusMetrics()
	}

	if cfg.AsyncMode {
		workers := cfg.WorkerPoolSize
		if workers <= 0 {
			workers = 4
		}
		b.queue = make(chan delivery, workers*64)
		b.workersWG.Add(workers)
		for i := 0; i < workers; i++ {
			go b.work()
		}
	}
	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.add(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.add(anyEvent, handler)
}

func (b *InMemoryEventBus) add(key shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.subs[key] = append(b.subs[key], handler)
	return nil
}

// Publish delivers event to its type's handlers, then to the catch-all
// handlers. Handler errors are logged and never returned.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := append(append([]shared.EventHandler(nil), b.subs[event.EventType()]...), b.subs[anyEvent]...)
	if b.queue != nil {
		b.inflight.Add(1)
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.recordPublish()
	}

	if b.queue == nil {
		for _, h := range targets {
			b.run(delivery{event: event, handler: h})
		}
		return nil
	}

	defer b.inflight.Done()
	for _, h := range targets {
		b.queue <- delivery{event: event, handler: h}
	}
	return nil
}

func (b *InMemoryEventBus) work() {
	defer b.workersWG.Done()
	for d := range b.queue {
		b.run(d)
	}
}

func (b *InMemoryEventBus) run(d delivery) {
	start := time.Now()
	err := invoke(d)
	if b.metrics != nil {
		b.metrics.recordHandler(time.Since(start), err == nil)
	}
	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(d.event.EventType())),
			logger.Err(err),
		)
	}
}

func invoke(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return d.handler(d.event)
}

// Close rejects further calls and, in async mode, waits until every queued
// delivery has run. It is idempotent.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.queue != nil {
		b.inflight.Wait()
		close(b.queue)
		b.workersWG.Wait()
	}
	return nil
}

// Metrics returns the bus counters, or nil when metrics are off.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}
