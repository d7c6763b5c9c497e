// Package eventbus fans diagnosis lifecycle events out to in-process subscribers.
package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"leaf-diagnosis-server/internal/platform/logging"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

type Options struct {
	Workers   int
	QueueSize int
	Logger    *logging.Logger
}

// Bus wraps a synchronous evbus.Bus with a bounded worker pool for async delivery.
// Async events are dropped, not blocked on, when the queue is full.
type Bus struct {
	bus     evbus.Bus
	workers int
	queue   chan asyncEvent
	stop    chan struct{}
	logger  *logging.Logger

	wg      sync.WaitGroup
	pending sync.WaitGroup
	started atomic.Bool
	dropped atomic.Int64

	// mu orders pending.Add in PublishAsync before the pending.Wait in Stop.
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func New(opts Options) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Bus{
		bus:     evbus.New(),
		workers: opts.Workers,
		queue:   make(chan asyncEvent, opts.QueueSize),
		stop:    make(chan struct{}),
		logger:  opts.Logger,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop drains queued events and then stops the workers.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()

		if b.started.Load() {
			b.pending.Wait()
		}
		close(b.stop)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			return
		case ev := <-b.queue:
			b.deliver(ev)
		}
	}
}

func (b *Bus) deliver(ev asyncEvent) {
	defer b.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorTag("EVENTS", "subscriber for %s panicked: %v", ev.topic, r)
		}
	}()
	b.bus.Publish(ev.topic, ev.args...)
}

// Publish delivers to subscribers on the calling goroutine.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync queues delivery. Without running workers it falls back to Publish.
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	b.mu.RLock()
	if !b.started.Load() || b.stopped {
		b.mu.RUnlock()
		b.Publish(topic, args...)
		return
	}

	b.pending.Add(1)
	queued := true
	select {
	case b.queue <- asyncEvent{topic: topic, args: args}:
	default:
		queued = false
	}
	b.mu.RUnlock()

	if !queued {
		b.pending.Done()
		n := b.dropped.Add(1)
		b.logger.WarnTag("EVENTS", "queue full, dropped %s event (total dropped %d)", topic, n)
	}
}

func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Drain blocks until every queued async event has been delivered.
func (b *Bus) Drain() {
	b.pending.Wait()
}

func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
