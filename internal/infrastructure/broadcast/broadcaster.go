// Package broadcast fans saved flight snapshots out to every connected
// subscriber. Writers enqueue and return immediately; one dispatcher
// goroutine delivers to per-subscriber buffered queues without waiting on
// any of them.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

const (
	defaultQueueSize        = 256
	defaultSubscriberBuffer = 64
)

var (
	errQueueFull      = errors.New("broadcast queue full")
	errSubscriberSlow = errors.New("subscriber queue full")
	errStopped        = errors.New("broadcaster stopped")
)

// Options sizes the broadcaster queues
type Options struct {
	QueueSize        int
	SubscriberBuffer int
}

// Subscription receives events on C until it is closed or the broadcaster stops
type Subscription struct {
	C    <-chan entity.FlightUpdated
	ID   uint64
	Name string

	ch      chan entity.FlightUpdated
	b       *Broadcaster
	dropped atomic.Int64
}

// Dropped is the number of events this subscriber missed because its queue was full
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.ID)
}

// Broadcaster publishes flight updates to subscribers
type Broadcaster struct {
	queue            chan entity.FlightUpdated
	subscriberBuffer int
	logger           logger.Logger
	metrics          *metrics.Metrics

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	stopped  atomic.Bool
	done     chan struct{}
	finished chan struct{}
	start    sync.Once
	stop     sync.Once
}

// New creates a broadcaster. Call Start before publishing.
func New(opts Options, log logger.Logger, m *metrics.Metrics) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Broadcaster{
		queue:            make(chan entity.FlightUpdated, opts.QueueSize),
		subscriberBuffer: opts.SubscriberBuffer,
		logger:           log,
		metrics:          m,
		subs:             make(map[uint64]*Subscription),
		done:             make(chan struct{}),
		finished:         make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine
func (b *Broadcaster) Start() {
	b.start.Do(func() {
		go b.dispatch()
	})
}

// Stop delivers what is already queued, then closes every subscription.
// Publish calls after Stop are dropped.
func (b *Broadcaster) Stop() {
	b.stop.Do(func() {
		b.stopped.Store(true)
		close(b.done)
	})
	b.start.Do(func() { go b.dispatch() })
	<-b.finished
}

// Publish wraps flight in an event and enqueues it. It never blocks; when
// the queue is full the event is dropped and logged as a transport failure.
func (b *Broadcaster) Publish(flight entity.FlightRecord) (entity.FlightUpdated, bool) {
	event := entity.NewFlightUpdated(flight)
	if b.stopped.Load() {
		b.drop("queue", event, errStopped)
		return event, false
	}
	select {
	case b.queue <- event:
		if b.metrics != nil {
			b.metrics.EventsPublished.Inc()
		}
		return event, true
	default:
		b.drop("queue", event, errQueueFull)
		return event, false
	}
}

// Subscribe registers a new subscriber. name only shows up in logs.
func (b *Broadcaster) Subscribe(name string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan entity.FlightUpdated, b.subscriberBuffer)
	b.nextID++
	sub := &Subscription{C: ch, ID: b.nextID, Name: name, ch: ch, b: b}
	if b.stopped.Load() {
		close(ch)
		return sub
	}
	b.subs[sub.ID] = sub
	if b.metrics != nil {
		b.metrics.Subscribers.Inc()
	}
	b.logger.Debug("Subscriber added", "subscriber", name, "id", sub.ID)
	return sub
}

// SubscriberCount returns the number of live subscriptions
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	if b.metrics != nil {
		b.metrics.Subscribers.Dec()
	}
	b.logger.Debug("Subscriber removed", "subscriber", sub.Name, "id", id)
}

func (b *Broadcaster) dispatch() {
	defer close(b.finished)
	for {
		select {
		case event := <-b.queue:
			b.fanOut(event)
		case <-b.done:
			b.drain()
			b.closeAll()
			return
		}
	}
}

func (b *Broadcaster) drain() {
	for {
		select {
		case event := <-b.queue:
			b.fanOut(event)
		default:
			return
		}
	}
}

func (b *Broadcaster) fanOut(event entity.FlightUpdated) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			b.drop("subscriber", event, errSubscriberSlow, "subscriber", sub.Name)
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
		if b.metrics != nil {
			b.metrics.Subscribers.Dec()
		}
	}
}

func (b *Broadcaster) drop(stage string, event entity.FlightUpdated, cause error, keysAndValues ...interface{}) {
	err := failure.NewTransport(stage, cause)
	fields := append([]interface{}{
		"eventId", event.ID,
		"flightNumber", event.Flight.FlightNumber,
		"error", err,
	}, keysAndValues...)
	b.logger.Warn("Dropped flight update", fields...)
	if b.metrics != nil {
		b.metrics.EventsDropped.WithLabelValues(stage).Inc()
		b.metrics.ErrorsCount.WithLabelValues(string(failure.KindTransport)).Inc()
	}
}
