// Package eventbus is a small in-process fan-out bus carrying simulation
// progress events from the worker pool to metric collectors.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event represents an arbitrary event passed on the bus.
type Event = any

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

type subscriber struct {
	ch   chan Event
	quit chan struct{}
	once sync.Once
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.quit) }) }

// Bus is the default EventBus implementation using fan-out channels.
// By default publishing never blocks and an event is dropped for a
// subscriber whose buffer is full. A blocking bus waits for room instead,
// until the subscriber leaves or the bus is closed.
type Bus struct {
	mu       sync.RWMutex
	subs     []*subscriber
	index    sync.Map // <-chan Event -> *subscriber
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	buffer   int
	blocking bool
	dropped  atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithBlocking makes Publish wait for subscriber buffer space so that no
// event is lost while the subscriber keeps reading.
func WithBlocking() Option {
	return func(b *Bus) { b.blocking = true }
}

// New creates a new Bus.
func New(opts ...Option) *Bus {
	b := &Bus{buffer: DefaultBuffer, done: make(chan struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if !b.blocking {
			select {
			case s.ch <- e:
			default:
				b.dropped.Add(1)
			}
			continue
		}
		select {
		case s.ch <- e:
		case <-s.quit:
			b.dropped.Add(1)
		case <-b.done:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full, left or the bus closed mid-publish.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	s := &subscriber{ch: make(chan Event, b.buffer), quit: make(chan struct{})}
	b.mu.Lock()
	if b.closed {
		close(s.ch)
	} else {
		b.subs = append(b.subs, s)
		b.index.Store((<-chan Event)(s.ch), s)
	}
	b.mu.Unlock()
	return s.ch
}

// Unsubscribe removes the subscriber and closes its channel. A publisher
// blocked on that subscriber is released first.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	v, ok := b.index.LoadAndDelete(sub)
	if !ok {
		return
	}
	target := v.(*subscriber)
	target.stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Close releases blocked publishers, then closes all subscriber channels and
// clears the list.
func (b *Bus) Close() {
	b.doneOnce.Do(func() { close(b.done) })
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		b.index.Delete((<-chan Event)(s.ch))
		close(s.ch)
	}
	b.subs = nil
}
