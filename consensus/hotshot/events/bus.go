package events

import (
	"context"
	"errors"
	"sync"

	"github.com/ef-ds/deque"
)

// ErrClosed is returned by Subscription.Next once the subscription or its bus
// was closed and every event queued before was consumed.
var ErrClosed = errors.New("event subscription closed")

// Publisher is the sending side of the bus, as the tasks see it.
type Publisher interface {
	Publish(e Event)
}

var _ Publisher = (*Bus)(nil)

// Bus fans every published event out to all subscriptions. Each subscription
// has its own unbounded queue, so a slow consumer never blocks a publisher or
// the other consumers. Events published by one goroutine are delivered in
// publish order; there is no order across publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish enqueues the event on every current subscription.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.push(e)
	}
}

// Subscribe returns a subscription receiving every event published from now on.
func (b *Bus) Subscribe() *Subscription {
	s := newSubscription(b)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes all subscriptions. Events queued before remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
		delete(b.subs, s)
	}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is one consumer's cursor into the bus.
type Subscription struct {
	bus *Bus

	mu     sync.Mutex
	queue  deque.Deque
	notify chan struct{}
	closed bool
}

func newSubscription(b *Bus) *Subscription {
	return &Subscription{
		bus:    b,
		notify: make(chan struct{}, 1),
	}
}

// Next returns the oldest undelivered event, waiting for one to be published.
//
// Expected error returns during normal operations:
//   - ErrClosed if the subscription is closed and drained
//   - context errors if ctx ends first
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		e, ok := s.queue.PopFront()
		closed := s.closed
		s.mu.Unlock()
		if ok {
			return e.(Event), nil
		}
		if closed {
			return nil, ErrClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Len returns the number of queued events.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Clone returns a new subscription that starts with the events still queued
// on s and receives everything published afterwards.
func (s *Subscription) Clone() *Subscription {
	c := newSubscription(s.bus)
	// bus before subscription, as Publish does
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.mu.Lock()
	for i := 0; i < s.queue.Len(); i++ {
		e, _ := s.queue.PopFront()
		s.queue.PushBack(e)
		c.queue.PushBack(e)
	}
	closed := s.closed
	s.mu.Unlock()
	if closed || s.bus.closed {
		c.closed = true
		return c
	}
	s.bus.subs[c] = struct{}{}
	return c
}

// Close detaches the subscription from the bus. Queued events remain readable.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.close()
}

func (s *Subscription) push(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue.PushBack(e)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
