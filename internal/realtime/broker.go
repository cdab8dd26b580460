package realtime

import (
	"context"
	"sync"
)

// Broker fans events out to in-process subscribers.
//
// Publishing never blocks and never drops a household. Each subscriber keeps
// at most one undelivered event per household: a newer event for a household
// that is still pending replaces the older one. Receivers refetch everything
// for the household, so the latest event covers the replaced ones.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscriber)}
}

var _ Publisher = (*Broker)(nil)

// Publish queues the event for every current subscriber.
func (b *Broker) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		sub.enqueue(event)
	}
	return nil
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	sub := newSubscriber()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	go sub.run()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.done)
			}
		})
	}
}

// Close unregisters every subscriber and closes their channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.done)
	}
}

// Len reports the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// subscriber holds the pending events of one subscription and pumps them
// into out, oldest household first.
type subscriber struct {
	out  chan Event
	wake chan struct{}
	done chan struct{}

	mu      sync.Mutex
	order   []string // households with a pending event
	pending map[string]Event
}

func newSubscriber() *subscriber {
	return &subscriber{
		out:     make(chan Event),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[string]Event),
	}
}

func (s *subscriber) enqueue(e Event) {
	s.mu.Lock()
	if _, ok := s.pending[e.HouseholdID]; !ok {
		s.order = append(s.order, e.HouseholdID)
	}
	s.pending[e.HouseholdID] = e
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return Event{}, false
	}
	id := s.order[0]
	s.order = s.order[1:]
	e := s.pending[id]
	delete(s.pending, id)
	return e, true
}

// run delivers pending events until the subscription is cancelled.
func (s *subscriber) run() {
	defer close(s.out)
	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}
