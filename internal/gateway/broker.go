// Package gateway holds the pieces shared by every domain.Gateway implementation.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmcdole/roster/internal/domain"
)

// subscriptionBuffer bounds how many undelivered URLs a slow subscriber may hold
const subscriptionBuffer = 4

// Broker fans out push events to attempt-scoped subscriptions.
// Publish never blocks; a subscriber with a full buffer misses the event.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
	logger *slog.Logger
}

// NewBroker creates an empty broker
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[uint64]*subscription),
		logger: logger,
	}
}

// Subscribe registers a new subscription. It is closed when ctx is done,
// when Close is called on it, or when the broker shuts down.
func (b *Broker) Subscribe(ctx context.Context) domain.Subscription {
	s := &subscription{
		ch:     make(chan string, subscriptionBuffer),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || ctx.Err() != nil {
		close(s.ch)
		s.done = true
		return s
	}
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	// AfterFunc runs Close on its own goroutine, which takes b.mu before
	// reading stop
	s.stop = context.AfterFunc(ctx, s.Close)
	return s
}

// Publish delivers url to every live subscription
func (b *Broker) Publish(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, s := range b.subs {
		select {
		case s.ch <- url:
		default:
			b.logger.Warn("dropping oauth url for slow subscriber", "subscription", id)
		}
	}
}

// Subscribers returns the number of live subscriptions
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and rejects new ones
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		s.done = true
		close(s.ch)
	}
}

func (b *Broker) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	delete(b.subs, s.id)
	close(s.ch)
}

type subscription struct {
	id     uint64
	ch     chan string
	broker *Broker
	stop   func() bool // guarded by broker.mu
	done   bool        // guarded by broker.mu
}

func (s *subscription) URLs() <-chan string {
	return s.ch
}

func (s *subscription) Close() {
	s.broker.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.broker.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.broker.remove(s)
}
