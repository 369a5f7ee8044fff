package event

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// ErrBusClosed is returned when waiting on a bus that has been closed.
var ErrBusClosed = errors.New("event bus closed")

const subscriptionBuffer = 64

// Handler receives events from a subscription.
type Handler func(Event)

// Match selects the events a subscription or waiter is interested in.
// A nil Match selects everything.
type Match func(Event) bool

// ForGuild matches guild scoped events of a single guild.
func ForGuild(guildID snowflake.ID) Match {
	return func(e Event) bool {
		g, ok := e.(GuildEvent)
		return ok && g.Guild() == guildID
	}
}

// subscription delivers events to its handler in publish order from its own goroutine.
type subscription struct {
	id    string
	match Match
	fn    Handler
	queue chan Event
	done  chan struct{}
}

// Bus dispatches events to subscribers and one-shot waiters.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	waiters       map[*Waiter]struct{}
	closed        bool
	wg            sync.WaitGroup
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string]*subscription),
		waiters:       make(map[*Waiter]struct{}),
	}
}

// Subscribe registers fn for the events selected by match and returns the subscription ID.
func (b *Bus) Subscribe(fn Handler, match Match) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		id:    id,
		match: match,
		fn:    fn,
		queue: make(chan Event, subscriptionBuffer),
		done:  make(chan struct{}),
	}
	if b.closed {
		close(sub.done)
		return id
	}
	b.subscriptions[id] = sub

	b.wg.Add(1)
	go b.deliver(sub)
	return id
}

// Unsubscribe removes a subscription. Events not yet delivered are dropped.
func (b *Bus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscriptions[subscriptionID]; ok {
		close(sub.done)
		delete(b.subscriptions, subscriptionID)
	}
}

// Publish sends e to every matching subscriber and waiter. Publish blocks while
// a matching subscriber's queue is full.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.match == nil || sub.match(e) {
			subs = append(subs, sub)
		}
	}
	for w := range b.waiters {
		if w.match == nil || w.match(e) {
			w.ch <- e
			delete(b.waiters, w)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.queue <- e:
		case <-sub.done:
		}
	}
}

func (b *Bus) deliver(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case <-sub.done:
			return
		case e := <-sub.queue:
			b.invoke(sub, e)
		}
	}
}

func (b *Bus) invoke(sub *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event handler panicked: subscription=%s event=%s panic=%v", sub.id, e.Name(), r)
		}
	}()
	sub.fn(e)
}

// Await registers a one-shot waiter for the first event selected by match.
// Register the waiter before triggering the action that produces the event.
func (b *Bus) Await(match Match) *Waiter {
	w := &Waiter{bus: b, match: match, ch: make(chan Event, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(w.ch)
		return w
	}
	b.waiters[w] = struct{}{}
	return w
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close removes every subscription and waiter and waits for delivery goroutines to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subscriptions {
		close(sub.done)
		delete(b.subscriptions, id)
	}
	for w := range b.waiters {
		close(w.ch)
		delete(b.waiters, w)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// Waiter waits for a single event.
type Waiter struct {
	bus   *Bus
	match Match
	ch    chan Event
}

// Wait blocks until the event arrives or ctx is done.
func (w *Waiter) Wait(ctx context.Context) (Event, error) {
	select {
	case e, ok := <-w.ch:
		if !ok {
			return nil, ErrBusClosed
		}
		return e, nil
	case <-ctx.Done():
		w.Cancel()
		return nil, errors.Wrap(ctx.Err(), "event wait cancelled")
	}
}

// Cancel stops waiting. It is safe to call more than once.
func (w *Waiter) Cancel() {
	w.bus.mu.Lock()
	defer w.bus.mu.Unlock()
	delete(w.bus.waiters, w)
}
