// Package events is the registry-wide fan-out from spec.md §4.5: many
// concurrent subscribers, each with a bounded delivery buffer, none of
// which can block a producer. Grounded on the teacher's broker shape
// (pkg/events/events.go), extended with per-subscriber eviction (the
// teacher silently drops individual events on a full buffer; spec.md
// instead drops the whole subscriber) and filter predicates.
package events

import (
	"errors"
	"sync"
	"time"
)

// ErrSlowConsumer is delivered on a Subscription's Done channel when
// the broker evicts it for falling persistently behind.
var ErrSlowConsumer = errors.New("events: slow consumer evicted")

// Type identifies the kind of event, per spec.md §4.5.
type Type string

const (
	WorkerSpawned         Type = "workerSpawned"
	WorkerStatusChanged   Type = "workerStatusChanged"
	WorkerHealthChanged   Type = "workerHealthChanged"
	WorkerSettingsChanged Type = "workerSettingsChanged"
	WorkerCrashed         Type = "workerCrashed"
	WorkerKilled          Type = "workerKilled"
	WorkerOutput          Type = "workerOutput"
	WorkerDiscovered      Type = "workerDiscovered"
	CheckpointCreated     Type = "checkpointCreated"
)

// Event is one fan-out message. WorkerID is set for every type except
// registry-wide ones; Seq and Bytes are set only for WorkerOutput.
type Event struct {
	Type      Type
	WorkerID  string
	Seq       uint64
	Bytes     []byte
	Timestamp time.Time
	Data      any
}

// Filter decides whether an event is delivered to a particular
// subscriber. A nil Filter delivers everything.
type Filter func(Event) bool

// subscriberBuffer bounds how many undelivered events a subscriber may
// accumulate before the broker evicts it.
const subscriberBuffer = 256

// Subscription is a live, filtered stream of events.
type Subscription struct {
	id   uint64
	C    <-chan Event
	Done <-chan error // closed (nil available) on clean Unsubscribe, carries ErrSlowConsumer on eviction

	ch        chan Event
	done      chan error
	filter    Filter
	closeOnce sync.Once
}

func (s *Subscription) deliver(e Event) bool {
	if s.filter != nil && !s.filter(e) {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) closeWith(err error) {
	s.closeOnce.Do(func() {
		close(s.ch)
		s.done <- err
		close(s.done)
	})
}

// Broker distributes events to subscribers in production order per
// subscriber, with no blocking on slow consumers.
type Broker struct {
	mu        sync.RWMutex
	subs      map[uint64]*Subscription
	nextSubID uint64

	eventCh chan Event
	stopCh  chan struct{}
	stopped bool
}

// NewBroker constructs a Broker. Call Start before Publish.
func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[uint64]*Subscription),
		eventCh: make(chan Event, 256),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the broker's distribution loop in a background
// goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts distribution. Subscribers are not notified; callers
// should Unsubscribe them first if a clean shutdown is wanted.
func (b *Broker) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	close(b.stopCh)
}

// Publish enqueues an event for distribution.
func (b *Broker) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- e:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case e := <-b.eventCh:
			b.broadcast(e)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(e Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.deliver(e) {
			b.evict(s.id, ErrSlowConsumer)
		}
	}
}

// Subscribe returns a new Subscription. filter may be nil to receive
// every event.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := &Subscription{
		id:     b.nextSubID,
		ch:     make(chan Event, subscriberBuffer),
		done:   make(chan error, 1),
		filter: filter,
	}
	sub.C = sub.ch
	sub.Done = sub.done
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe releases a subscription. Done closes without an error.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
	}
	b.mu.Unlock()
	if ok {
		sub.closeWith(nil)
	}
}

func (b *Broker) evict(id uint64, reason error) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.closeWith(reason)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
