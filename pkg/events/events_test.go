package events

import (
	"testing"
	"time"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: WorkerSpawned, WorkerID: "w1"})

	select {
	case e := <-sub.C:
		if e.Type != WorkerSpawned || e.WorkerID != "w1" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestFilterExcludesNonMatchingEvents(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(func(e Event) bool { return e.WorkerID == "w1" })
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: WorkerSpawned, WorkerID: "w2"})
	b.Publish(Event{Type: WorkerSpawned, WorkerID: "w1"})

	select {
	case e := <-sub.C:
		if e.WorkerID != "w1" {
			t.Fatalf("expected filtered stream to only deliver w1, got %q", e.WorkerID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected filtered event delivery")
	}

	select {
	case e := <-sub.C:
		t.Fatalf("expected no further events, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesDoneWithoutError(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	err, ok := <-sub.Done
	if ok && err != nil {
		t.Errorf("expected nil error on clean unsubscribe, got %v", err)
	}
}

func TestSlowConsumerEvicted(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(nil)

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{Type: WorkerOutput, WorkerID: "w1"})
	}

	select {
	case err := <-sub.Done:
		if err != ErrSlowConsumer {
			t.Errorf("expected ErrSlowConsumer, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscriber to be evicted for falling behind")
	}
}

func TestSubscriberCountTracksLifecycle(t *testing.T) {
	b := newTestBroker(t)
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers initially, got %d", b.SubscriberCount())
	}

	sub := b.Subscribe(nil)
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(sub)
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}
}

func TestPublishSetsTimestampWhenZero(t *testing.T) {
	b := newTestBroker(t)
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	before := time.Now()
	b.Publish(Event{Type: WorkerSpawned})

	select {
	case e := <-sub.C:
		if e.Timestamp.Before(before) {
			t.Errorf("expected timestamp set to now, got %v before %v", e.Timestamp, before)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}
