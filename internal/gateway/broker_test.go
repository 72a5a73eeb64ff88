package gateway

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) (string, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for subscription")
		return "", false
	}
}

func TestBroker_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker(nil)
	s1 := b.Subscribe(context.Background())
	s2 := b.Subscribe(context.Background())
	defer s1.Close()
	defer s2.Close()

	b.Publish("https://accounts.example.com/auth?x=1")

	for _, s := range []interface{ URLs() <-chan string }{s1, s2} {
		got, ok := recv(t, s.URLs())
		if !ok || got != "https://accounts.example.com/auth?x=1" {
			t.Fatalf("unexpected url %q ok=%v", got, ok)
		}
	}
}

func TestBroker_CloseIsIdempotentAndUnsubscribes(t *testing.T) {
	b := NewBroker(nil)
	s := b.Subscribe(context.Background())
	if b.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Subscribers())
	}

	s.Close()
	s.Close()

	if b.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Subscribers())
	}
	if _, ok := recv(t, s.URLs()); ok {
		t.Fatalf("expected channel to be closed")
	}

	// Publishing after close must not panic
	b.Publish("late")
}

func TestBroker_ContextCancelClosesSubscription(t *testing.T) {
	b := NewBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	s := b.Subscribe(ctx)

	cancel()

	if _, ok := recv(t, s.URLs()); ok {
		t.Fatalf("expected channel to be closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected subscription to be removed")
	}
}

func TestBroker_ClosedBrokerRejectsSubscriptions(t *testing.T) {
	b := NewBroker(nil)
	live := b.Subscribe(context.Background())
	b.Close()

	if _, ok := recv(t, live.URLs()); ok {
		t.Fatalf("expected live subscription to end with broker")
	}

	s := b.Subscribe(context.Background())
	if _, ok := recv(t, s.URLs()); ok {
		t.Fatalf("expected closed subscription from closed broker")
	}
	s.Close()
	live.Close()
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(nil)
	s := b.Subscribe(context.Background())
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*3; i++ {
			b.Publish("u")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestBroker_SubscribeWithDoneContext(t *testing.T) {
	b := NewBroker(nil)
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := b.Subscribe(ctx)
		if _, ok := recv(t, s.URLs()); ok {
			t.Fatalf("expected closed subscription for a done context")
		}
		s.Close()
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Subscribers())
	}
}

func TestBroker_CancelRacesClose(t *testing.T) {
	b := NewBroker(nil)
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		s := b.Subscribe(ctx)
		go cancel()
		s.Close()
		if _, ok := recv(t, s.URLs()); ok {
			t.Fatalf("expected channel to be closed")
		}
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Subscribers())
	}
}
