package server

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	if err := hub.DataChanged(context.Background()); err != nil {
		t.Fatalf("DataChanged: %v", err)
	}

	for name, ch := range map[string]<-chan ChangeEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Timestamp.IsZero() {
				t.Errorf("%s: zero timestamp", name)
			}
		default:
			t.Errorf("%s: no event received", name)
		}
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	_, cancel := hub.Subscribe()
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers: got %d, want 1", hub.Subscribers())
	}
	cancel()
	if hub.Subscribers() != 0 {
		t.Errorf("subscribers after cancel: got %d, want 0", hub.Subscribers())
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	_, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		if err := hub.DataChanged(context.Background()); err != nil {
			t.Fatalf("DataChanged #%d: %v", i, err)
		}
	}
}
