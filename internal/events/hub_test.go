package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypeStepStarted, map[string]string{"step": "build"})

	select {
	case ev := <-ch:
		if ev.Type != TypeStepStarted {
			t.Fatalf("type = %q, want %q", ev.Type, TypeStepStarted)
		}
		if ev.ID == 0 {
			t.Fatal("event ID not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSnapshotSince(t *testing.T) {
	h := NewHub(4)
	for i := 0; i < 6; i++ {
		h.Publish(TypeStepOutput, nil)
	}

	all := h.SnapshotSince(0)
	if len(all) != 4 {
		t.Fatalf("snapshot length = %d, want ring capacity 4", len(all))
	}
	// Oldest two were overwritten; the survivors are IDs 3..6, oldest first.
	if all[0].ID != 3 || all[3].ID != 6 {
		t.Fatalf("snapshot IDs = %d..%d, want 3..6", all[0].ID, all[3].ID)
	}

	recent := h.SnapshotSince(4)
	if len(recent) != 2 {
		t.Fatalf("snapshot since 4 length = %d, want 2", len(recent))
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish(TypeStepOutput, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestCancelIsIdempotentSafe(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after cancel")
	}
}
