package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("undo.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindUndoSucceeded, Payload: UndoOutcome{RequestID: "r1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindUndoSucceeded {
			t.Errorf("got kind %q, want %s", evt.Kind, KindUndoSucceeded)
		}
		if evt.ID == "" {
			t.Error("event ID not assigned")
		}
		if evt.Timestamp.IsZero() {
			t.Error("event timestamp not assigned")
		}
		if out, ok := evt.Payload.(UndoOutcome); !ok || out.RequestID != "r1" {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishKeepsCallerIDAndTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	defer unsub()

	ts := time.UnixMilli(42)
	b.Publish(Event{ID: "fixed", Kind: "x", Timestamp: ts})
	evt := <-ch
	if evt.ID != "fixed" || !evt.Timestamp.Equal(ts) {
		t.Errorf("event = %+v, want caller ID and timestamp kept", evt)
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindUndoQueued})
	b.Publish(Event{Kind: KindMessageTracked})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageTracked {
			t.Errorf("got kind %q, want %s", evt.Kind, KindMessageTracked)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("undo.", 10)
	unsub()
	unsub()

	b.Publish(Event{Kind: KindUndoFailed})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("undo.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindUndoQueued})
	// Dropped: buffer holds one event.
	b.Publish(Event{Kind: KindUndoSucceeded})

	evt := <-ch
	if evt.Kind != KindUndoQueued {
		t.Errorf("got %q, want %s", evt.Kind, KindUndoQueued)
	}
	select {
	case evt := <-ch:
		t.Errorf("second event should have been dropped, got %v", evt)
	default:
	}
}
