package ws

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func testHub() *Hub {
	return NewHub(zerolog.Nop())
}

func drain(t *testing.T, sub *Subscriber) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestHub_RoomScopedDelivery(t *testing.T) {
	hub := testHub()
	admin, _ := hub.Join("role:admin")
	collector, _ := hub.Join("role:collector")

	if err := hub.Publish("role:admin", "collection-updated", map[string]string{"id": "p1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	adminEvents := drain(t, admin)
	if len(adminEvents) != 1 || adminEvents[0].Name != "collection-updated" {
		t.Fatalf("admin events = %v", adminEvents)
	}
	if got := drain(t, collector); len(got) != 0 {
		t.Fatalf("collector must not receive admin-room events, got %v", got)
	}
}

func TestHub_PublishOrderPerSubscriber(t *testing.T) {
	hub := testHub()
	sub, _ := hub.Join("role:admin", "collector:c1")

	hub.Publish("role:admin", "a", nil)
	hub.Publish("collector:c1", "b", nil)
	hub.Publish("role:admin", "c", nil)

	events := drain(t, sub)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, want := range []string{"a", "b", "c"} {
		if events[i].Name != want {
			t.Fatalf("event %d = %s, want %s", i, events[i].Name, want)
		}
	}
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	hub := testHub()
	sub, _ := hub.Join("role:admin")
	hub.Leave(sub)

	if err := hub.Publish("role:admin", "x", nil); err != nil {
		t.Fatalf("publish to empty room must still succeed, got %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("left subscriber's stream must be closed")
	}
}

func TestHub_NilAndClosedUnavailable(t *testing.T) {
	var nilHub *Hub
	if err := nilHub.Publish("role:admin", "x", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("publish before init must fail fast, got %v", err)
	}

	hub := testHub()
	hub.Close()
	if err := hub.Publish("role:admin", "x", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("publish after close must fail, got %v", err)
	}
	if _, err := hub.Join("role:admin"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("join after close must fail, got %v", err)
	}
}

func TestHub_FullBacklogDropsNotBlocks(t *testing.T) {
	hub := testHub()
	sub, _ := hub.Join("role:admin")

	for i := 0; i < subscriberBuffer+10; i++ {
		if err := hub.Publish("role:admin", "tick", i); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	events := drain(t, sub)
	if len(events) != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, len(events))
	}
}
