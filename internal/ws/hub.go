package ws

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when a publish is attempted on a hub that was
// never constructed or has been closed. Callers log it and carry on; the
// broadcast layer is best-effort and must never block a state mutation.
var ErrUnavailable = errors.New("broadcast hub unavailable")

// subscriberBuffer is the per-connection event backlog. A subscriber that
// falls this far behind starts losing events and must reconcile over REST.
const subscriberBuffer = 64

// Subscriber is one connection's ordered event stream. Events published to
// any room the subscriber has joined arrive on a single channel, so the
// per-connection delivery order matches publish order.
type Subscriber struct {
	events chan Event
}

func (s *Subscriber) Events() <-chan Event { return s.events }

// Hub fans events out to named rooms. It is constructed once at process
// start and injected into everything that publishes; there is no package
// level instance on purpose.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	closed bool
	log    zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscriber]struct{}),
		log:   log,
	}
}

// Join registers a subscriber in every given room and returns it.
func (h *Hub) Join(rooms ...string) (*Subscriber, error) {
	if h == nil {
		return nil, ErrUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrUnavailable
	}

	sub := &Subscriber{events: make(chan Event, subscriberBuffer)}
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Subscriber]struct{})
			h.rooms[room] = members
		}
		members[sub] = struct{}{}
	}
	return sub, nil
}

// Leave removes the subscriber from every room and closes its stream.
func (h *Hub) Leave(sub *Subscriber) {
	if h == nil || sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := false
	for room, members := range h.rooms {
		if _, ok := members[sub]; ok {
			delete(members, sub)
			removed = true
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	if removed {
		close(sub.events)
	}
}

// Publish delivers an event to every subscriber of the room. There is no
// persistence or replay: offline observers miss the event and refresh via
// the REST API on reconnect. A subscriber with a full backlog is skipped.
func (h *Hub) Publish(room, name string, payload any) error {
	if h == nil {
		return ErrUnavailable
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrUnavailable
	}

	event := Event{Name: name, Payload: payload}
	for sub := range h.rooms[room] {
		select {
		case sub.events <- event:
		default:
			h.log.Warn().Str("room", room).Str("event", name).Msg("subscriber backlog full, dropping event")
		}
	}
	return nil
}

// Close shuts the hub down; subsequent publishes fail with ErrUnavailable.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	// A subscriber may sit in several rooms; close each stream once.
	unique := make(map[*Subscriber]struct{})
	for _, members := range h.rooms {
		for sub := range members {
			unique[sub] = struct{}{}
		}
	}
	for sub := range unique {
		close(sub.events)
	}
	h.rooms = make(map[string]map[*Subscriber]struct{})
}
