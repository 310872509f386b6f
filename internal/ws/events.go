package ws

import "encoding/json"

// Event names are part of the wire contract shared with the dashboard,
// collector and citizen apps. Renaming one breaks clients.
const (
	EventPointCreated      = "point-created"
	EventCollectionUpdated = "collection-updated"
	EventPointCollected    = "point-collected"
	EventRouteAssigned     = "route-assigned"
	EventCollectorLocation = "collector-location"
	EventCollectorOffline  = "collector-offline"
	EventEmergencyAlert    = "emergency-alert"
)

// Event is one outbound real-time message. Payload must be
// JSON-serializable.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// InboundMessage is one typed message received from a connected client.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound pairs an event with the room it should reach. Inbound handlers
// return these instead of publishing directly, so handlers stay free of
// shared connection state.
type Outbound struct {
	Room  string
	Event Event
}
