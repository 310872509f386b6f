package model

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is written once per successful collection and never mutated.
type CheckIn struct {
	ID            uuid.UUID `json:"id"`
	RouteID       uuid.UUID `json:"route_id"`
	PointID       uuid.UUID `json:"point_id"`
	CollectorID   uuid.UUID `json:"collector_id"`
	ReportedLng   float64   `json:"reported_lng"`
	ReportedLat   float64   `json:"reported_lat"`
	DistanceM     float64   `json:"distance_m"`
	LocationValid bool      `json:"location_valid"`
	Quantity      float64   `json:"quantity"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
