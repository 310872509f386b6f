package model

import (
	"time"

	"github.com/google/uuid"
)

// Collector is the execution-side aggregate of a collector user. Running
// totals are maintained with additive updates so interleaved check-ins
// never overwrite each other.
type Collector struct {
	ID               uuid.UUID  `json:"id"`
	FullName         string     `json:"full_name"`
	TotalCollections int64      `json:"total_collections"`
	TotalDistanceKm  float64    `json:"total_distance_km"`
	ActiveRouteID    *uuid.UUID `json:"active_route_id,omitempty"`
	LastLng          *float64   `json:"last_lng,omitempty"`
	LastLat          *float64   `json:"last_lat,omitempty"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty"`
}
