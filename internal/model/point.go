package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/geo"
)

type PointStatus string

const (
	PointStatusPending    PointStatus = "PENDING"
	PointStatusScheduled  PointStatus = "SCHEDULED"
	PointStatusInProgress PointStatus = "IN_PROGRESS"
	PointStatusCollected  PointStatus = "COLLECTED"
	PointStatusCancelled  PointStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s PointStatus) Terminal() bool {
	return s == PointStatusCollected || s == PointStatusCancelled
}

type QuantityUnit string

const (
	UnitKilograms   QuantityUnit = "KG"
	UnitBags        QuantityUnit = "BAGS"
	UnitCubicMeters QuantityUnit = "M3"
)

type CollectionPoint struct {
	ID           uuid.UUID    `json:"id"`
	CitizenID    uuid.UUID    `json:"citizen_id"`
	Street       string       `json:"street"`
	Number       string       `json:"number"`
	Neighborhood string       `json:"neighborhood"`
	Reference    *string      `json:"reference,omitempty"`
	Lng          float64      `json:"lng"`
	Lat          float64      `json:"lat"`
	Unit         QuantityUnit `json:"unit"`
	Quantity     float64      `json:"quantity"`
	Status       PointStatus  `json:"status"`

	// Route linkage, set while the point travels through a route.
	RouteID    *uuid.UUID `json:"route_id,omitempty"`
	RouteOrder *int       `json:"route_order,omitempty"`

	// Collection result, populated by check-in only.
	CollectedBy      *uuid.UUID `json:"collected_by,omitempty"`
	CollectedAt      *time.Time `json:"collected_at,omitempty"`
	CollectedQty     *float64   `json:"collected_qty,omitempty"`
	CollectionNotes  *string    `json:"collection_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	History []PointHistoryEntry `json:"history,omitempty" gorm:"-"`
}

func (p CollectionPoint) Coordinates() geo.Coordinates {
	return geo.Coordinates{Lng: p.Lng, Lat: p.Lat}
}

// PointHistoryEntry is one row of a point's append-only status log.
type PointHistoryEntry struct {
	ID        uuid.UUID   `json:"id"`
	PointID   uuid.UUID   `json:"point_id"`
	Status    PointStatus `json:"status"`
	ActorID   uuid.UUID   `json:"actor_id"`
	ActorRole Role        `json:"actor_role"`
	Note      *string     `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
