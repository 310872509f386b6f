package model

import (
	"time"

	"github.com/google/uuid"
)

type RouteStatus string

const (
	RouteStatusDraft      RouteStatus = "DRAFT"
	RouteStatusScheduled  RouteStatus = "SCHEDULED"
	RouteStatusInProgress RouteStatus = "IN_PROGRESS"
	RouteStatusCompleted  RouteStatus = "COMPLETED"
	RouteStatusCancelled  RouteStatus = "CANCELLED"
)

type StopStatus string

const (
	StopStatusPending   StopStatus = "PENDING"
	StopStatusCompleted StopStatus = "COMPLETED"
	StopStatusSkipped   StopStatus = "SKIPPED"
)

type Route struct {
	ID            uuid.UUID   `json:"id"`
	CollectorID   uuid.UUID   `json:"collector_id"`
	ScheduledDate time.Time   `json:"scheduled_date"`
	WindowStart   string      `json:"window_start"`
	WindowEnd     string      `json:"window_end"`
	Status        RouteStatus `json:"status"`

	// Planning results.
	TotalDistanceKm  float64 `json:"total_distance_km"`
	EstimatedMinutes float64 `json:"estimated_minutes"`

	// Execution telemetry.
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ActualMinutes     *float64   `json:"actual_minutes,omitempty"`
	StartLng          *float64   `json:"start_lng,omitempty"`
	StartLat          *float64   `json:"start_lat,omitempty"`
	CurrentLng        *float64   `json:"current_lng,omitempty"`
	CurrentLat        *float64   `json:"current_lat,omitempty"`
	EndLng            *float64   `json:"end_lng,omitempty"`
	EndLat            *float64   `json:"end_lat,omitempty"`
	CollectionsCount  int        `json:"collections_count"`
	AvgMinutesPerStop *float64   `json:"avg_minutes_per_stop,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stops     []RouteStop     `json:"stops,omitempty" gorm:"-"`
	Breaks    []BreakInterval `json:"breaks,omitempty" gorm:"-"`
	Incidents []Incident      `json:"incidents,omitempty" gorm:"-"`
}

// RouteStop links one collection point into a route's visiting order.
type RouteStop struct {
	RouteID          uuid.UUID  `json:"route_id"`
	PointID          uuid.UUID  `json:"point_id"`
	Position         int        `json:"position"`
	Status           StopStatus `json:"status"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	ActualArrival    *time.Time `json:"actual_arrival,omitempty"`
}

type BreakInterval struct {
	ID        uuid.UUID  `json:"id"`
	RouteID   uuid.UUID  `json:"route_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type IncidentSeverity string

const (
	SeverityInfo     IncidentSeverity = "INFO"
	SeverityWarning  IncidentSeverity = "WARNING"
	SeverityCritical IncidentSeverity = "CRITICAL"
)

type Incident struct {
	ID          uuid.UUID        `json:"id"`
	RouteID     uuid.UUID        `json:"route_id"`
	CollectorID uuid.UUID        `json:"collector_id"`
	Severity    IncidentSeverity `json:"severity"`
	Description string           `json:"description"`
	Lng         *float64         `json:"lng,omitempty"`
	Lat         *float64         `json:"lat,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
