package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/repository"
)

// Store interfaces let the services run against in-memory fakes in tests;
// the repository package provides the real implementations.

type PointStore interface {
	Create(ctx context.Context, p model.CollectionPoint) error
	Get(ctx context.Context, id uuid.UUID) (*model.CollectionPoint, error)
	ListPending(ctx context.Context) ([]model.CollectionPoint, error)
	ListNearby(ctx context.Context, center geo.Coordinates, radiusM float64) ([]model.CollectionPoint, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.CollectionPoint, error)
	ListByRoute(ctx context.Context, routeID uuid.UUID) ([]model.CollectionPoint, error)
	ListByCitizen(ctx context.Context, citizenID uuid.UUID) ([]model.CollectionPoint, error)
	UpdateStatusConditional(ctx context.Context, p model.CollectionPoint, expected model.PointStatus) (bool, error)
	Collect(ctx context.Context, pointID, collectorID uuid.UUID, quantity float64, notes *string, now time.Time) (bool, error)
	AppendHistory(ctx context.Context, entry model.PointHistoryEntry) error
	CountByStatus(ctx context.Context) ([]repository.StatusCount, error)
	CountByNeighborhood(ctx context.Context) ([]repository.NeighborhoodCount, error)
}

type RouteStore interface {
	Create(ctx context.Context, route model.Route) error
	Get(ctx context.Context, id uuid.UUID) (*model.Route, error)
	ListByCollector(ctx context.Context, collectorID uuid.UUID) ([]model.Route, error)
	ListByDate(ctx context.Context, date time.Time) ([]model.Route, error)
	UpdateStatusConditional(ctx context.Context, route model.Route, expected model.RouteStatus) (bool, error)
	UpdateStopStatus(ctx context.Context, routeID, pointID uuid.UUID, status model.StopStatus, actualArrival *time.Time) error
	RecordCollection(ctx context.Context, routeID uuid.UUID, now time.Time) error
	UpdateCurrentLocation(ctx context.Context, routeID uuid.UUID, lng, lat float64, now time.Time) error
	AddDistance(ctx context.Context, routeID uuid.UUID, km float64) error
	ReplaceStops(ctx context.Context, routeID uuid.UUID, stops []model.RouteStop, totalKm, estimatedMin float64, now time.Time) error
	StartBreak(ctx context.Context, brk model.BreakInterval) error
	EndBreak(ctx context.Context, routeID uuid.UUID, now time.Time) (bool, error)
	AddIncident(ctx context.Context, incident model.Incident) error
}

type CollectorStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Collector, error)
	Ensure(ctx context.Context, id uuid.UUID) error
	SetActiveRoute(ctx context.Context, id uuid.UUID, routeID *uuid.UUID) error
	IncrementCollections(ctx context.Context, id uuid.UUID) error
	AddDistance(ctx context.Context, id uuid.UUID, km float64) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lng, lat float64, now time.Time) error
}

type CheckInStore interface {
	Create(ctx context.Context, c model.CheckIn) error
	ListByRoute(ctx context.Context, routeID uuid.UUID) ([]model.CheckIn, error)
}

// Broadcaster publishes real-time events to a named room. Publishing is
// best-effort: services log failures and never let them roll back a state
// mutation.
type Broadcaster interface {
	Publish(room, event string, payload any) error
}
