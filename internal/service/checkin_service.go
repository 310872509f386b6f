package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/greenops-routes/internal/cache"
	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/state"
	"github.com/nurpe/greenops-routes/internal/ws"
)

// CheckInService commits a collector's confirmation that one point's waste
// was picked up. The point flip is a status-conditioned write, so two
// racing check-ins for the same point resolve to exactly one success and
// one ErrAlreadyCollected.
type CheckInService struct {
	points     PointStore
	routes     RouteStore
	collectors CollectorStore
	checkIns   CheckInStore
	broadcast  Broadcaster
	statsCache *cache.Value[DashboardStats]
	toleranceM float64
	log        zerolog.Logger
}

func NewCheckInService(
	points PointStore,
	routes RouteStore,
	collectors CollectorStore,
	checkIns CheckInStore,
	broadcast Broadcaster,
	statsCache *cache.Value[DashboardStats],
	toleranceM float64,
	log zerolog.Logger,
) *CheckInService {
	return &CheckInService{
		points:     points,
		routes:     routes,
		collectors: collectors,
		checkIns:   checkIns,
		broadcast:  broadcast,
		statsCache: statsCache,
		toleranceM: toleranceM,
		log:        log,
	}
}

type CheckInInput struct {
	RouteID   uuid.UUID
	PointID   uuid.UUID
	Location  geo.Coordinates
	Quantity  float64
	Notes     *string
	Principal model.Principal
}

type CheckInResult struct {
	CheckIn model.CheckIn         `json:"check_in"`
	Point   model.CollectionPoint `json:"point"`
}

func (s *CheckInService) Process(ctx context.Context, input CheckInInput) (*CheckInResult, error) {
	if !input.Principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	if !input.Location.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	route, err := s.routes.Get(ctx, input.RouteID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if route.CollectorID != input.Principal.UserID {
		return nil, ErrPermissionDenied
	}
	if route.Status != model.RouteStatusInProgress {
		return nil, fmt.Errorf("%w: route %s is %s, not in progress", state.ErrInvalidTransition, route.ID, route.Status)
	}

	point, err := s.points.Get(ctx, input.PointID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if point.RouteID == nil || *point.RouteID != route.ID {
		return nil, fmt.Errorf("%w: point %s is not on route %s", ErrInvalidInput, point.ID, route.ID)
	}

	now := time.Now().UTC()
	collectorID := input.Principal.UserID

	// The conditional write is the serialization point: only one of two
	// interleaved check-ins flips the row.
	claimed, err := s.points.Collect(ctx, point.ID, collectorID, input.Quantity, input.Notes, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.points.Get(ctx, input.PointID)
		if err != nil {
			return nil, mapNotFound(err)
		}
		if current.Status == model.PointStatusCollected {
			return nil, ErrAlreadyCollected
		}
		return nil, fmt.Errorf("%w: cannot collect point %s in status %s", state.ErrInvalidTransition, current.ID, current.Status)
	}

	distanceM := geo.HaversineM(input.Location, point.Coordinates())
	checkIn := model.CheckIn{
		ID:            uuid.New(),
		RouteID:       route.ID,
		PointID:       point.ID,
		CollectorID:   collectorID,
		ReportedLng:   input.Location.Lng,
		ReportedLat:   input.Location.Lat,
		DistanceM:     distanceM,
		LocationValid: distanceM <= s.toleranceM,
		Quantity:      input.Quantity,
		Notes:         input.Notes,
		CreatedAt:     now,
	}

	// From here the operation must run to completion or surface a failure;
	// on a partial failure the next read re-derives truth from the store.
	if err := s.checkIns.Create(ctx, checkIn); err != nil {
		return nil, fmt.Errorf("check-in record: %w", err)
	}
	if err := s.points.AppendHistory(ctx, model.PointHistoryEntry{
		ID:        uuid.New(),
		PointID:   point.ID,
		Status:    model.PointStatusCollected,
		ActorID:   collectorID,
		ActorRole: model.RoleCollector,
		Note:      input.Notes,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("check-in history: %w", err)
	}
	if err := s.routes.UpdateStopStatus(ctx, route.ID, point.ID, model.StopStatusCompleted, &now); err != nil {
		return nil, fmt.Errorf("check-in stop update: %w", err)
	}
	if err := s.routes.RecordCollection(ctx, route.ID, now); err != nil {
		return nil, fmt.Errorf("check-in route totals: %w", err)
	}
	if err := s.collectors.IncrementCollections(ctx, collectorID); err != nil {
		return nil, fmt.Errorf("check-in collector totals: %w", err)
	}

	collected := *point
	collected.Status = model.PointStatusCollected
	collected.CollectedBy = &collectorID
	collected.CollectedAt = &now
	collected.CollectedQty = &input.Quantity
	collected.CollectionNotes = input.Notes

	s.statsCache.Invalidate()
	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, collected)
	s.publish(model.RoomCitizen(point.CitizenID), ws.EventPointCollected, collected)

	return &CheckInResult{CheckIn: checkIn, Point: collected}, nil
}

func (s *CheckInService) ListByRoute(ctx context.Context, principal model.Principal, routeID uuid.UUID) ([]model.CheckIn, error) {
	route, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if principal.IsCitizen() {
		return nil, ErrPermissionDenied
	}
	if principal.IsCollector() && route.CollectorID != principal.UserID {
		return nil, ErrPermissionDenied
	}
	return s.checkIns.ListByRoute(ctx, routeID)
}

func (s *CheckInService) publish(room, event string, payload any) {
	if err := s.broadcast.Publish(room, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}
