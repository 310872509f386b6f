package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/cache"
	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/repository"
	"github.com/nurpe/greenops-routes/internal/state"
	"github.com/nurpe/greenops-routes/internal/ws"
)

type PointService struct {
	points     PointStore
	routes     RouteStore
	broadcast  Broadcaster
	statsCache *cache.Value[DashboardStats]
	log        zerolog.Logger
}

func NewPointService(points PointStore, routes RouteStore, broadcast Broadcaster, statsCache *cache.Value[DashboardStats], log zerolog.Logger) *PointService {
	return &PointService{
		points:     points,
		routes:     routes,
		broadcast:  broadcast,
		statsCache: statsCache,
		log:        log,
	}
}

type CreatePointInput struct {
	Street       string
	Number       string
	Neighborhood string
	Reference    *string
	Location     geo.Coordinates
	Unit         model.QuantityUnit
	Quantity     float64
	Principal    model.Principal
}

func (s *PointService) Create(ctx context.Context, input CreatePointInput) (*model.CollectionPoint, error) {
	if !input.Principal.IsCitizen() && !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if input.Street == "" || input.Neighborhood == "" {
		return nil, fmt.Errorf("%w: street and neighborhood are required", ErrInvalidInput)
	}
	if !input.Location.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	switch input.Unit {
	case model.UnitKilograms, model.UnitBags, model.UnitCubicMeters:
	default:
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, input.Unit)
	}

	now := time.Now().UTC()
	point := model.CollectionPoint{
		ID:           uuid.New(),
		CitizenID:    input.Principal.UserID,
		Street:       input.Street,
		Number:       input.Number,
		Neighborhood: input.Neighborhood,
		Reference:    input.Reference,
		Lng:          input.Location.Lng,
		Lat:          input.Location.Lat,
		Unit:         input.Unit,
		Quantity:     input.Quantity,
		Status:       model.PointStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.points.Create(ctx, point); err != nil {
		return nil, err
	}
	if err := s.points.AppendHistory(ctx, model.PointHistoryEntry{
		ID:        uuid.New(),
		PointID:   point.ID,
		Status:    model.PointStatusPending,
		ActorID:   input.Principal.UserID,
		ActorRole: input.Principal.Role,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	s.statsCache.Invalidate()
	s.publish(model.RoomAdmins, ws.EventPointCreated, point)
	s.publish(model.RoomCollectors, ws.EventPointCreated, point)
	return &point, nil
}

func (s *PointService) Cancel(ctx context.Context, principal model.Principal, pointID uuid.UUID, note *string) (*model.CollectionPoint, error) {
	point, err := s.points.Get(ctx, pointID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if principal.IsCitizen() && point.CitizenID != principal.UserID {
		return nil, ErrPermissionDenied
	}
	if principal.IsCollector() {
		return nil, ErrPermissionDenied
	}

	now := time.Now().UTC()
	previous := point.Status
	previousRoute := point.RouteID

	cancelled, err := state.CancelPoint(*point, principal, note, now)
	if err != nil {
		return nil, err
	}

	ok, err := s.points.UpdateStatusConditional(ctx, cancelled, previous)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another writer moved the point; re-read for the caller.
		return nil, fmt.Errorf("%w: point %s changed concurrently, retry", state.ErrInvalidTransition, pointID)
	}
	if err := s.points.AppendHistory(ctx, cancelled.History[len(cancelled.History)-1]); err != nil {
		return nil, err
	}

	// A cancelled point that was already routed leaves a skipped stop
	// behind so the route's ledger stays complete.
	if previousRoute != nil {
		if err := s.routes.UpdateStopStatus(ctx, *previousRoute, pointID, model.StopStatusSkipped, nil); err != nil {
			s.log.Warn().Err(err).Str("route", previousRoute.String()).Msg("stop skip update failed")
		}
	}

	s.statsCache.Invalidate()
	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, cancelled)
	return &cancelled, nil
}

func (s *PointService) Get(ctx context.Context, principal model.Principal, pointID uuid.UUID) (*model.CollectionPoint, error) {
	point, err := s.points.Get(ctx, pointID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if principal.IsCitizen() && point.CitizenID != principal.UserID {
		return nil, ErrPermissionDenied
	}
	return point, nil
}

func (s *PointService) ListPending(ctx context.Context, principal model.Principal) ([]model.CollectionPoint, error) {
	if !principal.IsAdmin() && !principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	points, err := s.points.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []model.CollectionPoint{}
	}
	return points, nil
}

func (s *PointService) ListNearby(ctx context.Context, principal model.Principal, center geo.Coordinates, radiusM float64) ([]model.CollectionPoint, error) {
	if !principal.IsAdmin() && !principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	if !center.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if radiusM <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidInput)
	}
	return s.points.ListNearby(ctx, center, radiusM)
}

func (s *PointService) ListOwn(ctx context.Context, principal model.Principal) ([]model.CollectionPoint, error) {
	return s.points.ListByCitizen(ctx, principal.UserID)
}

// DashboardStats is the cached aggregate view behind the admin dashboard.
type DashboardStats struct {
	ByStatus       []repository.StatusCount       `json:"by_status"`
	ByNeighborhood []repository.NeighborhoodCount `json:"by_neighborhood"`
	GeneratedAt    time.Time                      `json:"generated_at"`
}

func (s *PointService) Stats(ctx context.Context, principal model.Principal) (*DashboardStats, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	now := time.Now().UTC()
	if cached, ok := s.statsCache.Get(now); ok {
		return &cached, nil
	}

	byStatus, err := s.points.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byNeighborhood, err := s.points.CountByNeighborhood(ctx)
	if err != nil {
		return nil, err
	}

	stats := DashboardStats{
		ByStatus:       byStatus,
		ByNeighborhood: byNeighborhood,
		GeneratedAt:    now,
	}
	s.statsCache.Set(stats, now)
	return &stats, nil
}

func (s *PointService) publish(room, event string, payload any) {
	if err := s.broadcast.Publish(room, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
