package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/greenops-routes/internal/cache"
	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/planner"
	"github.com/nurpe/greenops-routes/internal/state"
	"github.com/nurpe/greenops-routes/internal/ws"
)

type RouteService struct {
	points      PointStore
	routes      RouteStore
	collectors  CollectorStore
	broadcast   Broadcaster
	statsCache  *cache.Value[DashboardStats]
	avgSpeedKmh float64
	log         zerolog.Logger
}

func NewRouteService(
	points PointStore,
	routes RouteStore,
	collectors CollectorStore,
	broadcast Broadcaster,
	statsCache *cache.Value[DashboardStats],
	avgSpeedKmh float64,
	log zerolog.Logger,
) *RouteService {
	return &RouteService{
		points:      points,
		routes:      routes,
		collectors:  collectors,
		broadcast:   broadcast,
		statsCache:  statsCache,
		avgSpeedKmh: avgSpeedKmh,
		log:         log,
	}
}

type CreateRouteInput struct {
	CollectorID   uuid.UUID
	ScheduledDate time.Time
	WindowStart   string
	WindowEnd     string
	PointIDs      []uuid.UUID
	Start         *geo.Coordinates
	Principal     model.Principal
}

// Create assembles a route from pending points, orders the visiting
// sequence and schedules everything. Planning is fail-soft: if the
// optimizer misbehaves the input order ships as-is, because assignment
// must never be blocked by a planning failure.
func (s *RouteService) Create(ctx context.Context, input CreateRouteInput) (*model.Route, error) {
	if !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if len(input.PointIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one point is required", ErrInvalidInput)
	}
	if input.CollectorID == uuid.Nil {
		return nil, fmt.Errorf("%w: collector_id is required", ErrInvalidInput)
	}
	if input.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_date is required", ErrInvalidInput)
	}

	points, err := s.points.ListByIDs(ctx, input.PointIDs)
	if err != nil {
		return nil, err
	}
	if len(points) != len(input.PointIDs) {
		return nil, fmt.Errorf("%w: %d of %d points", ErrNotFound, len(points), len(input.PointIDs))
	}
	for _, p := range points {
		if p.Status != model.PointStatusPending {
			return nil, fmt.Errorf("%w: cannot schedule point %s in status %s", state.ErrInvalidTransition, p.ID, p.Status)
		}
	}

	if err := s.collectors.Ensure(ctx, input.CollectorID); err != nil {
		return nil, err
	}

	start := input.Start
	if start == nil {
		if collector, err := s.collectors.Get(ctx, input.CollectorID); err == nil &&
			collector.LastLng != nil && collector.LastLat != nil {
			start = &geo.Coordinates{Lng: *collector.LastLng, Lat: *collector.LastLat}
		}
	}

	ordered := s.orderPoints(points, start)
	now := time.Now().UTC()
	route := s.buildRoute(input, ordered, now)

	route, err = state.ScheduleRoute(route, now)
	if err != nil {
		return nil, err
	}
	if err := s.routes.Create(ctx, route); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]model.CollectionPoint, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}
	for i, stop := range route.Stops {
		scheduled, err := state.SchedulePoint(byID[stop.PointID], route.ID, i, input.Principal, now)
		if err != nil {
			return nil, err
		}
		claimed, err := s.points.UpdateStatusConditional(ctx, scheduled, model.PointStatusPending)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost a race for this point; keep the route consistent by
			// skipping its stop rather than failing the whole assignment.
			s.log.Warn().Str("point", stop.PointID.String()).Msg("point claimed elsewhere during route creation, skipping stop")
			if err := s.routes.UpdateStopStatus(ctx, route.ID, stop.PointID, model.StopStatusSkipped, nil); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.points.AppendHistory(ctx, scheduled.History[len(scheduled.History)-1]); err != nil {
			return nil, err
		}
	}

	if err := s.collectors.SetActiveRoute(ctx, input.CollectorID, &route.ID); err != nil {
		return nil, err
	}

	s.statsCache.Invalidate()
	s.publish(model.RoomCollector(input.CollectorID), ws.EventRouteAssigned, route)
	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, route)
	return &route, nil
}

// orderPoints runs the nearest-neighbor heuristic with a fallback to the
// input order if the result is unusable.
func (s *RouteService) orderPoints(points []model.CollectionPoint, start *geo.Coordinates) []model.CollectionPoint {
	planPoints := make([]planner.Point, len(points))
	for i, p := range points {
		planPoints[i] = planner.Point{ID: p.ID, Coord: p.Coordinates()}
	}

	ordered := planner.Order(planPoints, start)
	if len(ordered) != len(points) {
		s.log.Error().Int("in", len(points)).Int("out", len(ordered)).Msg("planning degraded, using input order")
		return points
	}

	byID := make(map[uuid.UUID]model.CollectionPoint, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}
	result := make([]model.CollectionPoint, len(ordered))
	for i, p := range ordered {
		result[i] = byID[p.ID]
	}
	return result
}

func (s *RouteService) buildRoute(input CreateRouteInput, ordered []model.CollectionPoint, now time.Time) model.Route {
	planPoints := make([]planner.Point, len(ordered))
	for i, p := range ordered {
		planPoints[i] = planner.Point{ID: p.ID, Coord: p.Coordinates()}
	}
	totalKm := planner.TotalDistanceKm(planPoints)
	estimate := planner.Estimate(planPoints, s.avgSpeedKmh)

	route := model.Route{
		ID:               uuid.New(),
		CollectorID:      input.CollectorID,
		ScheduledDate:    input.ScheduledDate,
		WindowStart:      input.WindowStart,
		WindowEnd:        input.WindowEnd,
		Status:           model.RouteStatusDraft,
		TotalDistanceKm:  totalKm,
		EstimatedMinutes: estimate.TotalMinutes,
		CreatedBy:        input.Principal.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	arrivals := s.estimateArrivals(input, planPoints)
	for i, p := range ordered {
		stop := model.RouteStop{
			RouteID:  route.ID,
			PointID:  p.ID,
			Position: i,
			Status:   model.StopStatusPending,
		}
		if arrivals != nil {
			stop.EstimatedArrival = &arrivals[i]
		}
		route.Stops = append(route.Stops, stop)
	}
	return route
}

// estimateArrivals anchors per-stop ETAs at the window start, when one is
// given in HH:MM form. Travel legs run at the configured average speed and
// every stop adds the fixed dwell.
func (s *RouteService) estimateArrivals(input CreateRouteInput, ordered []planner.Point) []time.Time {
	window, err := time.Parse("15:04", input.WindowStart)
	if err != nil {
		return nil
	}
	base := time.Date(
		input.ScheduledDate.Year(), input.ScheduledDate.Month(), input.ScheduledDate.Day(),
		window.Hour(), window.Minute(), 0, 0, time.UTC,
	)

	speed := s.avgSpeedKmh
	if speed <= 0 {
		speed = planner.DefaultAvgSpeedKmh
	}

	arrivals := make([]time.Time, len(ordered))
	at := base
	for i := range ordered {
		if i > 0 {
			legKm := geo.HaversineKm(ordered[i-1].Coord, ordered[i].Coord)
			at = at.Add(time.Duration(legKm / speed * 60 * float64(time.Minute)))
			at = at.Add(time.Duration(planner.StopMinutes * float64(time.Minute)))
		}
		arrivals[i] = at
	}
	return arrivals
}

type PlanStrategy string

const (
	StrategyCluster PlanStrategy = "cluster"
	StrategyBalance PlanStrategy = "balance"
)

type BulkPlanInput struct {
	Strategy          PlanStrategy
	CollectorIDs      []uuid.UUID
	MaxPointsPerRoute int
	ScheduledDate     time.Time
	WindowStart       string
	WindowEnd         string
	Principal         model.Principal
}

// BulkPlan splits every pending point across several collectors. The two
// splitting strategies solve different constraints and the caller must
// pick one explicitly; there is no default.
func (s *RouteService) BulkPlan(ctx context.Context, input BulkPlanInput) ([]model.Route, error) {
	if !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if len(input.CollectorIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one collector is required", ErrInvalidInput)
	}

	pending, err := s.points.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return []model.Route{}, nil
	}

	planPoints := make([]planner.Point, len(pending))
	for i, p := range pending {
		planPoints[i] = planner.Point{ID: p.ID, Coord: p.Coordinates()}
	}

	var groups [][]planner.Point
	switch input.Strategy {
	case StrategyCluster:
		if input.MaxPointsPerRoute <= 0 {
			return nil, fmt.Errorf("%w: max_points_per_route is required for the cluster strategy", ErrInvalidInput)
		}
		groups = planner.Cluster(planPoints, input.MaxPointsPerRoute)
	case StrategyBalance:
		groups = planner.Balance(planPoints, len(input.CollectorIDs))
	default:
		return nil, fmt.Errorf("%w: strategy must be %q or %q", ErrInvalidInput, StrategyCluster, StrategyBalance)
	}

	routes := make([]model.Route, 0, len(groups))
	for i, group := range groups {
		ids := make([]uuid.UUID, len(group))
		for j, p := range group {
			ids[j] = p.ID
		}
		route, err := s.Create(ctx, CreateRouteInput{
			CollectorID:   input.CollectorIDs[i%len(input.CollectorIDs)],
			ScheduledDate: input.ScheduledDate,
			WindowStart:   input.WindowStart,
			WindowEnd:     input.WindowEnd,
			PointIDs:      ids,
			Principal:     input.Principal,
		})
		if err != nil {
			return nil, fmt.Errorf("bulk plan group %d: %w", i, err)
		}
		routes = append(routes, *route)
	}
	return routes, nil
}

func (s *RouteService) Start(ctx context.Context, principal model.Principal, routeID uuid.UUID, start geo.Coordinates) (*model.Route, error) {
	route, err := s.ownedRoute(ctx, principal, routeID)
	if err != nil {
		return nil, err
	}
	if !start.Valid() {
		return nil, fmt.Errorf("%w: start location out of range", ErrInvalidInput)
	}

	now := time.Now().UTC()
	started, err := state.StartRoute(*route, start, now)
	if err != nil {
		return nil, err
	}
	ok, err := s.routes.UpdateStatusConditional(ctx, started, model.RouteStatusScheduled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: route %s changed concurrently, retry", state.ErrInvalidTransition, routeID)
	}

	points, err := s.points.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		inProgress, err := state.StartPoint(p, routeID, principal, now)
		if err != nil {
			// Cancelled or already-collected stops simply do not restart.
			continue
		}
		if _, err := s.points.UpdateStatusConditional(ctx, inProgress, model.PointStatusScheduled); err != nil {
			return nil, err
		}
		if err := s.points.AppendHistory(ctx, inProgress.History[len(inProgress.History)-1]); err != nil {
			return nil, err
		}
	}

	if err := s.collectors.SetActiveRoute(ctx, route.CollectorID, &routeID); err != nil {
		return nil, err
	}
	if err := s.collectors.UpdateLocation(ctx, route.CollectorID, start.Lng, start.Lat, now); err != nil {
		return nil, err
	}

	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, started)
	return &started, nil
}

func (s *RouteService) Complete(ctx context.Context, principal model.Principal, routeID uuid.UUID, end geo.Coordinates) (*model.Route, error) {
	route, err := s.ownedRoute(ctx, principal, routeID)
	if err != nil {
		return nil, err
	}

	points, err := s.points.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	completed, err := state.CompleteRoute(*route, points, end, now)
	if err != nil {
		return nil, err
	}
	ok, err := s.routes.UpdateStatusConditional(ctx, completed, model.RouteStatusInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: route %s changed concurrently, retry", state.ErrInvalidTransition, routeID)
	}

	if err := s.collectors.SetActiveRoute(ctx, route.CollectorID, nil); err != nil {
		return nil, err
	}

	s.statsCache.Invalidate()
	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, completed)
	return &completed, nil
}

// Cancel releases a draft or scheduled route: every attached point goes
// back to pending and the collector's active-route reference is cleared.
func (s *RouteService) Cancel(ctx context.Context, principal model.Principal, routeID uuid.UUID) (*model.Route, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	route, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	now := time.Now().UTC()
	previous := route.Status
	cancelled, err := state.CancelRoute(*route, now)
	if err != nil {
		return nil, err
	}
	ok, err := s.routes.UpdateStatusConditional(ctx, cancelled, previous)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: route %s changed concurrently, retry", state.ErrInvalidTransition, routeID)
	}

	points, err := s.points.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		released, err := state.ReleasePoint(p, principal, now)
		if err != nil {
			continue
		}
		if _, err := s.points.UpdateStatusConditional(ctx, released, p.Status); err != nil {
			return nil, err
		}
		if err := s.points.AppendHistory(ctx, released.History[len(released.History)-1]); err != nil {
			return nil, err
		}
	}

	if err := s.collectors.SetActiveRoute(ctx, route.CollectorID, nil); err != nil {
		return nil, err
	}

	s.statsCache.Invalidate()
	s.publish(model.RoomAdmins, ws.EventCollectionUpdated, cancelled)
	s.publish(model.RoomCollector(route.CollectorID), ws.EventCollectionUpdated, cancelled)
	return &cancelled, nil
}

// AddPoint inserts a pending point into a scheduled route at the position
// with the smallest distance increase.
func (s *RouteService) AddPoint(ctx context.Context, principal model.Principal, routeID, pointID uuid.UUID) (*model.Route, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	route, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if route.Status != model.RouteStatusScheduled {
		return nil, fmt.Errorf("%w: cannot modify route %s in status %s", state.ErrInvalidTransition, routeID, route.Status)
	}

	point, err := s.points.Get(ctx, pointID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	current, err := s.points.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	planPoints := make([]planner.Point, len(current))
	for i, p := range current {
		planPoints[i] = planner.Point{ID: p.ID, Coord: p.Coordinates()}
	}

	updated, position := planner.InsertAt(planPoints, planner.Point{ID: point.ID, Coord: point.Coordinates()})
	now := time.Now().UTC()

	scheduled, err := state.SchedulePoint(*point, routeID, position, principal, now)
	if err != nil {
		return nil, err
	}
	claimed, err := s.points.UpdateStatusConditional(ctx, scheduled, model.PointStatusPending)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: point %s changed concurrently, retry", state.ErrInvalidTransition, pointID)
	}
	if err := s.points.AppendHistory(ctx, scheduled.History[len(scheduled.History)-1]); err != nil {
		return nil, err
	}

	if err := s.persistOrder(ctx, routeID, updated, now); err != nil {
		return nil, err
	}

	s.publish(model.RoomCollector(route.CollectorID), ws.EventRouteAssigned, routeID)
	return s.routes.Get(ctx, routeID)
}

// RemovePoint takes a point off a scheduled route and returns it to the
// pending pool.
func (s *RouteService) RemovePoint(ctx context.Context, principal model.Principal, routeID, pointID uuid.UUID) (*model.Route, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	route, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if route.Status != model.RouteStatusScheduled {
		return nil, fmt.Errorf("%w: cannot modify route %s in status %s", state.ErrInvalidTransition, routeID, route.Status)
	}

	point, err := s.points.Get(ctx, pointID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if point.RouteID == nil || *point.RouteID != routeID {
		return nil, fmt.Errorf("%w: point %s is not on route %s", ErrInvalidInput, pointID, routeID)
	}

	now := time.Now().UTC()
	released, err := state.ReleasePoint(*point, principal, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.points.UpdateStatusConditional(ctx, released, point.Status); err != nil {
		return nil, err
	}
	if err := s.points.AppendHistory(ctx, released.History[len(released.History)-1]); err != nil {
		return nil, err
	}

	current, err := s.points.ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	planPoints := make([]planner.Point, 0, len(current))
	for _, p := range current {
		if p.ID != pointID {
			planPoints = append(planPoints, planner.Point{ID: p.ID, Coord: p.Coordinates()})
		}
	}

	if err := s.persistOrder(ctx, routeID, planPoints, now); err != nil {
		return nil, err
	}

	s.publish(model.RoomCollector(route.CollectorID), ws.EventRouteAssigned, routeID)
	return s.routes.Get(ctx, routeID)
}

func (s *RouteService) persistOrder(ctx context.Context, routeID uuid.UUID, ordered []planner.Point, now time.Time) error {
	stops := make([]model.RouteStop, len(ordered))
	for i, p := range ordered {
		stops[i] = model.RouteStop{
			RouteID:  routeID,
			PointID:  p.ID,
			Position: i,
			Status:   model.StopStatusPending,
		}
	}
	totalKm := planner.TotalDistanceKm(ordered)
	estimate := planner.Estimate(ordered, s.avgSpeedKmh)
	return s.routes.ReplaceStops(ctx, routeID, stops, totalKm, estimate.TotalMinutes, now)
}

func (s *RouteService) Get(ctx context.Context, principal model.Principal, routeID uuid.UUID) (*model.Route, error) {
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
	return route, nil
}

func (s *RouteService) ListOwn(ctx context.Context, principal model.Principal) ([]model.Route, error) {
	if !principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	return s.routes.ListByCollector(ctx, principal.UserID)
}

func (s *RouteService) ListByDate(ctx context.Context, principal model.Principal, date time.Time) ([]model.Route, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.routes.ListByDate(ctx, date)
}

func (s *RouteService) StartBreak(ctx context.Context, principal model.Principal, routeID uuid.UUID) error {
	route, err := s.ownedRoute(ctx, principal, routeID)
	if err != nil {
		return err
	}
	if route.Status != model.RouteStatusInProgress {
		return fmt.Errorf("%w: route %s is not in progress", state.ErrInvalidTransition, routeID)
	}
	return s.routes.StartBreak(ctx, model.BreakInterval{
		ID:        uuid.New(),
		RouteID:   routeID,
		StartedAt: time.Now().UTC(),
	})
}

func (s *RouteService) EndBreak(ctx context.Context, principal model.Principal, routeID uuid.UUID) error {
	if _, err := s.ownedRoute(ctx, principal, routeID); err != nil {
		return err
	}
	closed, err := s.routes.EndBreak(ctx, routeID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !closed {
		return fmt.Errorf("%w: no open break on route %s", ErrInvalidInput, routeID)
	}
	return nil
}

type IncidentInput struct {
	RouteID     uuid.UUID
	Severity    model.IncidentSeverity
	Description string
	Location    *geo.Coordinates
	Principal   model.Principal
}

// ReportIncident logs an execution problem. Critical incidents go straight
// to the admin room as emergency alerts, never batched or throttled.
func (s *RouteService) ReportIncident(ctx context.Context, input IncidentInput) (*model.Incident, error) {
	route, err := s.ownedRoute(ctx, input.Principal, input.RouteID)
	if err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	switch input.Severity {
	case model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, input.Severity)
	}

	incident := model.Incident{
		ID:          uuid.New(),
		RouteID:     route.ID,
		CollectorID: input.Principal.UserID,
		Severity:    input.Severity,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if input.Location != nil {
		incident.Lng, incident.Lat = &input.Location.Lng, &input.Location.Lat
	}

	if err := s.routes.AddIncident(ctx, incident); err != nil {
		return nil, err
	}

	if incident.Severity == model.SeverityCritical {
		s.publish(model.RoomAdmins, ws.EventEmergencyAlert, incident)
	}
	return &incident, nil
}

// CollectorLocationUpdate is the payload broadcast to admin dashboards.
type CollectorLocationUpdate struct {
	CollectorID uuid.UUID  `json:"collector_id"`
	RouteID     *uuid.UUID `json:"route_id,omitempty"`
	Lng         float64    `json:"lng"`
	Lat         float64    `json:"lat"`
	At          time.Time  `json:"at"`
}

// RecordCollectorLocation stores a location ping and accumulates traveled
// distance on the active route. It does not broadcast; callers decide how
// the update fans out.
func (s *RouteService) RecordCollectorLocation(ctx context.Context, principal model.Principal, loc geo.Coordinates) (*CollectorLocationUpdate, error) {
	if !principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	if !loc.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}

	collector, err := s.collectors.Get(ctx, principal.UserID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	now := time.Now().UTC()
	if err := s.collectors.UpdateLocation(ctx, principal.UserID, loc.Lng, loc.Lat, now); err != nil {
		return nil, err
	}

	if collector.ActiveRouteID != nil {
		if err := s.routes.UpdateCurrentLocation(ctx, *collector.ActiveRouteID, loc.Lng, loc.Lat, now); err != nil {
			return nil, err
		}
		if collector.LastLng != nil && collector.LastLat != nil {
			legKm := geo.HaversineKm(geo.Coordinates{Lng: *collector.LastLng, Lat: *collector.LastLat}, loc)
			if err := s.routes.AddDistance(ctx, *collector.ActiveRouteID, legKm); err != nil {
				return nil, err
			}
			if err := s.collectors.AddDistance(ctx, principal.UserID, legKm); err != nil {
				return nil, err
			}
		}
	}

	return &CollectorLocationUpdate{
		CollectorID: principal.UserID,
		RouteID:     collector.ActiveRouteID,
		Lng:         loc.Lng,
		Lat:         loc.Lat,
		At:          now,
	}, nil
}

// UpdateLocation is the REST entry point for location pings; it records
// the ping and broadcasts it to admins.
func (s *RouteService) UpdateLocation(ctx context.Context, principal model.Principal, loc geo.Coordinates) (*CollectorLocationUpdate, error) {
	update, err := s.RecordCollectorLocation(ctx, principal, loc)
	if err != nil {
		return nil, err
	}
	s.publish(model.RoomAdmins, ws.EventCollectorLocation, update)
	return update, nil
}

// HandleInbound dispatches typed messages arriving over a live socket.
// Handlers return the events to publish instead of touching connections.
func (s *RouteService) HandleInbound(ctx context.Context, principal model.Principal, msg ws.InboundMessage) ([]ws.Outbound, error) {
	switch msg.Type {
	case ws.EventCollectorLocation:
		var payload geo.Coordinates
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: malformed location payload", ErrInvalidInput)
		}
		update, err := s.RecordCollectorLocation(ctx, principal, payload)
		if err != nil {
			return nil, err
		}
		return []ws.Outbound{{
			Room:  model.RoomAdmins,
			Event: ws.Event{Name: ws.EventCollectorLocation, Payload: update},
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, msg.Type)
	}
}

func (s *RouteService) ownedRoute(ctx context.Context, principal model.Principal, routeID uuid.UUID) (*model.Route, error) {
	if !principal.IsCollector() {
		return nil, ErrPermissionDenied
	}
	route, err := s.routes.Get(ctx, routeID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if route.CollectorID != principal.UserID {
		return nil, ErrPermissionDenied
	}
	return route, nil
}

func (s *RouteService) publish(room, event string, payload any) {
	if err := s.broadcast.Publish(room, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}
