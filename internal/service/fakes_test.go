package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
	"github.com/nurpe/greenops-routes/internal/repository"
	"github.com/nurpe/greenops-routes/internal/ws"
)

func wsInbound(msgType, payload string) ws.InboundMessage {
	return ws.InboundMessage{Type: msgType, Payload: json.RawMessage(payload)}
}

// In-memory store fakes. They mirror the repositories' conditional-write
// semantics under a mutex so concurrency tests exercise the same
// serialization the SQL layer provides.

type fakePointStore struct {
	mu      sync.Mutex
	points  map[uuid.UUID]model.CollectionPoint
	history []model.PointHistoryEntry
}

func newFakePointStore() *fakePointStore {
	return &fakePointStore{points: map[uuid.UUID]model.CollectionPoint{}}
}

func (f *fakePointStore) Create(_ context.Context, p model.CollectionPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[p.ID] = p
	return nil
}

func (f *fakePointStore) Get(_ context.Context, id uuid.UUID) (*model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (f *fakePointStore) ListPending(_ context.Context) ([]model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CollectionPoint
	for _, p := range f.points {
		if p.Status == model.PointStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointStore) ListNearby(_ context.Context, center geo.Coordinates, radiusM float64) ([]model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CollectionPoint
	for _, p := range f.points {
		if geo.HaversineM(center, p.Coordinates()) <= radiusM {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CollectionPoint
	for _, id := range ids {
		if p, ok := f.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointStore) ListByRoute(_ context.Context, routeID uuid.UUID) ([]model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CollectionPoint
	for _, p := range f.points {
		if p.RouteID != nil && *p.RouteID == routeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointStore) ListByCitizen(_ context.Context, citizenID uuid.UUID) ([]model.CollectionPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CollectionPoint
	for _, p := range f.points {
		if p.CitizenID == citizenID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointStore) UpdateStatusConditional(_ context.Context, p model.CollectionPoint, expected model.PointStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.points[p.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	f.points[p.ID] = p
	return true, nil
}

func (f *fakePointStore) Collect(_ context.Context, pointID, collectorID uuid.UUID, quantity float64, notes *string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[pointID]
	if !ok {
		return false, nil
	}
	if p.Status != model.PointStatusScheduled && p.Status != model.PointStatusInProgress {
		return false, nil
	}
	p.Status = model.PointStatusCollected
	p.CollectedBy = &collectorID
	p.CollectedAt = &now
	p.CollectedQty = &quantity
	p.CollectionNotes = notes
	p.UpdatedAt = now
	f.points[pointID] = p
	return true, nil
}

func (f *fakePointStore) AppendHistory(_ context.Context, entry model.PointHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, entry)
	return nil
}

func (f *fakePointStore) CountByStatus(_ context.Context) ([]repository.StatusCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[model.PointStatus]int64{}
	for _, p := range f.points {
		counts[p.Status]++
	}
	var out []repository.StatusCount
	for status, n := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (f *fakePointStore) CountByNeighborhood(_ context.Context) ([]repository.NeighborhoodCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int64{}
	for _, p := range f.points {
		counts[p.Neighborhood]++
	}
	var out []repository.NeighborhoodCount
	for n, c := range counts {
		out = append(out, repository.NeighborhoodCount{Neighborhood: n, Count: c})
	}
	return out, nil
}

type fakeRouteStore struct {
	mu     sync.Mutex
	routes map[uuid.UUID]model.Route
}

func newFakeRouteStore() *fakeRouteStore {
	return &fakeRouteStore{routes: map[uuid.UUID]model.Route{}}
}

func (f *fakeRouteStore) Create(_ context.Context, route model.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route.ID] = route
	return nil
}

func (f *fakeRouteStore) Get(_ context.Context, id uuid.UUID) (*model.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (f *fakeRouteStore) ListByCollector(_ context.Context, collectorID uuid.UUID) ([]model.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Route
	for _, r := range f.routes {
		if r.CollectorID == collectorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRouteStore) ListByDate(_ context.Context, date time.Time) ([]model.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Route
	for _, r := range f.routes {
		if r.ScheduledDate.Format("2006-01-02") == date.Format("2006-01-02") {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRouteStore) UpdateStatusConditional(_ context.Context, route model.Route, expected model.RouteStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.routes[route.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	route.Stops = current.Stops
	f.routes[route.ID] = route
	return true, nil
}

func (f *fakeRouteStore) UpdateStopStatus(_ context.Context, routeID, pointID uuid.UUID, status model.StopStatus, actualArrival *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range r.Stops {
		if r.Stops[i].PointID == pointID {
			r.Stops[i].Status = status
			r.Stops[i].ActualArrival = actualArrival
		}
	}
	f.routes[routeID] = r
	return nil
}

func (f *fakeRouteStore) RecordCollection(_ context.Context, routeID uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.CollectionsCount++
	if r.StartedAt != nil {
		avg := now.Sub(*r.StartedAt).Minutes() / float64(r.CollectionsCount)
		r.AvgMinutesPerStop = &avg
	}
	f.routes[routeID] = r
	return nil
}

func (f *fakeRouteStore) UpdateCurrentLocation(_ context.Context, routeID uuid.UUID, lng, lat float64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if r.Status == model.RouteStatusInProgress {
		r.CurrentLng, r.CurrentLat = &lng, &lat
		r.UpdatedAt = now
		f.routes[routeID] = r
	}
	return nil
}

func (f *fakeRouteStore) AddDistance(_ context.Context, routeID uuid.UUID, km float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.TotalDistanceKm += km
	f.routes[routeID] = r
	return nil
}

func (f *fakeRouteStore) ReplaceStops(_ context.Context, routeID uuid.UUID, stops []model.RouteStop, totalKm, estimatedMin float64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Stops = stops
	r.TotalDistanceKm = totalKm
	r.EstimatedMinutes = estimatedMin
	r.UpdatedAt = now
	f.routes[routeID] = r
	return nil
}

func (f *fakeRouteStore) StartBreak(_ context.Context, brk model.BreakInterval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[brk.RouteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Breaks = append(r.Breaks, brk)
	f.routes[brk.RouteID] = r
	return nil
}

func (f *fakeRouteStore) EndBreak(_ context.Context, routeID uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[routeID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	for i := len(r.Breaks) - 1; i >= 0; i-- {
		if r.Breaks[i].EndedAt == nil {
			r.Breaks[i].EndedAt = &now
			f.routes[routeID] = r
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRouteStore) AddIncident(_ context.Context, incident model.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.routes[incident.RouteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Incidents = append(r.Incidents, incident)
	f.routes[incident.RouteID] = r
	return nil
}

type fakeCollectorStore struct {
	mu         sync.Mutex
	collectors map[uuid.UUID]model.Collector
}

func newFakeCollectorStore() *fakeCollectorStore {
	return &fakeCollectorStore{collectors: map[uuid.UUID]model.Collector{}}
}

func (f *fakeCollectorStore) Get(_ context.Context, id uuid.UUID) (*model.Collector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collectors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (f *fakeCollectorStore) Ensure(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collectors[id]; !ok {
		f.collectors[id] = model.Collector{ID: id}
	}
	return nil
}

func (f *fakeCollectorStore) SetActiveRoute(_ context.Context, id uuid.UUID, routeID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collectors[id]
	c.ID = id
	c.ActiveRouteID = routeID
	f.collectors[id] = c
	return nil
}

func (f *fakeCollectorStore) IncrementCollections(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collectors[id]
	c.ID = id
	c.TotalCollections++
	f.collectors[id] = c
	return nil
}

func (f *fakeCollectorStore) AddDistance(_ context.Context, id uuid.UUID, km float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collectors[id]
	c.ID = id
	c.TotalDistanceKm += km
	f.collectors[id] = c
	return nil
}

func (f *fakeCollectorStore) UpdateLocation(_ context.Context, id uuid.UUID, lng, lat float64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collectors[id]
	c.ID = id
	c.LastLng, c.LastLat = &lng, &lat
	c.LastSeenAt = &now
	f.collectors[id] = c
	return nil
}

type fakeCheckInStore struct {
	mu       sync.Mutex
	checkIns []model.CheckIn
}

func (f *fakeCheckInStore) Create(_ context.Context, c model.CheckIn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns = append(f.checkIns, c)
	return nil
}

func (f *fakeCheckInStore) ListByRoute(_ context.Context, routeID uuid.UUID) ([]model.CheckIn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CheckIn
	for _, c := range f.checkIns {
		if c.RouteID == routeID {
			out = append(out, c)
		}
	}
	return out, nil
}

type publishedEvent struct {
	Room  string
	Event string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeBroadcaster) Publish(room, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Room: room, Event: event})
	return nil
}

func (f *fakeBroadcaster) sent(room, event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Room == room && e.Event == event {
			return true
		}
	}
	return false
}
