package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/model"
)

type RouteRepository struct {
	db *gorm.DB
}

func NewRouteRepository(db *gorm.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `
	id, collector_id, scheduled_date, window_start, window_end, status,
	total_distance_km, estimated_minutes, started_at, completed_at,
	actual_minutes, start_lng, start_lat, current_lng, current_lat,
	end_lng, end_lat, collections_count, avg_minutes_per_stop,
	created_by, created_at, updated_at
`

// Create writes the route and its ordered stops in one transaction.
func (r *RouteRepository) Create(ctx context.Context, route model.Route) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(`
			INSERT INTO routes (
				id, collector_id, scheduled_date, window_start, window_end, status,
				total_distance_km, estimated_minutes, created_by, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			route.ID, route.CollectorID, route.ScheduledDate, route.WindowStart, route.WindowEnd,
			route.Status, route.TotalDistanceKm, route.EstimatedMinutes,
			route.CreatedBy, route.CreatedAt, route.UpdatedAt,
		).Error
		if err != nil {
			return err
		}

		for _, stop := range route.Stops {
			if err := tx.Exec(`
				INSERT INTO route_stops (route_id, point_id, position, status, estimated_arrival)
				VALUES (?, ?, ?, ?, ?)
			`, route.ID, stop.PointID, stop.Position, stop.Status, stop.EstimatedArrival).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RouteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Route, error) {
	var route model.Route
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+routeColumns+`
		FROM routes
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&route).Error
	if err != nil {
		return nil, err
	}
	if route.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	if err := r.db.WithContext(ctx).Raw(`
		SELECT route_id, point_id, position, status, estimated_arrival, actual_arrival
		FROM route_stops
		WHERE route_id = ?
		ORDER BY position ASC
	`, id).Scan(&route.Stops).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, route_id, started_at, ended_at
		FROM route_breaks
		WHERE route_id = ?
		ORDER BY started_at ASC
	`, id).Scan(&route.Breaks).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, route_id, collector_id, severity, description, lng, lat, created_at
		FROM route_incidents
		WHERE route_id = ?
		ORDER BY created_at ASC
	`, id).Scan(&route.Incidents).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *RouteRepository) ListByCollector(ctx context.Context, collectorID uuid.UUID) ([]model.Route, error) {
	var routes []model.Route
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+routeColumns+`
		FROM routes
		WHERE collector_id = ?
		ORDER BY scheduled_date DESC, created_at DESC
	`, collectorID).Scan(&routes).Error
	if err != nil {
		return nil, err
	}
	return routes, nil
}

func (r *RouteRepository) ListByDate(ctx context.Context, date time.Time) ([]model.Route, error) {
	var routes []model.Route
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+routeColumns+`
		FROM routes
		WHERE scheduled_date = ?
		ORDER BY created_at ASC
	`, date).Scan(&routes).Error
	if err != nil {
		return nil, err
	}
	return routes, nil
}

// UpdateStatusConditional persists a route's execution fields only while
// the stored status matches expected, so interleaved writers cannot lose
// updates.
func (r *RouteRepository) UpdateStatusConditional(ctx context.Context, route model.Route, expected model.RouteStatus) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE routes
		SET status = ?, started_at = ?, completed_at = ?, actual_minutes = ?,
			start_lng = ?, start_lat = ?, current_lng = ?, current_lat = ?,
			end_lng = ?, end_lat = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		route.Status, route.StartedAt, route.CompletedAt, route.ActualMinutes,
		route.StartLng, route.StartLat, route.CurrentLng, route.CurrentLat,
		route.EndLng, route.EndLat, route.UpdatedAt,
		route.ID, expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *RouteRepository) UpdateStopStatus(ctx context.Context, routeID, pointID uuid.UUID, status model.StopStatus, actualArrival *time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE route_stops
		SET status = ?, actual_arrival = ?
		WHERE route_id = ? AND point_id = ?
	`, status, actualArrival, routeID, pointID).Error
}

// RecordCollection bumps the route's running totals additively and
// recomputes the average minutes per completed stop from the start time.
func (r *RouteRepository) RecordCollection(ctx context.Context, routeID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE routes
		SET collections_count = collections_count + 1,
			avg_minutes_per_stop = CASE
				WHEN started_at IS NULL THEN avg_minutes_per_stop
				ELSE EXTRACT(EPOCH FROM (? - started_at)) / 60.0 / (collections_count + 1)
			END,
			updated_at = ?
		WHERE id = ?
	`, now, now, routeID).Error
}

func (r *RouteRepository) UpdateCurrentLocation(ctx context.Context, routeID uuid.UUID, lng, lat float64, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE routes
		SET current_lng = ?, current_lat = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, lng, lat, now, routeID, model.RouteStatusInProgress).Error
}

func (r *RouteRepository) AddDistance(ctx context.Context, routeID uuid.UUID, km float64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE routes
		SET total_distance_km = total_distance_km + ?
		WHERE id = ?
	`, km, routeID).Error
}

func (r *RouteRepository) ReplaceStops(ctx context.Context, routeID uuid.UUID, stops []model.RouteStop, totalKm, estimatedMin float64, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM route_stops WHERE route_id = ?`, routeID).Error; err != nil {
			return err
		}
		for _, stop := range stops {
			if err := tx.Exec(`
				INSERT INTO route_stops (route_id, point_id, position, status, estimated_arrival, actual_arrival)
				VALUES (?, ?, ?, ?, ?, ?)
			`, routeID, stop.PointID, stop.Position, stop.Status, stop.EstimatedArrival, stop.ActualArrival).Error; err != nil {
				return err
			}
		}
		return tx.Exec(`
			UPDATE routes
			SET total_distance_km = ?, estimated_minutes = ?, updated_at = ?
			WHERE id = ?
		`, totalKm, estimatedMin, now, routeID).Error
	})
}

func (r *RouteRepository) StartBreak(ctx context.Context, brk model.BreakInterval) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO route_breaks (id, route_id, started_at)
		VALUES (?, ?, ?)
	`, brk.ID, brk.RouteID, brk.StartedAt).Error
}

// EndBreak closes the most recent open break on the route.
func (r *RouteRepository) EndBreak(ctx context.Context, routeID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE route_breaks
		SET ended_at = ?
		WHERE id = (
			SELECT id FROM route_breaks
			WHERE route_id = ? AND ended_at IS NULL
			ORDER BY started_at DESC
			LIMIT 1
		)
	`, now, routeID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *RouteRepository) AddIncident(ctx context.Context, incident model.Incident) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO route_incidents (id, route_id, collector_id, severity, description, lng, lat, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		incident.ID, incident.RouteID, incident.CollectorID, incident.Severity,
		incident.Description, incident.Lng, incident.Lat, incident.CreatedAt,
	).Error
}
