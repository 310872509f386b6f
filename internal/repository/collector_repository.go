package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/model"
)

type CollectorRepository struct {
	db *gorm.DB
}

func NewCollectorRepository(db *gorm.DB) *CollectorRepository {
	return &CollectorRepository{db: db}
}

func (r *CollectorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Collector, error) {
	var collector model.Collector
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, full_name, total_collections, total_distance_km,
			active_route_id, last_lng, last_lat, last_seen_at
		FROM collectors
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&collector).Error
	if err != nil {
		return nil, err
	}
	if collector.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &collector, nil
}

// Ensure creates the aggregate row for a collector id coming from the
// identity service. Safe to call on every route assignment.
func (r *CollectorRepository) Ensure(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO collectors (id)
		VALUES (?)
		ON CONFLICT (id) DO NOTHING
	`, id).Error
}

func (r *CollectorRepository) SetActiveRoute(ctx context.Context, id uuid.UUID, routeID *uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE collectors
		SET active_route_id = ?
		WHERE id = ?
	`, routeID, id).Error
}

// IncrementCollections is additive so concurrent check-ins never clobber
// each other's counts.
func (r *CollectorRepository) IncrementCollections(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE collectors
		SET total_collections = total_collections + 1
		WHERE id = ?
	`, id).Error
}

func (r *CollectorRepository) AddDistance(ctx context.Context, id uuid.UUID, km float64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE collectors
		SET total_distance_km = total_distance_km + ?
		WHERE id = ?
	`, km, id).Error
}

func (r *CollectorRepository) UpdateLocation(ctx context.Context, id uuid.UUID, lng, lat float64, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE collectors
		SET last_lng = ?, last_lat = ?, last_seen_at = ?
		WHERE id = ?
	`, lng, lat, now, id).Error
}
