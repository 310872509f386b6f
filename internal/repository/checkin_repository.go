package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/model"
)

type CheckInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

func (r *CheckInRepository) Create(ctx context.Context, c model.CheckIn) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO check_ins (
			id, route_id, point_id, collector_id, reported_lng, reported_lat,
			distance_m, location_valid, quantity, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.RouteID, c.PointID, c.CollectorID, c.ReportedLng, c.ReportedLat,
		c.DistanceM, c.LocationValid, c.Quantity, c.Notes, c.CreatedAt,
	).Error
}

func (r *CheckInRepository) ListByRoute(ctx context.Context, routeID uuid.UUID) ([]model.CheckIn, error) {
	var checkIns []model.CheckIn
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, route_id, point_id, collector_id, reported_lng, reported_lat,
			distance_m, location_valid, quantity, notes, created_at
		FROM check_ins
		WHERE route_id = ?
		ORDER BY created_at ASC
	`, routeID).Scan(&checkIns).Error
	if err != nil {
		return nil, err
	}
	return checkIns, nil
}
