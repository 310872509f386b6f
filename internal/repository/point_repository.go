package repository

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
)

type PointRepository struct {
	db *gorm.DB
}

func NewPointRepository(db *gorm.DB) *PointRepository {
	return &PointRepository{db: db}
}

const pointColumns = `
	id, citizen_id, street, number, neighborhood, reference,
	lng, lat, unit, quantity, status, route_id, route_order,
	collected_by, collected_at, collected_qty, collection_notes,
	created_at, updated_at
`

func (r *PointRepository) Create(ctx context.Context, p model.CollectionPoint) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO collection_points (
			id, citizen_id, street, number, neighborhood, reference,
			lng, lat, unit, quantity, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.CitizenID, p.Street, p.Number, p.Neighborhood, p.Reference,
		p.Lng, p.Lat, p.Unit, p.Quantity, p.Status, p.CreatedAt, p.UpdatedAt,
	).Error
}

func (r *PointRepository) Get(ctx context.Context, id uuid.UUID) (*model.CollectionPoint, error) {
	var p model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, point_id, status, actor_id, actor_role, note, created_at
		FROM point_status_history
		WHERE point_id = ?
		ORDER BY created_at ASC
	`, id).Scan(&p.History).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PointRepository) ListPending(ctx context.Context) ([]model.CollectionPoint, error) {
	var points []model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE status = ?
		ORDER BY created_at ASC
	`, model.PointStatusPending).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

// ListNearby fetches points inside a radius around a center. A bounding-box
// prefilter keeps the SQL on the (lat, lng) index; the exact haversine cut
// happens in Go afterwards.
func (r *PointRepository) ListNearby(ctx context.Context, center geo.Coordinates, radiusM float64) ([]model.CollectionPoint, error) {
	radiusKm := radiusM / 1000
	latDelta := radiusKm / 110.574
	lngDelta := radiusKm / 111.320
	// Guard against division blowup near the poles.
	if cosLat := math.Cos(center.Lat * math.Pi / 180); cosLat > 0.01 {
		lngDelta = radiusKm / (111.320 * cosLat)
	}

	var candidates []model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE lat BETWEEN ? AND ?
			AND lng BETWEEN ? AND ?
		ORDER BY created_at ASC
	`,
		center.Lat-latDelta, center.Lat+latDelta,
		center.Lng-lngDelta, center.Lng+lngDelta,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	points := make([]model.CollectionPoint, 0, len(candidates))
	for _, p := range candidates {
		if geo.HaversineM(center, p.Coordinates()) <= radiusM {
			points = append(points, p)
		}
	}
	return points, nil
}

func (r *PointRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.CollectionPoint, error) {
	if len(ids) == 0 {
		return []model.CollectionPoint{}, nil
	}
	var points []model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE id = ANY(?)
	`, ids).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *PointRepository) ListByRoute(ctx context.Context, routeID uuid.UUID) ([]model.CollectionPoint, error) {
	var points []model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE route_id = ?
		ORDER BY route_order ASC
	`, routeID).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *PointRepository) ListByCitizen(ctx context.Context, citizenID uuid.UUID) ([]model.CollectionPoint, error) {
	var points []model.CollectionPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+pointColumns+`
		FROM collection_points
		WHERE citizen_id = ?
		ORDER BY created_at DESC
	`, citizenID).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

// UpdateStatusConditional writes the point's status-bearing fields only if
// the stored status still matches expected. Returns false when another
// writer got there first; the caller re-reads and reconciles.
func (r *PointRepository) UpdateStatusConditional(ctx context.Context, p model.CollectionPoint, expected model.PointStatus) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE collection_points
		SET status = ?, route_id = ?, route_order = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, p.Status, p.RouteID, p.RouteOrder, p.UpdatedAt, p.ID, expected)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Collect is the single-writer commit of a check-in: the point flips to
// COLLECTED only if it is still on the scheduled/in-progress path. Exactly
// one of two racing check-ins sees a row update.
func (r *PointRepository) Collect(ctx context.Context, pointID, collectorID uuid.UUID, quantity float64, notes *string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE collection_points
		SET status = ?, collected_by = ?, collected_at = ?, collected_qty = ?, collection_notes = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`,
		model.PointStatusCollected, collectorID, now, quantity, notes, now,
		pointID, model.PointStatusScheduled, model.PointStatusInProgress,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PointRepository) AppendHistory(ctx context.Context, entry model.PointHistoryEntry) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO point_status_history (id, point_id, status, actor_id, actor_role, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.PointID, entry.Status, entry.ActorID, entry.ActorRole, entry.Note, entry.CreatedAt).Error
}

type StatusCount struct {
	Status model.PointStatus `json:"status"`
	Count  int64             `json:"count"`
}

type NeighborhoodCount struct {
	Neighborhood string `json:"neighborhood"`
	Count        int64  `json:"count"`
}

func (r *PointRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT status, COUNT(*) AS count
		FROM collection_points
		GROUP BY status
		ORDER BY status
	`).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PointRepository) CountByNeighborhood(ctx context.Context) ([]NeighborhoodCount, error) {
	var counts []NeighborhoodCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT neighborhood, COUNT(*) AS count
		FROM collection_points
		GROUP BY neighborhood
		ORDER BY count DESC
	`).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
