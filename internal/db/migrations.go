package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'point_status') THEN
			CREATE TYPE point_status AS ENUM ('PENDING', 'SCHEDULED', 'IN_PROGRESS', 'COLLECTED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'route_status') THEN
			CREATE TYPE route_status AS ENUM ('DRAFT', 'SCHEDULED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'stop_status') THEN
			CREATE TYPE stop_status AS ENUM ('PENDING', 'COMPLETED', 'SKIPPED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'incident_severity') THEN
			CREATE TYPE incident_severity AS ENUM ('INFO', 'WARNING', 'CRITICAL');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS collectors (
		id UUID PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		total_collections BIGINT NOT NULL DEFAULT 0,
		total_distance_km NUMERIC(12,3) NOT NULL DEFAULT 0,
		active_route_id UUID,
		last_lng DOUBLE PRECISION,
		last_lat DOUBLE PRECISION,
		last_seen_at TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS collection_points (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		citizen_id UUID NOT NULL,
		street VARCHAR(255) NOT NULL,
		number VARCHAR(32) NOT NULL,
		neighborhood VARCHAR(128) NOT NULL,
		reference TEXT,
		lng DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		unit VARCHAR(8) NOT NULL,
		quantity NUMERIC(12,3) NOT NULL,
		status point_status NOT NULL DEFAULT 'PENDING',
		route_id UUID,
		route_order INT,
		collected_by UUID,
		collected_at TIMESTAMPTZ,
		collected_qty NUMERIC(12,3),
		collection_notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_points_status ON collection_points(status);`,
	`CREATE INDEX IF NOT EXISTS idx_points_citizen ON collection_points(citizen_id);`,
	`CREATE INDEX IF NOT EXISTS idx_points_coords ON collection_points(lat, lng);`,
	`CREATE TABLE IF NOT EXISTS point_status_history (
		id UUID PRIMARY KEY,
		point_id UUID NOT NULL REFERENCES collection_points(id),
		status point_status NOT NULL,
		actor_id UUID NOT NULL,
		actor_role VARCHAR(16) NOT NULL,
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_history_point ON point_status_history(point_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS routes (
		id UUID PRIMARY KEY,
		collector_id UUID NOT NULL REFERENCES collectors(id),
		scheduled_date DATE NOT NULL,
		window_start VARCHAR(8) NOT NULL DEFAULT '',
		window_end VARCHAR(8) NOT NULL DEFAULT '',
		status route_status NOT NULL DEFAULT 'DRAFT',
		total_distance_km NUMERIC(12,3) NOT NULL DEFAULT 0,
		estimated_minutes NUMERIC(12,2) NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		actual_minutes NUMERIC(12,2),
		start_lng DOUBLE PRECISION,
		start_lat DOUBLE PRECISION,
		current_lng DOUBLE PRECISION,
		current_lat DOUBLE PRECISION,
		end_lng DOUBLE PRECISION,
		end_lat DOUBLE PRECISION,
		collections_count INT NOT NULL DEFAULT 0,
		avg_minutes_per_stop NUMERIC(12,2),
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_routes_collector ON routes(collector_id, scheduled_date);`,
	`CREATE TABLE IF NOT EXISTS route_stops (
		route_id UUID NOT NULL REFERENCES routes(id),
		point_id UUID NOT NULL REFERENCES collection_points(id),
		position INT NOT NULL,
		status stop_status NOT NULL DEFAULT 'PENDING',
		estimated_arrival TIMESTAMPTZ,
		actual_arrival TIMESTAMPTZ,
		PRIMARY KEY (route_id, point_id)
	);`,
	`CREATE TABLE IF NOT EXISTS route_breaks (
		id UUID PRIMARY KEY,
		route_id UUID NOT NULL REFERENCES routes(id),
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS route_incidents (
		id UUID PRIMARY KEY,
		route_id UUID NOT NULL REFERENCES routes(id),
		collector_id UUID NOT NULL,
		severity incident_severity NOT NULL,
		description TEXT NOT NULL,
		lng DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS check_ins (
		id UUID PRIMARY KEY,
		route_id UUID NOT NULL REFERENCES routes(id),
		point_id UUID NOT NULL REFERENCES collection_points(id),
		collector_id UUID NOT NULL,
		reported_lng DOUBLE PRECISION NOT NULL,
		reported_lat DOUBLE PRECISION NOT NULL,
		distance_m NUMERIC(12,2) NOT NULL,
		location_valid BOOLEAN NOT NULL,
		quantity NUMERIC(12,3) NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_checkins_route ON check_ins(route_id);`,
}

func RunMigrations(database *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
