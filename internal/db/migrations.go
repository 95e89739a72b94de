package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'worker_role') THEN
			CREATE TYPE worker_role AS ENUM ('admin', 'user');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'worker_status') THEN
			CREATE TYPE worker_status AS ENUM ('active', 'inactive');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'vehicle_status') THEN
			CREATE TYPE vehicle_status AS ENUM ('active', 'maintenance', 'inactive');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS workers (
		id VARCHAR(32) PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		email VARCHAR(255),
		password_hash TEXT NOT NULL,
		role worker_role NOT NULL DEFAULT 'user',
		status worker_status NOT NULL DEFAULT 'active',
		last_activity TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_workers_email ON workers (LOWER(email)) WHERE email IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id VARCHAR(8) PRIMARY KEY CHECK (id ~ '^T[0-9]{3}$'),
		model VARCHAR(128) NOT NULL,
		year INT NOT NULL,
		status vehicle_status NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		session_handle VARCHAR(32) NOT NULL,
		worker_id VARCHAR(32) NOT NULL,
		worker_name VARCHAR(128) NOT NULL,
		truck_id VARCHAR(8) NOT NULL,
		truck_model VARCHAR(128),
		truck_year INT,
		locale VARCHAR(8) NOT NULL DEFAULT 'en',
		items JSONB NOT NULL,
		overall_condition INT NOT NULL CHECK (overall_condition BETWEEN 0 AND 100),
		critical_count INT NOT NULL DEFAULT 0,
		warning_count INT NOT NULL DEFAULT 0,
		dynamic_status VARCHAR(16) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL,
		report_filename VARCHAR(255),
		report_location TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_inspections_session_handle ON inspections (session_handle);`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_worker_id ON inspections (worker_id);`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_truck_id ON inspections (truck_id);`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_ended_at ON inspections (ended_at);`,
	`CREATE TABLE IF NOT EXISTS inspection_metrics (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		inspection_id UUID NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
		metric_type VARCHAR(32) NOT NULL,
		calculation_period VARCHAR(16) NOT NULL,
		metric_value JSONB NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_inspection_metrics_type_recorded ON inspection_metrics (metric_type, recorded_at);`,
	`CREATE INDEX IF NOT EXISTS idx_inspection_metrics_inspection_id ON inspection_metrics (inspection_id);`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_workers_updated_at') THEN
			CREATE TRIGGER trg_workers_updated_at
				BEFORE UPDATE ON workers
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_vehicles_updated_at') THEN
			CREATE TRIGGER trg_vehicles_updated_at
				BEFORE UPDATE ON vehicles
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
	END
	$$;`,
}

func RunMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
