package pgfreight

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS trips (
  id BIGSERIAL PRIMARY KEY,
  external_number TEXT NOT NULL,
  carrier_tax_id TEXT NOT NULL DEFAULT '',
  consecutive_number TEXT NOT NULL DEFAULT '',
  vehicle_plate TEXT NOT NULL DEFAULT '',
  issue_date TIMESTAMPTZ NULL,
  driver_id_type TEXT NOT NULL DEFAULT '',
  driver_id_number TEXT NOT NULL DEFAULT '',
  monitoring_company_id TEXT NOT NULL DEFAULT '',
  annulled BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (external_number)
)`,
		`
CREATE TABLE IF NOT EXISTS control_points (
  id BIGSERIAL PRIMARY KEY,
  trip_id BIGINT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
  code TEXT NOT NULL,
  lat DOUBLE PRECISION NOT NULL,
  lon DOUBLE PRECISION NOT NULL,
  category TEXT NOT NULL,
  appointment_at TIMESTAMPTZ NULL,
  dwell_minutes INT NOT NULL DEFAULT 0,
  municipality_code TEXT NOT NULL DEFAULT '',
  state SMALLINT NOT NULL DEFAULT 0,
  arrived_at TIMESTAMPTZ NULL,
  departed_at TIMESTAMPTZ NULL,
  track_watermark TIMESTAMPTZ NULL,
  attempts_with_tracks INT NOT NULL DEFAULT 0,
  attempts_without_tracks INT NOT NULL DEFAULT 0,
  last_attempt_at TIMESTAMPTZ NULL,
  last_miss_distance_m DOUBLE PRECISION NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (trip_id, code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_control_points_trip_state ON control_points(trip_id, state)`,
		// Телеметрия пишется ингестом GPS-провайдера, ядро её только читает.
		`
CREATE TABLE IF NOT EXISTS gps_tracks (
  id BIGSERIAL PRIMARY KEY,
  trip_id BIGINT NOT NULL,
  lat DOUBLE PRECISION NOT NULL,
  lon DOUBLE PRECISION NOT NULL,
  captured_at TIMESTAMPTZ NOT NULL,
  device_id TEXT NOT NULL DEFAULT '',
  vehicle_plate TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_gps_tracks_trip_captured ON gps_tracks(trip_id, captured_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
