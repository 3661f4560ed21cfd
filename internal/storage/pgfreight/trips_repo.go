package pgfreight

import (
	"context"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const tripColumns = `
  id, external_number, carrier_tax_id, consecutive_number, vehicle_plate,
  issue_date, driver_id_type, driver_id_number, monitoring_company_id,
  annulled, created_at, updated_at`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	if err := row.Scan(
		&t.ID, &t.ExternalNumber, &t.CarrierTaxID, &t.ConsecutiveNumber, &t.VehiclePlate,
		&t.IssueDate, &t.DriverIDType, &t.DriverIDNumber, &t.MonitoringCompanyID,
		&t.Annulled, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Storage) GetTripByExternalNumber(ctx context.Context, externalNumber string) (*models.Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT`+tripColumns+` FROM trips WHERE external_number = $1`, externalNumber)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrManifestNotFound, "external number %s", externalNumber)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select trip")
	}
	return t, nil
}

// CreateTrip вставляет новый рейс. Повторная вставка того же external_number —
// не ошибка: возвращается существующая запись и created=false.
func (s *Storage) CreateTrip(ctx context.Context, in models.TripCreateInput) (*models.Trip, bool, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
INSERT INTO trips (
  external_number, carrier_tax_id, consecutive_number, vehicle_plate,
  issue_date, driver_id_type, driver_id_number, monitoring_company_id,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
ON CONFLICT (external_number) DO NOTHING
RETURNING`+tripColumns+`
`, in.ExternalNumber, in.CarrierTaxID, in.ConsecutiveNumber, in.VehiclePlate,
		in.IssueDate, in.DriverIDType, in.DriverIDNumber, in.MonitoringCompanyID, now)

	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, gerr := s.GetTripByExternalNumber(ctx, in.ExternalNumber)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "insert trip")
	}
	return t, true, nil
}

// AnnulTrip — терминальная отметка манифеста (корректировки 4 и 5).
func (s *Storage) AnnulTrip(ctx context.Context, externalNumber string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE trips SET annulled = true, updated_at = now() WHERE external_number = $1
`, externalNumber)
	if err != nil {
		return errors.Wrap(err, "annul trip")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrManifestNotFound, "external number %s", externalNumber)
	}
	return nil
}

// ListActiveTrips — не аннулированные рейсы, у которых остались точки
// в состоянии != DEPARTED. Их обходит движок мониторинга.
func (s *Storage) ListActiveTrips(ctx context.Context, limit int) ([]*models.Trip, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := s.db.Query(ctx, `
SELECT`+tripColumns+`
FROM trips
WHERE annulled = false
  AND EXISTS (
    SELECT 1 FROM control_points p
    WHERE p.trip_id = trips.id AND p.state <> $1
  )
ORDER BY id ASC
LIMIT $2
`, models.PointStateDeparted, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select active trips")
	}
	defer rows.Close()

	var out []*models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan trip")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
