package pgfreight

import (
	"context"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const pointColumns = `
  id, trip_id, code, lat, lon, category,
  appointment_at, dwell_minutes, municipality_code,
  state, arrived_at, departed_at, track_watermark,
  attempts_with_tracks, attempts_without_tracks,
  last_attempt_at, last_miss_distance_m,
  created_at, updated_at`

func scanPoint(row pgx.Row) (*models.ControlPoint, error) {
	var p models.ControlPoint
	if err := row.Scan(
		&p.ID, &p.TripID, &p.Code, &p.Lat, &p.Lon, &p.Category,
		&p.AppointmentAt, &p.DwellMinutes, &p.MunicipalityCode,
		&p.State, &p.ArrivedAt, &p.DepartedAt, &p.TrackWatermark,
		&p.AttemptsWithTracks, &p.AttemptsWithoutTracks,
		&p.LastAttemptAt, &p.LastMissDistanceM,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActivePoints — точки рейса в состоянии != DEPARTED, в порядке кода.
// DEPARTED терминален и в выборку не попадает никогда.
func (s *Storage) ListActivePoints(ctx context.Context, tripID uint64) ([]*models.ControlPoint, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+pointColumns+`
FROM control_points
WHERE trip_id = $1 AND state <> $2
ORDER BY code ASC
`, tripID, models.PointStateDeparted)
	if err != nil {
		return nil, errors.Wrap(err, "select active points")
	}
	defer rows.Close()

	var out []*models.ControlPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan point")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetPointByTripAndCode(ctx context.Context, tripID uint64, code string) (*models.ControlPoint, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+pointColumns+` FROM control_points WHERE trip_id = $1 AND code = $2
`, tripID, code)
	p, err := scanPoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrControlPointNotFound, "trip %d code %s", tripID, code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select point")
	}
	return p, nil
}

// CreateControlPoint вставляет точку. Повторная вставка (trip_id, code) —
// не ошибка, created=false.
func (s *Storage) CreateControlPoint(ctx context.Context, tripID uint64, in models.ControlPointCreateInput) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
INSERT INTO control_points (
  trip_id, code, lat, lon, category,
  appointment_at, dwell_minutes, municipality_code, state,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (trip_id, code) DO NOTHING
`, tripID, in.Code, in.Lat, in.Lon, in.Category(),
		in.AppointmentAt, in.DwellMinutes, in.MunicipalityCode, models.PointStatePending, now)
	if err != nil {
		return false, errors.Wrap(err, "insert control point")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkArrived переводит PENDING -> ARRIVED и сбрасывает оба счётчика попыток.
// Условие state = PENDING защищает от отката уже продвинутой точки.
func (s *Storage) MarkArrived(ctx context.Context, pointID uint64, arrivedAt, watermark time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE control_points
SET
  state = $2,
  arrived_at = $3,
  track_watermark = $4,
  attempts_with_tracks = 0,
  attempts_without_tracks = 0,
  last_miss_distance_m = NULL,
  updated_at = now()
WHERE id = $1 AND state = $5
`, pointID, models.PointStateArrived, arrivedAt.UTC(), watermark.UTC(), models.PointStatePending)
	if err != nil {
		return errors.Wrap(err, "mark arrived")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrControlPointNotFound, "point %d is not pending", pointID)
	}
	return nil
}

// MarkDeparted переводит ARRIVED -> DEPARTED и сбрасывает счётчики.
func (s *Storage) MarkDeparted(ctx context.Context, pointID uint64, departedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE control_points
SET
  state = $2,
  departed_at = $3,
  track_watermark = $3,
  attempts_with_tracks = 0,
  attempts_without_tracks = 0,
  last_miss_distance_m = NULL,
  updated_at = now()
WHERE id = $1 AND state = $4
`, pointID, models.PointStateDeparted, departedAt.UTC(), models.PointStateArrived)
	if err != nil {
		return errors.Wrap(err, "mark departed")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrControlPointNotFound, "point %d is not arrived", pointID)
	}
	return nil
}

// BumpNoTrackAttempts — телеметрии не было совсем. Возвращает новое значение
// счётчика: по нему движок сверяет пороги 5/10.
func (s *Storage) BumpNoTrackAttempts(ctx context.Context, pointID uint64, at time.Time) (int32, error) {
	var n int32
	err := s.db.QueryRow(ctx, `
UPDATE control_points
SET
  attempts_without_tracks = attempts_without_tracks + 1,
  last_attempt_at = $2,
  updated_at = now()
WHERE id = $1
RETURNING attempts_without_tracks
`, pointID, at.UTC()).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "bump no-track attempts")
	}
	return n, nil
}

// BumpMissAttempts — трек был, но подходящего сэмпла не нашлось. Дистанция
// промаха (если считалась) сохраняется для диагностики; nil её не трогает.
func (s *Storage) BumpMissAttempts(ctx context.Context, pointID uint64, at time.Time, missDistanceM *float64) (int32, error) {
	var n int32
	err := s.db.QueryRow(ctx, `
UPDATE control_points
SET
  attempts_with_tracks = attempts_with_tracks + 1,
  last_attempt_at = $2,
  last_miss_distance_m = COALESCE($3, last_miss_distance_m),
  updated_at = now()
WHERE id = $1
RETURNING attempts_with_tracks
`, pointID, at.UTC(), missDistanceM).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "bump miss attempts")
	}
	return n, nil
}

// ApplyPointAdjustment накладывает частичный набор полей, посчитанный
// вариантом корректировки. Персистентность ничего не знает о кодах 1..3.
func (s *Storage) ApplyPointAdjustment(ctx context.Context, tripID uint64, code string, fs models.PointFieldSet) error {
	tag, err := s.db.Exec(ctx, `
UPDATE control_points
SET
  appointment_at = COALESCE($3, appointment_at),
  municipality_code = COALESCE($4, municipality_code),
  lat = COALESCE($5, lat),
  lon = COALESCE($6, lon),
  updated_at = now()
WHERE trip_id = $1 AND code = $2
`, tripID, code, fs.AppointmentAt, fs.MunicipalityCode, fs.Lat, fs.Lon)
	if err != nil {
		return errors.Wrap(err, "apply point adjustment")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrControlPointNotFound, "trip %d code %s", tripID, code)
	}
	return nil
}
