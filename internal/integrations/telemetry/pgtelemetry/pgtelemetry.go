package pgtelemetry

import (
	"context"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Gateway читает gps_tracks, которую наполняет ингест GPS-провайдера.
// Ядро таблицей не владеет: только чтение, никакого bootstrap схемы.
type Gateway struct {
	db *pgxpool.Pool
}

func New(connString string) (*Gateway, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}
	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}
	return &Gateway{db: db}, nil
}

func NewWithPool(db *pgxpool.Pool) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) Close() {
	if g.db != nil {
		g.db.Close()
	}
}

func (g *Gateway) Fetch(ctx context.Context, tripID uint64, since *time.Time) ([]models.GPSSample, error) {
	q := `
SELECT lat, lon, captured_at, device_id, vehicle_plate
FROM gps_tracks
WHERE trip_id = $1
ORDER BY captured_at ASC
`
	args := []any{tripID}
	if since != nil {
		q = `
SELECT lat, lon, captured_at, device_id, vehicle_plate
FROM gps_tracks
WHERE trip_id = $1 AND captured_at > $2
ORDER BY captured_at ASC
`
		args = append(args, since.UTC())
	}

	rows, err := g.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select gps tracks")
	}
	defer rows.Close()

	var out []models.GPSSample
	for rows.Next() {
		var s models.GPSSample
		if err := rows.Scan(&s.Lat, &s.Lon, &s.CapturedAt, &s.DeviceID, &s.VehiclePlate); err != nil {
			return nil, errors.Wrap(err, "scan gps sample")
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
