package geomatch

import (
	"math"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrNoCandidates      = errors.New("no candidate samples")
)

type Coordinate struct {
	Lat float64
	Lon float64
}

// Match — ближайший сэмпл к опорной точке.
type Match struct {
	Index          int
	DistanceMeters float64
}

func (c Coordinate) valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// Nearest ищет ближайший к ref сэмпл по дуге большого круга (haversine).
// При равных дистанциях побеждает первый по порядку входа. Чистая функция.
func Nearest(ref Coordinate, samples []models.GPSSample) (Match, error) {
	if !ref.valid() {
		return Match{}, errors.Wrapf(ErrInvalidCoordinate, "reference (%v, %v)", ref.Lat, ref.Lon)
	}
	if len(samples) == 0 {
		return Match{}, ErrNoCandidates
	}

	refPt := orb.Point{ref.Lon, ref.Lat}
	best := Match{Index: -1, DistanceMeters: math.MaxFloat64}
	for i, s := range samples {
		if !(Coordinate{Lat: s.Lat, Lon: s.Lon}).valid() {
			return Match{}, errors.Wrapf(ErrInvalidCoordinate, "sample %d (%v, %v)", i, s.Lat, s.Lon)
		}
		d := geo.Distance(refPt, orb.Point{s.Lon, s.Lat})
		if d < best.DistanceMeters {
			best = Match{Index: i, DistanceMeters: d}
		}
	}
	return best, nil
}

// DistanceMeters — расстояние между двумя координатами в метрах.
func DistanceMeters(a, b Coordinate) float64 {
	return geo.Distance(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}
