package geomatch

import (
	"math"
	"testing"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/stretchr/testify/require"
)

func sample(lat, lon float64) models.GPSSample {
	return models.GPSSample{Lat: lat, Lon: lon, CapturedAt: time.Now().UTC()}
}

func TestNearest_InvalidReference(t *testing.T) {
	for _, ref := range []Coordinate{
		{Lat: math.NaN(), Lon: -74.0758},
		{Lat: 4.5981, Lon: math.Inf(1)},
		{Lat: math.Inf(-1), Lon: math.NaN()},
	} {
		_, err := Nearest(ref, []models.GPSSample{sample(4.6, -74.1)})
		require.ErrorIs(t, err, ErrInvalidCoordinate)
	}
}

func TestNearest_InvalidCandidate(t *testing.T) {
	_, err := Nearest(Coordinate{Lat: 4.5981, Lon: -74.0758}, []models.GPSSample{
		sample(4.6, -74.1),
		sample(math.NaN(), -74.1),
	})
	require.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestNearest_EmptyCandidates(t *testing.T) {
	_, err := Nearest(Coordinate{Lat: 4.5981, Lon: -74.0758}, nil)
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestNearest_PicksClosestWithinBounds(t *testing.T) {
	ref := Coordinate{Lat: 4.5981, Lon: -74.0758}
	samples := []models.GPSSample{
		sample(4.7110, -74.0721), // ~12.5 km
		sample(4.5981, -74.0758), // ровно в точке
		sample(4.6000, -74.0800),
	}
	m, err := Nearest(ref, samples)
	require.NoError(t, err)
	require.GreaterOrEqual(t, m.Index, 0)
	require.Less(t, m.Index, len(samples))
	require.Equal(t, 1, m.Index)
	require.InDelta(t, 0, m.DistanceMeters, 0.001)
}

func TestNearest_StableTieBreak(t *testing.T) {
	ref := Coordinate{Lat: 4.5981, Lon: -74.0758}
	// Два одинаковых кандидата: выигрывает первый.
	samples := []models.GPSSample{
		sample(4.5990, -74.0758),
		sample(4.5990, -74.0758),
	}
	m, err := Nearest(ref, samples)
	require.NoError(t, err)
	require.Equal(t, 0, m.Index)
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// ~1 градус широты ≈ 111 км.
	d := DistanceMeters(Coordinate{Lat: 4.0, Lon: -74.0}, Coordinate{Lat: 5.0, Lon: -74.0})
	require.InDelta(t, 111_000, d, 1_000)
}
