package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
)

// FakeGateway — детерминированная телеметрия для локальных прогонов без
// живого GPS-провайдера. Часть рейсов получает трек у точки, часть — в пути.
type FakeGateway struct{}

func New() *FakeGateway { return &FakeGateway{} }

func (f *FakeGateway) Fetch(ctx context.Context, tripID uint64, since *time.Time) ([]models.GPSSample, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte{byte(tripID), byte(tripID >> 8), byte(tripID >> 16)})
	v := h.Sum32()

	// Каждый пятый рейс вообще без сигнала.
	if v%5 == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	base := models.GPSSample{
		Lat:          4.5981 + float64(v%100)/1000,
		Lon:          -74.0758,
		CapturedAt:   now.Add(-10 * time.Minute),
		DeviceID:     "fake-gps",
		VehiclePlate: "FAKE000",
	}
	next := base
	next.Lat += 0.01
	next.CapturedAt = now

	out := []models.GPSSample{base, next}
	if since != nil {
		var filtered []models.GPSSample
		for _, s := range out {
			if s.CapturedAt.After(*since) {
				filtered = append(filtered, s)
			}
		}
		return filtered, nil
	}
	return out, nil
}
