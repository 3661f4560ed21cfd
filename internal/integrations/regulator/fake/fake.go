package fake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
)

// FakeClient — заглушка моста регулятора для локальных прогонов.
// Принимает всё, запоминает отправленное.
type FakeClient struct {
	mu     sync.Mutex
	events []regulator.Event
}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) ReportEvent(ctx context.Context, ev regulator.Event) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	slog.Info("fake regulator event accepted", "kind", string(ev.Kind), "manifest", ev.ManifestNumber, "point", ev.PointCode)
	return nil
}

func (f *FakeClient) Events() []regulator.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]regulator.Event, len(f.events))
	copy(out, f.events)
	return out
}

func (f *FakeClient) FetchPending(ctx context.Context, manifestIDs []string) ([]regulator.ManifestRecord, error) {
	now := time.Now().UTC()
	appointment := now.Add(24 * time.Hour)

	out := make([]regulator.ManifestRecord, 0, len(manifestIDs))
	for _, id := range manifestIDs {
		out = append(out, regulator.ManifestRecord{
			ExternalNumber:    id,
			CarrierTaxID:      "900123456",
			ConsecutiveNumber: "1",
			VehiclePlate:      "FAKE000",
			IssueDate:         &now,
			Points: []regulator.PointPayload{
				{Code: "1", Lat: 4.5981, Lon: -74.0758, AppointmentAt: &appointment, DwellMinutes: 120, MunicipalityCode: "11001000"},
				{Code: "2", Lat: 4.7110, Lon: -74.0721, MunicipalityCode: "11001001"},
			},
		})
	}
	return out, nil
}
