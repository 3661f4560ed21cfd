package telemetry

import (
	"context"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
)

// Gateway отдаёт телеметрию рейса по возрастанию captured_at.
// since != nil ограничивает выборку сэмплами строго после водяного знака.
type Gateway interface {
	Fetch(ctx context.Context, tripID uint64, since *time.Time) ([]models.GPSSample, error)
}
