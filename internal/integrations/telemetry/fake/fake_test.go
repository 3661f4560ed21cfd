package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Подбирает рейс, которому заглушка выдаёт сигнал (каждый пятый — без).
func tripWithSignal(t *testing.T, g *FakeGateway) uint64 {
	for id := uint64(1); id <= 10; id++ {
		samples, err := g.Fetch(context.Background(), id, nil)
		require.NoError(t, err)
		if len(samples) > 0 {
			return id
		}
	}
	t.Fatal("no trip with signal in 1..10")
	return 0
}

func TestFakeGateway_Deterministic(t *testing.T) {
	g := New()
	id := tripWithSignal(t, g)

	a, err := g.Fetch(context.Background(), id, nil)
	require.NoError(t, err)
	b, err := g.Fetch(context.Background(), id, nil)
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))
	require.Equal(t, a[0].Lat, b[0].Lat)
	require.Equal(t, a[0].Lon, b[0].Lon)
}

func TestFakeGateway_SinceFilters(t *testing.T) {
	g := New()
	id := tripWithSignal(t, g)

	all, err := g.Fetch(context.Background(), id, nil)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	future := time.Now().UTC().Add(time.Hour)
	none, err := g.Fetch(context.Background(), id, &future)
	require.NoError(t, err)
	require.Empty(t, none)
}
