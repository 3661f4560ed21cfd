package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/FreightWatch/internal/models"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	fakeRepo
	listCalls atomic.Int32
}

func (r *countingRepo) ListActiveTrips(ctx context.Context, limit int) ([]*models.Trip, error) {
	r.listCalls.Add(1)
	return nil, nil
}

func TestEngine_Run_StopsOnContextCancel(t *testing.T) {
	repo := &countingRepo{}
	e := New(repo, &fakeTelemetry{}, nil, nil, nil, "t").
		WithSettings(5*time.Millisecond, 1, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	err := e.Run(ctx)
	require.Error(t, err)
	require.GreaterOrEqual(t, repo.listCalls.Load(), int32(1))
}

func TestEngine_Trigger_ForcesCycle(t *testing.T) {
	repo := &countingRepo{}
	e := New(repo, &fakeTelemetry{}, nil, nil, nil, "t").
		WithSettings(time.Hour, 1, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		e.Trigger()
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	require.Error(t, e.Run(ctx))
	require.Equal(t, int32(1), repo.listCalls.Load())

	st := e.Stats()
	require.NotNil(t, st.LastCycleAt)
}
