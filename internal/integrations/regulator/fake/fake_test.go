package fake

import (
	"context"
	"testing"

	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_ReportAndRemember(t *testing.T) {
	f := New()
	require.NoError(t, f.ReportEvent(context.Background(), regulator.Event{Kind: regulator.EventEntry, PointCode: "1"}))
	require.NoError(t, f.ReportEvent(context.Background(), regulator.Event{Kind: regulator.EventExitCargo, PointCode: "1"}))

	evs := f.Events()
	require.Len(t, evs, 2)
	require.Equal(t, regulator.EventEntry, evs[0].Kind)
	require.Equal(t, regulator.EventExitCargo, evs[1].Kind)
}

func TestFakeClient_FetchPending(t *testing.T) {
	f := New()
	got, err := f.FetchPending(context.Background(), []string{"111", "222"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "111", got[0].ExternalNumber)
	require.Len(t, got[0].Points, 2)
	require.NotNil(t, got[0].Points[0].AppointmentAt)
	require.Nil(t, got[0].Points[1].AppointmentAt)
}
