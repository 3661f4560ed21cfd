package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAdjustment_RescheduleRequiresTimestamp(t *testing.T) {
	_, err := NewAdjustment(1, nil, "", nil, nil)
	require.Error(t, err)

	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	adj, err := NewAdjustment(1, &at, "", nil, nil)
	require.NoError(t, err)

	fs := adj.(PointAdjustment).FieldSet()
	require.NotNil(t, fs.AppointmentAt)
	require.True(t, fs.AppointmentAt.Equal(at))
	require.Nil(t, fs.MunicipalityCode)
	require.Nil(t, fs.Lat)
}

func TestNewAdjustment_RelocateRequiresCoordinate(t *testing.T) {
	lat, lon := 6.24, -75.58

	_, err := NewAdjustment(2, nil, "05001", nil, nil)
	require.Error(t, err)
	_, err = NewAdjustment(2, nil, "", &lat, &lon)
	require.Error(t, err)

	adj, err := NewAdjustment(2, nil, "05001", &lat, &lon)
	require.NoError(t, err)

	fs := adj.(PointAdjustment).FieldSet()
	require.Nil(t, fs.AppointmentAt)
	require.Equal(t, "05001", *fs.MunicipalityCode)
	require.Equal(t, lat, *fs.Lat)
	require.Equal(t, lon, *fs.Lon)
}

func TestNewAdjustment_CombinedSetsEverything(t *testing.T) {
	at := time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC)
	lat, lon := 4.71, -74.07

	_, err := NewAdjustment(3, &at, "", &lat, &lon)
	require.Error(t, err)

	adj, err := NewAdjustment(3, &at, "11001", &lat, &lon)
	require.NoError(t, err)

	fs := adj.(PointAdjustment).FieldSet()
	require.NotNil(t, fs.AppointmentAt)
	require.NotNil(t, fs.MunicipalityCode)
	require.NotNil(t, fs.Lat)
	require.NotNil(t, fs.Lon)
}

func TestNewAdjustment_ManifestLevelCodes(t *testing.T) {
	adj, err := NewAdjustment(4, nil, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, AdjustAnnul, adj.Code())
	_, ok := adj.(PointAdjustment)
	require.False(t, ok)

	adj, err = NewAdjustment(5, nil, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, AdjustUnplannedTransfer, adj.Code())
}

func TestNewAdjustment_UnknownCode(t *testing.T) {
	_, err := NewAdjustment(0, nil, "", nil, nil)
	require.Error(t, err)
	_, err = NewAdjustment(9, nil, "", nil, nil)
	require.Error(t, err)
}

func TestControlPointCreateInput_Category(t *testing.T) {
	at := time.Now().UTC()
	require.Equal(t, PointCategoryCargo, ControlPointCreateInput{AppointmentAt: &at}.Category())
	require.Equal(t, PointCategoryTransit, ControlPointCreateInput{}.Category())
}
