package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/domain"
)

// Times Square to the Empire State Building, roughly 1 km apart.
var (
	timesSquare = domain.LatLng{Lat: 40.758, Lng: -73.9855}
	empireState = domain.LatLng{Lat: 40.7484, Lng: -73.9857}
)

func TestHaversineKnownDistance(t *testing.T) {
	km := haversineKM(timesSquare, empireState)
	require.InDelta(t, 1.07, km, 0.05)
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	require.InDelta(t, 0, haversineKM(timesSquare, timesSquare), 1e-9)
}

func TestEstimateMinutesNilWithoutLocation(t *testing.T) {
	d := domain.Delivery{Status: domain.DeliveryInTransit, Destination: empireState}
	require.Nil(t, EstimateMinutes(nil, d, 25))
}

func TestEstimateMinutesInTransitUsesDirectLeg(t *testing.T) {
	loc := &domain.RiderLocation{Latitude: timesSquare.Lat, Longitude: timesSquare.Lng}
	d := domain.Delivery{Status: domain.DeliveryInTransit, Destination: empireState}

	// ~1.07 km at 25 km/h is about 2.6 minutes, rounded up.
	minutes := EstimateMinutes(loc, d, 25)
	require.NotNil(t, minutes)
	require.Equal(t, 3, *minutes)
}

func TestEstimateMinutesBeforePickupCountsBothLegs(t *testing.T) {
	loc := &domain.RiderLocation{Latitude: timesSquare.Lat, Longitude: timesSquare.Lng}
	direct := domain.Delivery{Status: domain.DeliveryInTransit, Destination: empireState}
	assigned := domain.Delivery{
		Status:      domain.DeliveryAssigned,
		Pickup:      empireState,
		Destination: timesSquare,
	}

	directMin := EstimateMinutes(loc, direct, 25)
	bothMin := EstimateMinutes(loc, assigned, 25)
	require.NotNil(t, directMin)
	require.NotNil(t, bothMin)
	require.Greater(t, *bothMin, *directMin)
}

func TestEstimateMinutesNeverZeroWhileRemote(t *testing.T) {
	loc := &domain.RiderLocation{Latitude: 40.7489, Longitude: -73.9857}
	d := domain.Delivery{Status: domain.DeliveryInTransit, Destination: empireState}

	// A few dozen meters out still reports one minute, not zero.
	minutes := EstimateMinutes(loc, d, 1000)
	require.NotNil(t, minutes)
	require.Equal(t, 1, *minutes)
}
