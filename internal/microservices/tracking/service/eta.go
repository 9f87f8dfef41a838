package service

import (
	"math"

	"restaurant-pos/internal/domain"
)

const earthRadiusKM = 6371.0

// haversineKM is the great-circle distance between two points.
func haversineKM(a, b domain.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// EstimateMinutes computes a whole-minute ETA for a delivery leg. Before
// pickup the rider still has to reach the restaurant, so both legs count.
// The result is at least 1 while any distance remains; a nil rider location
// yields no estimate.
func EstimateMinutes(riderLoc *domain.RiderLocation, d domain.Delivery, avgSpeedKMH float64) *int {
	if riderLoc == nil || avgSpeedKMH <= 0 {
		return nil
	}
	rider := domain.LatLng{Lat: riderLoc.Latitude, Lng: riderLoc.Longitude}

	var km float64
	switch d.Status {
	case domain.DeliveryAssigned, domain.DeliveryReadyPickup:
		km = haversineKM(rider, d.Pickup) + haversineKM(d.Pickup, d.Destination)
	default:
		km = haversineKM(rider, d.Destination)
	}

	minutes := int(math.Ceil(km / avgSpeedKMH * 60))
	if minutes < 1 && km > 0.01 {
		minutes = 1
	}
	return &minutes
}
