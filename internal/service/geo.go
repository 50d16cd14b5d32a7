package service

import (
	"math"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
)

const earthRadiusKm = 6371.0

// haversine returns the great-circle distance in kilometres.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func distance(a, b models.Stop) float64 {
	return haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// insertionOrder returns the 1-based order at which p adds the least detour
// to the ordered stops. The first stop is the origin and never moves. With
// zero or one stop the point is appended.
func insertionOrder(stops []models.Stop, p models.Stop) int {
	n := len(stops)
	if n <= 1 {
		return n + 1
	}

	best := n + 1
	bestCost := distance(stops[n-1], p)
	for i := 1; i < n; i++ {
		a, b := stops[i-1], stops[i]
		cost := distance(a, p) + distance(p, b) - distance(a, b)
		if cost < bestCost {
			best = i + 1
			bestCost = cost
		}
	}
	return best
}
