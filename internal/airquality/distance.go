package airquality

import (
	"sort"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for distance conversion.
const EarthRadiusMeters = 6371008.8

// Confidence grades how representative a station is for the query point.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = "NONE"
)

// Distance thresholds for Confidence.
const (
	highConfidenceMaxDistance   = 5000
	mediumConfidenceMaxDistance = 15000
)

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

func confidenceFor(distance float64) Confidence {
	switch {
	case distance <= highConfidenceMaxDistance:
		return ConfidenceHigh
	case distance <= mediumConfidenceMaxDistance:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// sortByDistance fills in missing distances and orders readings nearest first.
func sortByDistance(lat, lon float64, readings []StationReading) {
	for i := range readings {
		if readings[i].DistanceMeters == 0 {
			s := readings[i].Station
			readings[i].DistanceMeters = DistanceMeters(lat, lon, s.Lat, s.Lon)
		}
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].DistanceMeters < readings[j].DistanceMeters
	})
}

// ClampRadius bounds a requested search radius to MaxRadiusMeters. A
// non-positive radius means DefaultRadiusMeters.
func ClampRadius(radius int) int {
	switch {
	case radius <= 0:
		return DefaultRadiusMeters
	case radius > MaxRadiusMeters:
		return MaxRadiusMeters
	default:
		return radius
	}
}
