// Package airquality resolves the ambient AQI for a location from a chain
// of data providers, falling back to a fixed value when none answers.
package airquality

import (
	"context"
	"errors"
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Provider errors.
var (
	// ErrNoReading means the provider answered but had no usable measurement.
	ErrNoReading = errors.New("no usable air quality reading")

	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Search radius limits in meters.
const (
	DefaultRadiusMeters = 2000
	MaxRadiusMeters     = 100000
)

// Provider is an upstream source of station readings.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// FetchNearestReadings returns up to limit stations within radius
	// meters of the point, each with its latest measurements.
	FetchNearestReadings(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]StationReading, error)
}

// Station is a monitoring location.
type Station struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Measurement is the latest value of one pollutant at a station.
type Measurement struct {
	Pollutant  aqi.Pollutant
	Value      float64
	Unit       string
	MeasuredAt time.Time
}

// StationReading is a station with its latest measurements.
type StationReading struct {
	Station      Station
	Measurements []Measurement

	// DistanceMeters from the query point. Zero means unknown; the
	// service computes it.
	DistanceMeters float64
}

// Measurement returns the station's value for p, if any.
func (r StationReading) Measurement(p aqi.Pollutant) (Measurement, bool) {
	for _, m := range r.Measurements {
		if m.Pollutant == p {
			return m, true
		}
	}
	return Measurement{}, false
}

// Result is the resolved ambient reading for a location.
type Result struct {
	aqi.Reading

	// Raw is the measurement the AQI was computed from. Nil on fallback.
	Raw *aqi.RawReading

	Provider       string
	StationID      string
	StationName    string
	DistanceMeters float64
	Confidence     Confidence
	FetchedAt      time.Time
}
