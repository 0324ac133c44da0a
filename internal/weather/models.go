// Package weather provides current weather snapshots with caching and a
// fixed fallback for when the provider is unreachable.
package weather

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrEmptyQuery          = errors.New("weather query needs coordinates or a city")
	ErrCityNotFound        = errors.New("city not found")
)

// Fallback conditions used when no observation can be fetched.
const (
	FallbackWindSpeed   = 4.5
	FallbackHumidity    = 65.0
	FallbackTemperature = 28.0
)

// Provider is an upstream source of current weather.
type Provider interface {
	Name() string
	CurrentByCoordinates(ctx context.Context, lat, lon float64) (*Snapshot, error)
	CurrentByCity(ctx context.Context, city string) (*Snapshot, error)
}

// Query selects a location by coordinates or, failing that, by city name.
type Query struct {
	Lat, Lon       float64
	HasCoordinates bool
	City           string
}

// AtCoordinates builds a coordinate query.
func AtCoordinates(lat, lon float64) Query {
	return Query{Lat: lat, Lon: lon, HasCoordinates: true}
}

// InCity builds a city-name query.
func InCity(city string) Query {
	return Query{City: strings.TrimSpace(city)}
}

// Snapshot is the weather at a place and time. Wind speed is in m/s,
// humidity in percent and temperature in °C.
type Snapshot struct {
	Lat         float64
	Lon         float64
	City        string
	WindSpeed   float64
	Humidity    float64
	Temperature float64
	Condition   Condition
	Description string
	ObservedAt  time.Time

	// Degraded marks the fixed fallback values.
	Degraded bool
}

// Fallback returns the fixed snapshot used when no provider answers.
func Fallback(q Query) Snapshot {
	return Snapshot{
		Lat:         q.Lat,
		Lon:         q.Lon,
		City:        q.City,
		WindSpeed:   FallbackWindSpeed,
		Humidity:    FallbackHumidity,
		Temperature: FallbackTemperature,
		Condition:   ConditionUnknown,
		ObservedAt:  time.Now(),
		Degraded:    true,
	}
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)
