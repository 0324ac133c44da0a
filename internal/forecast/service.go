package forecast

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/weather"
)

// WeatherSource returns current conditions. *weather.Service satisfies it.
type WeatherSource interface {
	Current(ctx context.Context, q weather.Query) weather.Snapshot
}

// ServiceConfig configures a forecast Service.
type ServiceConfig struct {
	Model          Model
	Weather        WeatherSource
	SolarRadiation float64
	Logger         zerolog.Logger
}

// Service builds snapshots from live weather and a health profile.
type Service struct {
	adapter *Adapter
	weather WeatherSource
	solar   float64
	logger  zerolog.Logger
	now     func() time.Time
}

// Result is a forecast for one location.
type Result struct {
	City     string
	Lat      float64
	Lon      float64
	Degraded bool
	Points   []Point
}

// NewService creates a forecast service. A nil model means the default
// linear model.
func NewService(cfg ServiceConfig) *Service {
	model := cfg.Model
	if model == nil {
		model = DefaultLinearModel()
	}
	solar := cfg.SolarRadiation
	if solar <= 0 {
		solar = DefaultSolarRadiation
	}
	return &Service{
		adapter: NewAdapter(model),
		weather: cfg.Weather,
		solar:   solar,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Forecast predicts the next Days days at q for a subject with profile.
func (s *Service) Forecast(ctx context.Context, q weather.Query, profile aqi.HealthProfile) Result {
	snap := s.weather.Current(ctx, q)
	if snap.Degraded {
		s.logger.Debug().Str("city", q.City).Msg("forecasting from fallback weather")
	}

	features := Features{
		Temperature:    snap.Temperature,
		WindSpeed:      snap.WindSpeed,
		SolarRadiation: s.solar,
	}.ProfileFeatures(profile)

	points := slices.Collect(s.adapter.Forecast(Snapshot{
		Date:     s.now(),
		Features: features,
	}))

	city := snap.City
	if city == "" {
		city = q.City
	}
	return Result{
		City:     city,
		Lat:      snap.Lat,
		Lon:      snap.Lon,
		Degraded: snap.Degraded,
		Points:   points,
	}
}
