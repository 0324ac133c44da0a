package airquality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Providers are tried in order; the first usable reading wins.
	Providers []Provider

	Logger zerolog.Logger

	// RadiusMeters is the station search radius (default 2000, max 100000).
	RadiusMeters int

	// StationLimit is how many nearby stations to ask for (default 5).
	StationLimit int

	// CacheTTL is how long a reading is reused for the same grid cell
	// (default 10 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving an expired reading when every
	// provider fails (default 1 hour).
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds a shared provider lookup (default 30s). The lookup
	// outlives any single caller's context.
	FetchTimeout time.Duration
}

// Service resolves ambient AQI readings with caching. Concurrent lookups
// for the same grid cell share one upstream call, and the cache lock is
// never held while a provider is being called.
type Service struct {
	providers       []Provider
	logger          zerolog.Logger
	radius          int
	limit           int
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	fetchTimeout    time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedResult
}

type cachedResult struct {
	result    Result
	expiresAt time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	limit := cfg.StationLimit
	if limit <= 0 {
		limit = 5
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}
	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	return &Service{
		providers:       cfg.Providers,
		logger:          cfg.Logger,
		radius:          ClampRadius(cfg.RadiusMeters),
		limit:           limit,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		fetchTimeout:    fetchTimeout,
		cache:           make(map[string]cachedResult),
	}
}

// CurrentReading returns the ambient AQI at the point. It never fails:
// when no provider yields a usable measurement (and no recent cached value
// exists) the result carries the fallback AQI with StatusFallback.
func (s *Service) CurrentReading(ctx context.Context, lat, lon float64) Result {
	key := gridKey(lat, lon)

	if cached, ok := s.lookup(key); ok && time.Now().Before(cached.expiresAt) {
		return cached.result
	}

	// The shared lookup runs detached from ctx so one caller hanging up
	// does not fail everyone waiting on the same cell.
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, lat, lon)
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(Result)
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if cached, ok := s.lookup(key); ok && time.Since(cached.result.FetchedAt) < s.staleIfErrorTTL {
		s.logger.Warn().
			Err(err).
			Time("fetched_at", cached.result.FetchedAt).
			Msg("serving stale air quality reading due to provider error")
		return cached.result
	}

	s.logger.Warn().
		Err(err).
		Float64("lat", lat).
		Float64("lon", lon).
		Int("fallback_aqi", aqi.FallbackAQI).
		Msg("no air quality reading available, using fallback")

	return Result{
		Reading:    aqi.ConvertReading(nil),
		Provider:   "fallback",
		Confidence: ConfidenceNone,
		FetchedAt:  time.Now(),
	}
}

func (s *Service) fetch(ctx context.Context, lat, lon float64) (Result, error) {
	if len(s.providers) == 0 {
		return Result{}, ErrProviderUnavailable
	}

	var errs []error
	for _, p := range s.providers {
		readings, err := p.FetchNearestReadings(ctx, lat, lon, s.radius, s.limit)
		if err != nil {
			s.logger.Debug().Err(err).Str("provider", p.Name()).Msg("air quality provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		result, ok := selectReading(lat, lon, readings)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrNoReading))
			continue
		}
		result.Provider = p.Name()
		result.FetchedAt = time.Now()

		s.mu.Lock()
		s.cache[gridKey(lat, lon)] = cachedResult{result: result, expiresAt: result.FetchedAt.Add(s.cacheTTL)}
		s.mu.Unlock()

		s.logger.Debug().
			Str("provider", p.Name()).
			Str("station", result.StationID).
			Int("aqi", result.AQI).
			Float64("distance_m", result.DistanceMeters).
			Msg("air quality reading resolved")
		return result, nil
	}
	return Result{}, errors.Join(errs...)
}

func (s *Service) lookup(key string) (cachedResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	return c, ok
}

// selectReading picks the nearest station reporting PM2.5, then the
// nearest reporting a ready-made index, then the nearest station's first
// measurement.
func selectReading(lat, lon float64, readings []StationReading) (Result, bool) {
	if len(readings) == 0 {
		return Result{}, false
	}
	sortByDistance(lat, lon, readings)

	for _, preferred := range []aqi.Pollutant{aqi.PollutantPM25, aqi.PollutantIndex} {
		for _, r := range readings {
			if m, ok := r.Measurement(preferred); ok {
				return newResult(r, m), true
			}
		}
	}
	for _, r := range readings {
		if len(r.Measurements) > 0 {
			return newResult(r, r.Measurements[0]), true
		}
	}
	return Result{}, false
}

func newResult(r StationReading, m Measurement) Result {
	raw := &aqi.RawReading{Value: m.Value, Pollutant: m.Pollutant}
	return Result{
		Reading:        aqi.ConvertReading(raw),
		Raw:            raw,
		StationID:      r.Station.ID,
		StationName:    r.Station.Name,
		DistanceMeters: r.DistanceMeters,
		Confidence:     confidenceFor(r.DistanceMeters),
	}
}

// gridKey buckets coordinates to roughly 1 km cells.
func gridKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f:%.2f", math.Round(lat*100)/100, math.Round(lon*100)/100)
}
