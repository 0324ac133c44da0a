package weather

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long to reuse an observation (default 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the cache cell size in degrees (default 0.1).
	CacheGridSize float64

	// StaleIfErrorTTL allows serving an expired observation on provider
	// errors (default 1 hour).
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds a shared provider call (default 30s).
	FetchTimeout time.Duration
}

// Service provides weather snapshots with caching. The cache lock is only
// held for map access; provider calls for the same key are deduplicated.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	fetchTimeout    time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedSnapshot
}

type cachedSnapshot struct {
	snapshot  Snapshot
	fetchedAt time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}
	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1
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
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		fetchTimeout:    fetchTimeout,
		cache:           make(map[string]cachedSnapshot),
	}
}

// Current returns the weather for q. It never fails: provider errors
// yield a recent cached snapshot or, without one, Fallback(q).
func (s *Service) Current(ctx context.Context, q Query) Snapshot {
	snapshot, err := s.fetch(ctx, q)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Float64("lat", q.Lat).
			Float64("lon", q.Lon).
			Str("city", q.City).
			Msg("weather unavailable, using fallback conditions")
		return Fallback(q)
	}
	return snapshot
}

// Locate resolves a city name to coordinates via the weather provider.
// The observation is cached, so a following Current call for the same
// city does not hit the provider again.
func (s *Service) Locate(ctx context.Context, city string) (lat, lon float64, err error) {
	snapshot, err := s.fetch(ctx, InCity(city))
	if err != nil {
		return 0, 0, err
	}
	return snapshot.Lat, snapshot.Lon, nil
}

func (s *Service) fetch(ctx context.Context, q Query) (Snapshot, error) {
	key, err := s.cacheKey(q)
	if err != nil {
		return Snapshot{}, err
	}

	cached, ok := s.lookup(key)
	if ok && time.Since(cached.fetchedAt) < s.cacheTTL {
		return cached.snapshot, nil
	}

	// Detached from ctx: callers sharing the key each wait on their own
	// context, and one cancellation does not fail the others.
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		snapshot, err := s.fromProvider(fetchCtx, q)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = cachedSnapshot{snapshot: *snapshot, fetchedAt: time.Now()}
		s.mu.Unlock()
		return *snapshot, nil
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(Snapshot), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if ok && time.Since(cached.fetchedAt) < s.staleIfErrorTTL {
		s.logger.Warn().
			Err(err).
			Time("fetched_at", cached.fetchedAt).
			Msg("serving stale weather data due to provider error")
		return cached.snapshot, nil
	}
	return Snapshot{}, err
}

func (s *Service) fromProvider(ctx context.Context, q Query) (*Snapshot, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}

	s.logger.Debug().
		Str("provider", s.provider.Name()).
		Float64("lat", q.Lat).
		Float64("lon", q.Lon).
		Str("city", q.City).
		Msg("fetching weather from provider")

	var (
		snapshot *Snapshot
		err      error
	)
	if q.HasCoordinates {
		snapshot, err = s.provider.CurrentByCoordinates(ctx, q.Lat, q.Lon)
	} else {
		snapshot, err = s.provider.CurrentByCity(ctx, q.City)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	return snapshot, nil
}

func (s *Service) lookup(key string) (cachedSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	return c, ok
}

// cacheKey groups nearby points into grid cells, or normalizes the city.
func (s *Service) cacheKey(q Query) (string, error) {
	if q.HasCoordinates {
		if q.Lat < -90 || q.Lat > 90 || q.Lon < -180 || q.Lon > 180 {
			return "", ErrInvalidCoordinates
		}
		gridLat := math.Floor(q.Lat/s.cacheGridSize) * s.cacheGridSize
		gridLon := math.Floor(q.Lon/s.cacheGridSize) * s.cacheGridSize
		return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon), nil
	}
	if q.City == "" {
		return "", ErrEmptyQuery
	}
	return "city:" + strings.ToLower(q.City), nil
}
