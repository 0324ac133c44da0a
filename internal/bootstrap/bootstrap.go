// Package bootstrap wires the services shared by the API server and the
// worker from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/airquality/openaq"
	"github.com/breatheroute/aqiguard/internal/airquality/tempo"
	"github.com/breatheroute/aqiguard/internal/config"
	"github.com/breatheroute/aqiguard/internal/database"
	"github.com/breatheroute/aqiguard/internal/device"
	"github.com/breatheroute/aqiguard/internal/forecast"
	"github.com/breatheroute/aqiguard/internal/history"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/notification/email"
	"github.com/breatheroute/aqiguard/internal/notification/push"
	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
	"github.com/breatheroute/aqiguard/internal/user"
	"github.com/breatheroute/aqiguard/internal/weather"
	"github.com/breatheroute/aqiguard/internal/weather/openweathermap"
)

// NewLogger builds the process logger. Local runs get human-readable
// console output; everything else logs JSON to stdout.
func NewLogger(app config.AppConfig, serviceName, version string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if app.IsLocal() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// App holds the wired services.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// Pool is nil when running with in-memory stores.
	Pool *pgxpool.Pool

	Registry   *resilience.Registry
	Users      *user.Service
	Devices    *device.Service
	History    *history.Recorder
	AlertLog   notification.AlertLog
	Fallback   notification.FallbackStore
	Dispatcher *notification.Dispatcher
	Readings   *airquality.Service
	Weather    *weather.Service
	Forecasts  *forecast.Service
	Pipeline   *pipeline.Orchestrator

	closers []func() error
}

// New connects storage, builds provider clients and wires the evaluation
// pipeline. Close must be called on the returned App.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Registry: resilience.NewRegistry()}

	if m, err := resilience.NewMetrics(); err == nil {
		a.Registry.SetMetrics(m)
	} else {
		logger.Warn().Err(err).Msg("provider metrics disabled")
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openNotifications(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPipeline(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	if a.Config.Database.InMemory {
		a.Logger.Warn().Msg("using in-memory stores; data is lost on restart")
		a.Users = user.NewService(user.NewInMemoryRepository())
		a.Devices = device.NewService(device.NewInMemoryRepository())
		a.History = history.NewRecorder(history.NewInMemoryRepository())
		a.AlertLog = notification.NewInMemoryAlertLog()
		return nil
	}

	pool, err := database.Connect(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	a.Logger.Info().
		Str("host", a.Config.Database.Host).
		Int("port", a.Config.Database.Port).
		Str("database", a.Config.Database.Name).
		Msg("database connected")

	a.Users = user.NewService(user.NewPostgresRepository(pool))
	a.Devices = device.NewService(device.NewPostgresRepository(pool))
	a.History = history.NewRecorder(history.NewPostgresRepository(pool))
	a.AlertLog = notification.NewPostgresAlertLog(pool)
	return nil
}

func (a *App) openNotifications(ctx context.Context) error {
	nc := a.Config.Notification

	switch nc.FallbackStore {
	case config.FallbackFile:
		store, err := notification.NewFileStore(nc.FallbackDir)
		if err != nil {
			return err
		}
		a.Fallback = store
	default:
		if err := os.MkdirAll(filepath.Dir(nc.FallbackDB), 0o750); err != nil {
			return fmt.Errorf("create fallback dir: %w", err)
		}
		store, err := notification.OpenSQLiteStore(ctx, nc.FallbackDB)
		if err != nil {
			return err
		}
		a.Fallback = store
		a.closers = append(a.closers, store.Close)
	}

	var channels []notification.Channel
	if nc.EmailEnabled() {
		channels = append(channels, email.NewChannel(email.Config{
			APIKey:    nc.SendGridAPIKey,
			BaseURL:   nc.SendGridBaseURL,
			FromEmail: nc.FromEmail,
			FromName:  nc.FromName,
			Registry:  a.Registry,
			Logger:    a.Logger,
		}))
	} else {
		a.Logger.Warn().Msg("SENDGRID_API_KEY not set; email alerts disabled")
	}

	if nc.PushTopic != "" && a.Config.Worker.ProjectID != "" {
		publisher, err := push.NewTopicPublisher(ctx, a.Config.Worker.ProjectID, nc.PushTopic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, publisher.Close)
		channels = append(channels, push.NewChannel(publisher, a.Logger))
	}

	a.Dispatcher = notification.NewDispatcher(notification.DispatcherConfig{
		Channels: channels,
		Contacts: notification.NewUserContacts(a.Users, a.Devices),
		Fallback: a.Fallback,
		AlertLog: a.AlertLog,
		Logger:   a.Logger,
	})
	return nil
}

func (a *App) buildPipeline() error {
	pc := a.Config.Providers

	providers := []airquality.Provider{
		openaq.NewClient(openaq.ClientConfig{
			BaseURL:  pc.OpenAQBaseURL,
			APIKey:   pc.OpenAQAPIKey,
			Registry: a.Registry,
		}),
	}
	if pc.TEMPOEndpoint != "" {
		providers = append(providers, tempo.NewClient(tempo.ClientConfig{
			Endpoint: pc.TEMPOEndpoint,
			APIKey:   pc.TEMPOAPIKey,
			Registry: a.Registry,
		}))
	}

	a.Readings = airquality.NewService(airquality.ServiceConfig{
		Providers:    providers,
		Logger:       a.Logger,
		RadiusMeters: pc.StationRadiusMeters,
		CacheTTL:     pc.CacheTTL,
	})

	a.Weather = weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   pc.OpenWeatherMapAPIKey,
			BaseURL:  pc.OpenWeatherMapBaseURL,
			Registry: a.Registry,
			Logger:   a.Logger,
		}),
		Logger:   a.Logger,
		CacheTTL: pc.CacheTTL,
	})

	var model forecast.Model
	if path := a.Config.Forecast.ModelPath; path != "" {
		m, err := forecast.LoadLinearModelFile(path)
		if err != nil {
			return fmt.Errorf("load forecast model: %w", err)
		}
		model = m
	}
	a.Forecasts = forecast.NewService(forecast.ServiceConfig{
		Model:          model,
		Weather:        a.Weather,
		SolarRadiation: a.Config.Forecast.SolarRadiation,
		Logger:         a.Logger,
	})

	metrics, err := pipeline.NewMetrics()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("pipeline metrics disabled")
		metrics = nil
	}

	a.Pipeline = pipeline.New(pipeline.Config{
		Readings:         a.Readings,
		Weather:          a.Weather,
		Profiles:         a.Users,
		Recorder:         a.History,
		Notifier:         a.Dispatcher,
		IsProfileMissing: IsProfileMissing,
		Metrics:          metrics,
		Logger:           a.Logger,
	})
	return nil
}

// IsProfileMissing reports whether err from the user service means the
// subject has no usable health profile.
func IsProfileMissing(err error) bool {
	return errors.Is(err, user.ErrProfileNotFound) || errors.Is(err, user.ErrUserNotFound)
}

// Close releases storage and publisher resources in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}
