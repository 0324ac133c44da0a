// Package main provides the entrypoint for the AQI Guard API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/api"
	"github.com/breatheroute/aqiguard/internal/api/handler"
	"github.com/breatheroute/aqiguard/internal/api/middleware"
	"github.com/breatheroute/aqiguard/internal/auth"
	"github.com/breatheroute/aqiguard/internal/bootstrap"
	"github.com/breatheroute/aqiguard/internal/chatbot"
	"github.com/breatheroute/aqiguard/internal/config"
	"github.com/breatheroute/aqiguard/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "aqiguard-api"

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := bootstrap.NewLogger(cfg.App, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting AQI Guard API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(serviceName, Version, cfg.App, cfg.Telemetry))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.JWTSigningKey,
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
	})
	if cfg.Auth.JWTSigningKey == config.LocalSigningKey {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	bot := chatbot.New(chatbot.Config{
		Forecaster: app.Forecasts,
		Profiles:   app.Users,
		Logger:     log,
	})

	// A typed nil pool must not reach the readiness check.
	var db handler.Pinger
	if app.Pool != nil {
		db = app.Pool
	}

	router := api.NewRouter(api.RouterConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Metrics:   metrics,
		Tokens:    jwtService,
		Services: api.Services{
			Evaluator: app.Pipeline,
			Users:     app.Users,
			Devices:   app.Devices,
			History:   app.History,
			Alerts:    app.AlertLog,
			Forecasts: app.Forecasts,
			Chatbot:   bot,
		},
		DB:              db,
		Providers:       app.Registry,
		RequireTLS:      cfg.HTTP.RequireTLS,
		PublicRateLimit: cfg.HTTP.PublicRateLimit,
		UserRateLimit:   cfg.HTTP.UserRateLimit,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
