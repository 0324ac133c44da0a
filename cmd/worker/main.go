// Package main provides the entrypoint for the AQI Guard background worker.
// It consumes evaluation jobs from Pub/Sub, runs scheduled sweeps and
// redelivers alerts parked in the fallback store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/aqiguard/internal/api/handler"
	"github.com/breatheroute/aqiguard/internal/bootstrap"
	"github.com/breatheroute/aqiguard/internal/config"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/telemetry"
	"github.com/breatheroute/aqiguard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "aqiguard-worker"

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("worker exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := bootstrap.NewLogger(cfg.App, serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting AQI Guard worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.Worker.Concurrency
	workerCfg.RedeliveryInterval = cfg.Worker.RedeliveryInterval
	workerCfg.SweepInterval = cfg.Worker.SweepInterval

	metrics, err := worker.NewMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("worker metrics disabled")
		metrics = nil
	}

	evaluate := worker.NewEvaluateJob(worker.EvaluateJobConfig{
		Evaluator: app.Pipeline,
		Subjects:  app.Users,
		Config:    workerCfg,
		Metrics:   metrics,
		Logger:    log,
	})
	redeliver := notification.NewRedeliverer(notification.RedeliverConfig{
		Dispatcher: app.Dispatcher,
		Store:      app.Fallback,
		BatchSize:  cfg.Worker.RedeliveryBatch,
		Logger:     log,
	})
	runner := worker.NewRunner(evaluate, redeliver, metrics, log)

	scheduler := worker.NewScheduler(runner, workerCfg, log)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Worker.ProjectID != "" {
		subscriber, err := worker.NewPubSubHandler(gctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.Subscription,
			Jobs:             runner,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer subscriber.Close()

		g.Go(func() error { return subscriber.Start(gctx) })
	} else {
		log.Warn().Msg("GCP_PROJECT_ID not set; only scheduled jobs will run")
	}

	// The worker exposes health endpoints for the container platform.
	var db handler.Pinger
	if app.Pool != nil {
		db = app.Pool
	}
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		DB:        db,
		Providers: app.Registry,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("worker stopped")
	return nil
}
