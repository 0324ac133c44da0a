// Package api provides the HTTP API for the AQI service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/api/handler"
	"github.com/breatheroute/aqiguard/internal/api/middleware"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
)

// Services are the domain dependencies of the HTTP handlers.
type Services struct {
	Evaluator handler.Evaluator
	Users     UserService
	Devices   handler.DeviceStore
	History   handler.HistorySource
	Alerts    handler.AlertSource
	Forecasts handler.Forecaster
	Chatbot   handler.Responder
}

// UserService is the full set of user operations the API needs.
type UserService interface {
	handler.AccountStore
	handler.ProfileStore
	handler.ProfileSource
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics
	Tokens    middleware.TokenValidator
	Services  Services

	// DB and Providers feed the readiness check. DB may be nil.
	DB        handler.Pinger
	Providers handler.ProviderHealthSource

	RequireTLS bool

	// Requests per minute; zero disables the limit.
	PublicRateLimit int
	UserRateLimit   int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method))
	})

	svc := cfg.Services
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		DB:        cfg.DB,
		Providers: cfg.Providers,
	})
	aqiHandler := handler.NewAQIHandler(svc.Evaluator, svc.Users)
	forecastHandler := handler.NewForecastHandler(svc.Forecasts, svc.Users, svc.Users)
	historyHandler := handler.NewHistoryHandler(svc.History)
	alertHandler := handler.NewAlertHandler(svc.Alerts)
	meHandler := handler.NewMeHandler(svc.Users)
	profileHandler := handler.NewProfileHandler(svc.Users)
	deviceHandler := handler.NewDeviceHandler(svc.Devices)
	chatbotHandler := handler.NewChatbotHandler(svc.Chatbot)

	authMiddleware := middleware.Auth(cfg.Tokens)
	publicRateLimit := rateLimit(middleware.RateLimitByIP, cfg.PublicRateLimit)
	userRateLimit := rateLimit(middleware.RateLimitByUser, cfg.UserRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)

		// Live monitor - public, personalized when a token is presented
		r.With(middleware.OptionalAuth(cfg.Tokens), publicRateLimit).
			Get("/monitor/aqi", aqiHandler.Monitor)
		r.With(publicRateLimit).Get("/monitor/history", historyHandler.Nearby)

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Get("/", meHandler.GetMe)
			r.Put("/", meHandler.UpdateMe)

			r.Get("/aqi", aqiHandler.MyAQI)
			r.Get("/forecast", forecastHandler.MyForecast)
			r.Get("/history", historyHandler.MyHistory)
			r.Get("/alerts", alertHandler.MyAlerts)

			r.Get("/health-profile", profileHandler.GetProfile)
			r.Put("/health-profile", profileHandler.UpsertProfile)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.ListDevices)
				r.Put("/{deviceId}", deviceHandler.RegisterDevice)
				r.Delete("/{deviceId}", deviceHandler.UnregisterDevice)
			})
		})

		r.Route("/chatbot", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Post("/", chatbotHandler.Message)
			r.Get("/history", chatbotHandler.History)
		})
	})

	return r
}

func rateLimit(limiter func(middleware.RateLimitConfig) func(http.Handler) http.Handler, perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return limiter(middleware.PerMinute(perMinute))
}
