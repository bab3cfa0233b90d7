// Package api provides the HTTP API for AtmosGuard.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/handler"
	"github.com/atmosguard/atmosguard/internal/api/middleware"
	"github.com/atmosguard/atmosguard/internal/auth"
	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/geolocation"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
	"github.com/atmosguard/atmosguard/internal/regional"
)

// Environment is the aggregation core the API serves.
type Environment interface {
	handler.EnvironmentFetcher
	handler.RouteComputer
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Environment  Environment
	Geolocator   *geolocation.Geolocator
	Sessions     *dashboard.Store
	Regions      regional.Repository
	GeocodeCache handler.CacheInvalidator
	Tokens       *auth.TokenService
	Registry     *resilience.Registry
	Checks       []handler.DependencyCheck

	// StreamCheckOrigin overrides the WebSocket same-origin check.
	StreamCheckOrigin func(*http.Request) bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "atmosguard-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	environmentHandler := handler.NewEnvironmentHandler(cfg.Environment, cfg.Geolocator, cfg.Logger)
	routeHandler := handler.NewRouteHandler(cfg.Environment)
	insightsHandler := handler.NewInsightsHandler()
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Logger)
	streamHandler := handler.NewStreamHandler(cfg.Sessions, cfg.Logger, cfg.StreamCheckOrigin)
	regionHandler := handler.NewRegionHandler(cfg.Regions, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.GeocodeCache, cfg.Logger)

	operatorAuth := middleware.OperatorAuth(cfg.Tokens)

	adminRateLimit := middleware.RateLimitByOperator(middleware.AdminRateLimit)
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	sessionRateLimit := middleware.RateLimitBySession(middleware.SessionRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(operatorAuth).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/environment", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/overview", environmentHandler.Overview)
			r.Get("/point", environmentHandler.Point)
			r.Get("/heat", environmentHandler.Heat)
		})

		// Two geocoding calls and one routing call per request.
		r.With(expensiveRateLimit, middleware.RequireJSON).Post("/routes:compute", routeHandler.ComputeRoute)

		r.Route("/insights", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/forecast", insightsHandler.Forecast)
			r.Get("/dynamic", insightsHandler.Dynamic)
		})

		r.With(standardRateLimit).Get("/regions", regionHandler.ListRegions)

		r.Route("/sessions", func(r chi.Router) {
			r.With(standardRateLimit).Post("/", sessionHandler.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(sessionRateLimit)
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Get("/stream", streamHandler.Stream)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireJSON)
					r.Put("/tab", sessionHandler.SetTab)
					r.Put("/forecast-offset", sessionHandler.SetForecastOffset)
					r.Put("/predictive-hour", sessionHandler.SetPredictiveHour)
					r.Post("/play", sessionHandler.Play)
					r.Post("/pause", sessionHandler.Pause)
					r.Post("/overview:refresh", sessionHandler.RefreshOverview)
					r.Post("/point:select", sessionHandler.SelectPoint)
					r.Post("/heat:select", sessionHandler.SelectHeatPoint)
					r.With(expensiveRateLimit).Post("/route:compute", sessionHandler.ComputeRoute)
				})
			})
		})

		// Admin endpoints (operator token)
		r.Route("/admin", func(r chi.Router) {
			r.Use(operatorAuth)
			r.Use(adminRateLimit)
			r.Post("/geocode-cache/invalidate", adminHandler.InvalidateGeocodeCache)
		})
	})

	return r
}
