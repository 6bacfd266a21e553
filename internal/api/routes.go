package api

import (
	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/handlers"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/middlewares"
)

// Capabilities required by the protected endpoints.
const (
	CapabilityProfileRead = "profile:read"
	CapabilitySystemRead  = "system:read"
)

// App names that can be switched off with api.disabled_apps.
const (
	AppCapabilities = "capabilities"
	AppProfile      = "profile"
)

// SetupRoutes configures all API routes with proper middleware
func SetupRoutes(router *gin.Engine, services interfaces.Services) {
	cfg := services.GetConfig()
	d := services.Dispatcher()

	// Global middleware
	router.Use(services.GetLogger().RequestLogger())
	router.Use(middlewares.Recovery(d.Classifier()))
	router.Use(services.Metrics().Middleware())
	router.Use(middlewares.CORS(cfg.API.CORS))
	router.Use(middlewares.Security())
	router.Use(middlewares.RateLimit(middlewares.NewRateLimiter(cfg.API.RateLimit, cfg.API.BurstLimit)))

	// Health check (no auth required)
	router.GET("/health", handlers.HealthCheck(services))
	router.GET("/ping", handlers.HealthCheck(services))
	router.GET("/metrics", gin.WrapH(services.Metrics().Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		setupPublicRoutes(v1, services, d)
		setupAuthenticatedRoutes(v1, services, d)
	}
}

// setupPublicRoutes configures routes that don't require a token. Endpoints are
// registered for every method so the dispatcher answers unsupported ones.
func setupPublicRoutes(rg *gin.RouterGroup, services interfaces.Services, d *dispatch.Dispatcher) {
	rg.Any("/sessions", d.NewHandler(dispatch.Methods{
		Post:   handlers.Login(services),
		Delete: handlers.Logout(services),
	}))

	rg.Any("/capabilities", d.HandleRequests(
		dispatch.Chain(
			middlewares.RequireApp(services, AppCapabilities),
			middlewares.OptionalSession(services),
		),
		dispatch.Methods{Get: handlers.GetCapabilities(services)},
	))
}

// setupAuthenticatedRoutes configures routes that require a bearer token
func setupAuthenticatedRoutes(rg *gin.RouterGroup, services interfaces.Services, d *dispatch.Dispatcher) {
	requireToken := middlewares.RequireToken(services)

	rg.Any("/token", d.HandleRequests(requireToken,
		dispatch.Methods{Get: handlers.GetToken(services)},
	))

	rg.Any("/people/me", d.HandleRequests(
		dispatch.Chain(
			middlewares.RequireApp(services, AppProfile),
			requireToken,
			middlewares.RequireSession(services),
			middlewares.RequireCapability(CapabilityProfileRead),
		),
		dispatch.Methods{Get: handlers.GetCurrentPerson(services)},
	))

	rg.Any("/system/stats", d.HandleRequests(
		dispatch.Chain(
			requireToken,
			middlewares.RequireSession(services),
			middlewares.RequireCapability(CapabilitySystemRead),
		),
		dispatch.Methods{Get: handlers.GetSystemStats(services)},
	))
}
