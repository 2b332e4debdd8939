package router

import (
	"log/slog"

	"github.com/anonto42/event-fanout/backend/internal/handlers"
	"github.com/anonto42/event-fanout/backend/internal/middleware"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
)

// Dependencies are the collaborators the HTTP surface needs
type Dependencies struct {
	Preferences handlers.PreferenceTrigger
	Events      handlers.EventTrigger
	Activity    handlers.ActivityTrigger
	// Mirror is set only for the in-memory store.
	Mirror repositories.Mirror
	// Deliveries is nil when no delivery log is configured.
	Deliveries repositories.DeliveryRepository
	// AdminVerifier guards the operator routes; they are not served without it.
	AdminVerifier middleware.IDTokenVerifier
	PushAudience  string
	Logger        *slog.Logger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.RequestLogger())
	e.Use(eMiddleware.Recover())
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/v1")
	if deps.PushAudience != "" {
		api.Use(middleware.PushAuthMiddleware(deps.PushAudience))
		deps.Logger.Info("push authentication enabled", "audience", deps.PushAudience)
	}

	triggerHandler := handlers.NewTriggerHandler(deps.Preferences, deps.Events, deps.Activity, deps.Mirror, deps.Logger)
	triggerHandler.RegisterTriggerRoutes(api)
	deps.Logger.Info("trigger routes configured")

	if deps.Deliveries != nil && deps.AdminVerifier != nil {
		admin := e.Group("/admin", middleware.FirebaseAdminMiddleware(deps.AdminVerifier))
		deliveryHandler := handlers.NewDeliveryHandler(deps.Deliveries)
		deliveryHandler.RegisterDeliveryRoutes(admin)
		deps.Logger.Info("delivery log routes configured")
	}
}
