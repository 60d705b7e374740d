// Package v1 wires the HTTP API surface.
package v1

import (
	"github.com/gin-gonic/gin"

	"botiquin/internal/domain/auth"
	"botiquin/internal/infrastructure/http/v1/handlers"
	"botiquin/internal/infrastructure/http/v1/middleware"
	"botiquin/pkg/logger"
)

// RouterConfig collects everything the router needs.
type RouterConfig struct {
	Logger      *logger.Logger
	JWTService  *auth.JWTService
	Movements   *handlers.MovementHandler
	Medications *handlers.MedicationHandler
	Patients    *handlers.PatientHandler
	Auth        *handlers.AuthHandler
	Health      *handlers.HealthHandler
}

// NewRouter builds the gin engine with all middleware and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	router.GET("/health/live", cfg.Health.Live)
	router.GET("/health/ready", cfg.Health.Ready)

	api := router.Group("/api/v1")

	// Public.
	api.POST("/auth/login", cfg.Auth.Login)

	// Authenticated.
	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.JWTService))
	{
		authed.GET("/auth/me", cfg.Auth.Me)
		authed.POST("/auth/change-password", cfg.Auth.ChangePassword)

		movements := authed.Group("/movements")
		{
			movements.POST("", cfg.Movements.Create)
			movements.GET("", cfg.Movements.List)
			movements.GET("/:id", cfg.Movements.GetByID)
			movements.GET("/folio/:folio", cfg.Movements.GetByFolio)
			movements.PUT("/:id", cfg.Movements.Update)
			movements.DELETE("/:id", middleware.RequireRole(string(auth.RoleAdmin)), cfg.Movements.Delete)
			movements.GET("/:id/history", middleware.RequireRole(string(auth.RoleAdmin)), cfg.Movements.History)
		}

		medications := authed.Group("/medications")
		{
			medications.POST("", cfg.Medications.Create)
			medications.GET("", cfg.Medications.List)
			medications.GET("/:id", cfg.Medications.GetByID)
			medications.PUT("/:id", cfg.Medications.Update)
			medications.DELETE("/:id", cfg.Medications.Delete)
		}

		patients := authed.Group("/patients")
		{
			patients.POST("", cfg.Patients.Create)
			patients.GET("", cfg.Patients.List)
			patients.GET("/:id", cfg.Patients.GetByID)
			patients.GET("/:id/prescriptions", cfg.Patients.Prescriptions)
			patients.PUT("/:id", cfg.Patients.Update)
			patients.DELETE("/:id", cfg.Patients.Delete)
		}

		admin := authed.Group("/auth")
		admin.Use(middleware.RequireRole(string(auth.RoleAdmin)))
		{
			admin.POST("/register", cfg.Auth.Register)
			admin.GET("/users", cfg.Auth.ListUsers)
			admin.DELETE("/users/:id", cfg.Auth.DeactivateUser)
		}
	}

	return router
}
