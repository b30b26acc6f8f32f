package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"hospitex_portal/internal/blob"
	"hospitex_portal/internal/config"
	"hospitex_portal/internal/handlers"
	"hospitex_portal/internal/lock"
	"hospitex_portal/internal/metrics"
	"hospitex_portal/internal/middleware"
	"hospitex_portal/internal/repositories"
	"hospitex_portal/internal/services"
	"hospitex_portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Deps are the process-wide resources the routes are built from.
type Deps struct {
	DB      *sql.DB
	Config  *config.Config
	JWT     *utils.JWTManager
	Locker  lock.Locker
	Blob    blob.Store
	Metrics *metrics.Metrics
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Deps) {
	db := deps.DB

	// Initialize Repositories
	authRepo := repositories.NewAuthRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	eventTypeRepo := repositories.NewEventTypeRepository(db)
	templateRepo := repositories.NewEventTemplateRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	rfidRepo := repositories.NewRFIDRepository(db)
	shipmentRepo := repositories.NewShipmentRepository(db)
	txRunner := repositories.NewTxRunner(db)

	// Initialize Services
	registry := services.NewEventTypeRegistry(eventTypeRepo)
	authService := services.NewAuthService(authRepo, db, deps.JWT)
	templateService := services.NewEventTemplateService(templateRepo, orgRepo, registry, db)
	eventService := services.NewEventService(eventRepo, rfidRepo, templateRepo, orgRepo, registry, txRunner, db, deps.Metrics)
	shipmentService := services.NewShipmentService(shipmentRepo, orgRepo, deps.Locker, db, deps.Metrics)
	importService := services.NewImportService(shipmentService, templateService, registry, orgRepo, deps.Config.Import.MaxRows, deps.Metrics)
	exportService := services.NewExportService(shipmentService, deps.Blob)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	eventTypeHandler := handlers.NewEventTypeHandler(registry)
	templateHandler := handlers.NewEventTemplateHandler(templateService)
	eventHandler := handlers.NewEventHandler(eventService, registry)
	shipmentHandler := handlers.NewShipmentHandler(shipmentService)
	importExportHandler := handlers.NewImportExportHandler(importService, exportService)

	SetupSystemRoutes(engine, db, deps.Metrics)

	apiV1 := engine.Group("/api/v1")
	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(deps.JWT))
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupEventTypeRoutes(authenticated, eventTypeHandler)
		SetupEventTemplateRoutes(authenticated, templateHandler, importExportHandler)
		SetupEventRoutes(authenticated, eventHandler)
		SetupShipmentRoutes(authenticated, shipmentHandler, importExportHandler)
		SetupExportRoutes(authenticated, importExportHandler)
	}
}

// SetupSystemRoutes registers liveness, readiness and metrics endpoints.
func SetupSystemRoutes(engine *gin.Engine, db *sql.DB, m *metrics.Metrics) {
	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			utils.LogError(err, "Health check: database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	})
	if m != nil {
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
}
