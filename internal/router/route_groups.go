package router

import (
	"hospitex_portal/internal/handlers"
	"hospitex_portal/internal/middleware"
	"hospitex_portal/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupPublicAuthRoutes sets up the routes reachable without a token.
func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.LoginUser)
}

// SetupAuthenticatedAuthRoutes sets up the auth routes that need a token.
// Users are registered by an Admin of the same organization.
func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.GET("/me", authHandler.GetCurrentUser)
	group.POST("/logout", authHandler.LogoutUser)
	group.POST("/register", middleware.RoleAuthMiddleware(models.RoleAdmin), authHandler.RegisterUser)
}

// SetupEventTypeRoutes sets up the event type routes.
func SetupEventTypeRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.EventTypeHandler) {
	eventTypeRoutes := authenticatedGroup.Group("/event-types")
	{
		eventTypeRoutes.GET("", h.GetEventTypes)
		eventTypeRoutes.POST("/cache/clear", middleware.RoleAuthMiddleware(models.RoleAdmin), h.ClearCache)
	}
}

// SetupEventTemplateRoutes sets up the event template routes.
func SetupEventTemplateRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.EventTemplateHandler, ie *handlers.ImportExportHandler) {
	templateRoutes := authenticatedGroup.Group("/event-templates")
	templateRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleStaff))
	{
		templateRoutes.POST("", h.CreateEventTemplate)
		templateRoutes.GET("", h.GetEventTemplates)
		templateRoutes.POST("/import", ie.ImportEventTemplates)
		templateRoutes.GET("/:id", h.GetEventTemplateByID)
		templateRoutes.PATCH("/:id", h.UpdateEventTemplate)
		templateRoutes.DELETE("/:id", h.DeleteEventTemplate)
	}
}

// SetupEventRoutes sets up the event and RFID routes.
func SetupEventRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.EventHandler) {
	eventRoutes := authenticatedGroup.Group("/events")
	eventRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleStaff))
	{
		eventRoutes.POST("", h.CreateEvent)
		eventRoutes.GET("", h.GetEvents)
		eventRoutes.POST("/from-template", h.CreateEventFromTemplate)
		eventRoutes.GET("/stats/by-type", h.GetEventStatsByType)
		eventRoutes.GET("/:id", h.GetEventByID)
		eventRoutes.PATCH("/:id/metadata", h.UpdateEventMetadata)
		eventRoutes.DELETE("/:id", h.DeleteEvent)
	}

	authenticatedGroup.GET("/rfids/:rfid", h.GetRFIDHistory)
}

// SetupShipmentRoutes sets up the shipment routes.
func SetupShipmentRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.ShipmentHandler, ie *handlers.ImportExportHandler) {
	shipmentRoutes := authenticatedGroup.Group("/shipments")
	shipmentRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleStaff))
	{
		shipmentRoutes.POST("", h.CreateShipment)
		shipmentRoutes.GET("", h.GetShipments)
		shipmentRoutes.POST("/import", ie.ImportShipments)
		shipmentRoutes.GET("/export", ie.ExportShipments)
		shipmentRoutes.POST("/export/archive", ie.ArchiveShipments)
		shipmentRoutes.GET("/:id", h.GetShipmentByID)
		shipmentRoutes.PATCH("/:id", h.UpdateShipment)
		shipmentRoutes.DELETE("/:id", h.DeleteShipment)
		shipmentRoutes.POST("/:id/ship", h.ShipShipment)
		shipmentRoutes.POST("/:id/receive", h.ReceiveShipment)
		shipmentRoutes.POST("/:id/cancel", h.CancelShipment)
	}
}

// SetupExportRoutes sets up the archived export routes.
func SetupExportRoutes(authenticatedGroup *gin.RouterGroup, ie *handlers.ImportExportHandler) {
	authenticatedGroup.GET("/exports", ie.GetExportArchives)
}
