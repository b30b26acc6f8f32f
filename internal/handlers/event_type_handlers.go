package handlers

import (
	"net/http"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/services"
	"hospitex_portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// EventTypeHandler exposes the event type registry.
type EventTypeHandler struct {
	registry services.EventTypeRegistry
}

// NewEventTypeHandler creates a new EventTypeHandler.
func NewEventTypeHandler(registry services.EventTypeRegistry) *EventTypeHandler {
	return &EventTypeHandler{registry: registry}
}

// GetEventTypes lists the active event types.
func (h *EventTypeHandler) GetEventTypes(c *gin.Context) {
	types, err := h.registry.GetAll()
	if err != nil {
		respondServiceError(c, err, "GetEventTypes: Error from registry.GetAll", "Failed to fetch event types.")
		return
	}
	if types == nil {
		types = []models.EventType{}
	}
	c.JSON(http.StatusOK, gin.H{"data": types, "total": len(types)})
}

// ClearCache drops the cached event types so the next read hits the database.
func (h *EventTypeHandler) ClearCache(c *gin.Context) {
	h.registry.ClearCache()
	utils.LogInfo("Event type cache cleared", map[string]interface{}{"user_id": c.GetInt64("userID")})
	c.JSON(http.StatusOK, gin.H{"message": "Event type cache cleared."})
}
