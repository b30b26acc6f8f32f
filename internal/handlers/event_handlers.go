package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/services"
	"hospitex_portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// CreateEventRequest DTO. The type is given by id or by code; metadata is
// decoded into the variant that belongs to the type.
type CreateEventRequest struct {
	EventTypeID     *int64          `json:"event_type_id"`
	EventTypeCode   string          `json:"event_type"`
	FromUnitID      *int64          `json:"from_unit_id"`
	ToUnitID        *int64          `json:"to_unit_id"`
	ScannedByUnitID *int64          `json:"scanned_by_unit_id"`
	Metadata        json.RawMessage `json:"metadata"`
	RFIDs           []string        `json:"rfids"`
	EventAt         *time.Time      `json:"event_at"`
	Pending         bool            `json:"pending"` // leave event_at empty
}

// CreateFromTemplateRequest DTO
type CreateFromTemplateRequest struct {
	TemplateID      int64          `json:"template_id" binding:"required"`
	ScannedByUnitID *int64         `json:"scanned_by_unit_id"`
	RFIDs           []string       `json:"rfids"`
	Metadata        map[string]any `json:"metadata"`
}

// EventHandler holds the event service and the registry used to pick metadata variants.
type EventHandler struct {
	eventService services.EventService
	registry     services.EventTypeRegistry
	now          func() time.Time
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(es services.EventService, registry services.EventTypeRegistry) *EventHandler {
	return &EventHandler{eventService: es, registry: registry, now: time.Now}
}

func (h *EventHandler) resolveType(req CreateEventRequest) (*models.EventType, error) {
	if req.EventTypeID != nil {
		return h.registry.FindByID(*req.EventTypeID)
	}
	code := strings.TrimSpace(req.EventTypeCode)
	if code == "" {
		return nil, errors.New("event_type_id or event_type is required")
	}
	return h.registry.FindByCode(code)
}

// CreateEvent records an event for the caller's organization.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "CreateEvent")
		return
	}

	eventType, err := h.resolveType(req)
	if err != nil {
		if errors.Is(err, services.ErrEventTypeNotFound) {
			respondServiceError(c, err, "CreateEvent: Unknown event type", "Failed to create event.")
			return
		}
		utils.RespondValidationFailed(c, err.Error())
		return
	}
	metadata, err := models.DecodeEventMetadata(models.MetadataKindFor(eventType.Code, false), req.Metadata)
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	eventAt := req.EventAt
	if eventAt == nil && !req.Pending {
		now := h.now()
		eventAt = &now
	}
	opts := services.EventOptions{
		FromUnitID:      req.FromUnitID,
		ToUnitID:        req.ToUnitID,
		ScannedByUnitID: req.ScannedByUnitID,
		Metadata:        metadata,
		EventAt:         eventAt,
	}

	event, err := h.eventService.CreateWithType(eventType.ID, who.OrganizationID, opts, req.RFIDs)
	if err != nil {
		respondServiceError(c, err, "CreateEvent: Error from eventService.CreateWithType", "Failed to create event.")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// CreateEventFromTemplate records an event pre-filled from one of the caller's templates.
func (h *EventHandler) CreateEventFromTemplate(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var req CreateFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "CreateEventFromTemplate")
		return
	}

	event, err := h.eventService.CreateFromTemplate(req.TemplateID, who.OrganizationID, req.ScannedByUnitID, req.RFIDs, req.Metadata)
	if err != nil {
		respondServiceError(c, err, "CreateEventFromTemplate: Error from eventService.CreateFromTemplate", "Failed to create event.")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GetEvents lists events of the caller's organization.
func (h *EventHandler) GetEvents(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var filters models.EventFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err, "GetEvents")
		return
	}
	filters.Page, filters.PageSize = normalizePage(filters.Page, filters.PageSize)

	events, total, err := h.eventService.FindByOrganization(who.OrganizationID, filters)
	if err != nil {
		respondServiceError(c, err, "GetEvents: Error from eventService.FindByOrganization", "Failed to fetch events.")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      events,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetEventByID fetches one event of the caller's organization.
func (h *EventHandler) GetEventByID(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	event, err := h.eventService.FindByID(id, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetEventByID: Error from eventService.FindByID", "Failed to fetch event.")
		return
	}
	c.JSON(http.StatusOK, event)
}

// UpdateEventMetadata replaces the metadata of a pending event. The body is
// decoded into the variant the event already carries.
func (h *EventHandler) UpdateEventMetadata(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		respondBindError(c, err, "UpdateEventMetadata")
		return
	}

	event, err := h.eventService.FindByID(id, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "UpdateEventMetadata: Error from eventService.FindByID", "Failed to update event.")
		return
	}
	kind := models.MetadataKindFor(event.EventType, event.TemplateID != nil)
	if event.Metadata != nil {
		kind = event.Metadata.Kind()
	}
	metadata, err := models.DecodeEventMetadata(kind, raw)
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	updated, err := h.eventService.UpdatePendingMetadata(id, who.OrganizationID, metadata)
	if err != nil {
		respondServiceError(c, err, "UpdateEventMetadata: Error from eventService.UpdatePendingMetadata", "Failed to update event.")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteEvent removes a pending event. Historical events are kept.
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.eventService.DeletePending(id, who.OrganizationID); err != nil {
		respondServiceError(c, err, "DeleteEvent: Error from eventService.DeletePending", "Failed to delete event.")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetEventStatsByType counts the caller's events per event type.
func (h *EventHandler) GetEventStatsByType(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}

	counts, err := h.eventService.CountByType(who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetEventStatsByType: Error from eventService.CountByType", "Failed to fetch event statistics.")
		return
	}
	if counts == nil {
		counts = []models.EventTypeCount{}
	}
	c.JSON(http.StatusOK, gin.H{"data": counts})
}

// GetRFIDHistory returns a tag's counters and the caller's events for it.
func (h *EventHandler) GetRFIDHistory(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	rfid := strings.TrimSpace(c.Param("rfid"))
	if rfid == "" {
		utils.RespondValidationFailed(c, "rfid is required")
		return
	}

	history, err := h.eventService.GetRFIDHistory(rfid, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetRFIDHistory: Error from eventService.GetRFIDHistory", "Failed to fetch RFID history.")
		return
	}
	c.JSON(http.StatusOK, history)
}
