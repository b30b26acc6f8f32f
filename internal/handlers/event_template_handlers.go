package handlers

import (
	"net/http"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/services"

	"github.com/gin-gonic/gin"
)

// EventTemplateHandler holds the template service.
type EventTemplateHandler struct {
	templateService services.EventTemplateService
}

// NewEventTemplateHandler creates a new EventTemplateHandler.
func NewEventTemplateHandler(ts services.EventTemplateService) *EventTemplateHandler {
	return &EventTemplateHandler{templateService: ts}
}

// CreateEventTemplate handles the creation of a template for the caller's organization.
func (h *EventTemplateHandler) CreateEventTemplate(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var req services.CreateEventTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "CreateEventTemplate")
		return
	}

	id, err := h.templateService.Create(who.OrganizationID, req.EventTypeID, req.Label, req.Options(who.UserID))
	if err != nil {
		respondServiceError(c, err, "CreateEventTemplate: Error from templateService.Create", "Failed to create event template.")
		return
	}
	template, err := h.templateService.FindByIDAndOrganization(id, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "CreateEventTemplate: Error reloading template", "Failed to load event template.")
		return
	}
	c.JSON(http.StatusCreated, template)
}

// GetEventTemplates lists the caller's templates, optionally only (non-)reusable ones.
func (h *EventTemplateHandler) GetEventTemplates(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var filters models.EventTemplateFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err, "GetEventTemplates")
		return
	}
	filters.Page, filters.PageSize = normalizePage(filters.Page, filters.PageSize)

	templates, total, err := h.templateService.FindByOrganization(who.OrganizationID, filters)
	if err != nil {
		respondServiceError(c, err, "GetEventTemplates: Error from templateService.FindByOrganization", "Failed to fetch event templates.")
		return
	}
	if templates == nil {
		templates = []models.EventTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      templates,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetEventTemplateByID fetches one template of the caller's organization.
func (h *EventTemplateHandler) GetEventTemplateByID(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	template, err := h.templateService.FindByIDAndOrganization(id, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetEventTemplateByID: Error from templateService.FindByIDAndOrganization", "Failed to fetch event template.")
		return
	}
	c.JSON(http.StatusOK, template)
}

// UpdateEventTemplate applies a partial update. Unknown keys are ignored.
func (h *EventTemplateHandler) UpdateEventTemplate(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondBindError(c, err, "UpdateEventTemplate")
		return
	}

	template, err := h.templateService.Update(id, who.OrganizationID, fields)
	if err != nil {
		respondServiceError(c, err, "UpdateEventTemplate: Error from templateService.Update", "Failed to update event template.")
		return
	}
	c.JSON(http.StatusOK, template)
}

// DeleteEventTemplate removes a template after checking it belongs to the caller.
func (h *EventTemplateHandler) DeleteEventTemplate(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.templateService.FindByIDAndOrganization(id, who.OrganizationID); err != nil {
		respondServiceError(c, err, "DeleteEventTemplate: Ownership check failed", "Failed to delete event template.")
		return
	}
	if err := h.templateService.Delete(id); err != nil {
		respondServiceError(c, err, "DeleteEventTemplate: Error from templateService.Delete", "Failed to delete event template.")
		return
	}
	c.Status(http.StatusNoContent)
}
