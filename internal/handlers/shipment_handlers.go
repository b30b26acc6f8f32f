package handlers

import (
	"net/http"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/services"

	"github.com/gin-gonic/gin"
)

// ShipmentHandler holds the shipment service.
type ShipmentHandler struct {
	shipmentService services.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(ss services.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipmentService: ss}
}

// CreateShipment prepares a shipment sent by the caller's organization.
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var req services.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "CreateShipment")
		return
	}

	shipment, err := h.shipmentService.Create(c.Request.Context(), who.OrganizationID, req.ToOrgID, req.Options(who.UserID))
	if err != nil {
		respondServiceError(c, err, "CreateShipment: Error from shipmentService.Create", "Failed to create shipment.")
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

// GetShipments lists incoming and/or outgoing shipments of the caller's organization.
func (h *ShipmentHandler) GetShipments(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var filters models.ShipmentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err, "GetShipments")
		return
	}
	filters.Page, filters.PageSize = normalizePage(filters.Page, filters.PageSize)

	shipments, total, err := h.shipmentService.FindByOrganization(who.OrganizationID, filters)
	if err != nil {
		respondServiceError(c, err, "GetShipments: Error from shipmentService.FindByOrganization", "Failed to fetch shipments.")
		return
	}
	if shipments == nil {
		shipments = []models.Shipment{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      shipments,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetShipmentByID fetches a shipment the caller's organization takes part in.
func (h *ShipmentHandler) GetShipmentByID(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	shipment, err := h.shipmentService.FindByID(id, who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetShipmentByID: Error from shipmentService.FindByID", "Failed to fetch shipment.")
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// UpdateShipment applies a partial update to a prepared shipment.
func (h *ShipmentHandler) UpdateShipment(c *gin.Context) {
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
		respondBindError(c, err, "UpdateShipment")
		return
	}

	shipment, err := h.shipmentService.Update(id, who.OrganizationID, fields)
	if err != nil {
		respondServiceError(c, err, "UpdateShipment: Error from shipmentService.Update", "Failed to update shipment.")
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// DeleteShipment removes a shipment that has not left the sender yet.
func (h *ShipmentHandler) DeleteShipment(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.shipmentService.Delete(id, who.OrganizationID); err != nil {
		respondServiceError(c, err, "DeleteShipment: Error from shipmentService.Delete", "Failed to delete shipment.")
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionFunc func(id, orgID, userID int64) (*models.Shipment, error)

func (h *ShipmentHandler) transition(c *gin.Context, action string, fn transitionFunc) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	shipment, err := fn(id, who.OrganizationID, who.UserID)
	if err != nil {
		respondServiceError(c, err, action+": Error from shipmentService", "Failed to update shipment status.")
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// ShipShipment marks a prepared shipment as shipped. Sender only.
func (h *ShipmentHandler) ShipShipment(c *gin.Context) {
	h.transition(c, "ShipShipment", h.shipmentService.MarkAsShipped)
}

// ReceiveShipment marks a shipped shipment as received. Receiver only.
func (h *ShipmentHandler) ReceiveShipment(c *gin.Context) {
	h.transition(c, "ReceiveShipment", h.shipmentService.MarkAsReceived)
}

// CancelShipment cancels a prepared or shipped shipment. Sender only.
func (h *ShipmentHandler) CancelShipment(c *gin.Context) {
	h.transition(c, "CancelShipment", h.shipmentService.Cancel)
}
