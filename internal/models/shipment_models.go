package models

import (
	"encoding/json"
	"time"
)

// ShipmentStatus defines the lifecycle states of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusPrepared  ShipmentStatus = "prepared"
	ShipmentStatusShipped   ShipmentStatus = "shipped"
	ShipmentStatusReceived  ShipmentStatus = "received"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

// shipmentTransitions lists, per target status, the statuses it may be reached from.
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentStatusShipped:   {ShipmentStatusPrepared},
	ShipmentStatusReceived:  {ShipmentStatusShipped},
	ShipmentStatusCancelled: {ShipmentStatusPrepared, ShipmentStatusShipped},
}

// IsValidShipmentStatus checks if the provided status string is a valid ShipmentStatus.
func IsValidShipmentStatus(status string) bool {
	switch ShipmentStatus(status) {
	case ShipmentStatusPrepared,
		ShipmentStatusShipped,
		ShipmentStatusReceived,
		ShipmentStatusCancelled:
		return true
	default:
		return false
	}
}

// AllowedFromStatuses returns the statuses from which target may be entered.
// Nothing transitions into prepared.
func AllowedFromStatuses(target ShipmentStatus) []ShipmentStatus {
	return shipmentTransitions[target]
}

// CanTransition reports whether a shipment in status from may move to to.
func CanTransition(from, to ShipmentStatus) bool {
	for _, s := range shipmentTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave s.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusReceived || s == ShipmentStatusCancelled
}

// Shipment is a bilateral transfer record between two organizations.
type Shipment struct {
	ID                int64           `json:"id" db:"id"`
	QRCode            string          `json:"qr_code" db:"qr_code"`
	FromOrgID         int64           `json:"from_org_id" db:"from_org_id"`
	ToOrgID           int64           `json:"to_org_id" db:"to_org_id"`
	FromUnitID        *int64          `json:"from_unit_id,omitempty" db:"from_unit_id"`
	ToUnitID          *int64          `json:"to_unit_id,omitempty" db:"to_unit_id"`
	SalesOrderID      *string         `json:"sales_order_id,omitempty" db:"sales_order_id"`
	PurchaseOrderID   *string         `json:"purchase_order_id,omitempty" db:"purchase_order_id"`
	Status            ShipmentStatus  `json:"status" db:"status"`
	Notes             *string         `json:"notes,omitempty" db:"notes"`
	Metadata          json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedByUserID   *int64          `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty" db:"shipped_at"`
	ShippedByUserID   *int64          `json:"shipped_by_user_id,omitempty" db:"shipped_by_user_id"`
	ReceivedAt        *time.Time      `json:"received_at,omitempty" db:"received_at"`
	ReceivedByUserID  *int64          `json:"received_by_user_id,omitempty" db:"received_by_user_id"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledByUserID *int64          `json:"cancelled_by_user_id,omitempty" db:"cancelled_by_user_id"`
}

// Involves reports whether orgID is the sender or the receiver.
func (s *Shipment) Involves(orgID int64) bool {
	return s.FromOrgID == orgID || s.ToOrgID == orgID
}

// Shipment list directions relative to the requesting organization.
const (
	ShipmentDirectionAll      = "all"
	ShipmentDirectionIncoming = "incoming"
	ShipmentDirectionOutgoing = "outgoing"
)

// ShipmentFilters defines the available filters for querying shipments.
type ShipmentFilters struct {
	Direction string     `form:"direction"` // all (default), incoming, outgoing
	Status    *string    `form:"status"`
	DateFrom  *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo    *time.Time `form:"date_to" time_format:"2006-01-02"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}
