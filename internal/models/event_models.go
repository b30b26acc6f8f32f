package models

import "time"

// Event is the generic append-only record of something happening to zero or
// more RFID-tagged items. EventTypeID is authoritative; EventType holds the
// code copied from the registry at insert time for display.
type Event struct {
	ID              int64         `json:"id" db:"id"`
	OrganizationID  int64         `json:"organization_id" db:"organization_id"`
	EventTypeID     int64         `json:"event_type_id" db:"event_type_id"`
	EventType       string        `json:"event_type" db:"event_type"`
	TemplateID      *int64        `json:"template_id,omitempty" db:"template_id"`
	FromUnitID      *int64        `json:"from_unit_id,omitempty" db:"from_unit_id"`
	ToUnitID        *int64        `json:"to_unit_id,omitempty" db:"to_unit_id"`
	ScannedByUnitID *int64        `json:"scanned_by_unit_id,omitempty" db:"scanned_by_unit_id"`
	Metadata        EventMetadata `json:"metadata"`
	EventAt         *time.Time    `json:"event_at,omitempty" db:"event_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	RFIDs           []string      `json:"rfids,omitempty"`
	Label           string        `json:"label,omitempty"` // resolved from the event type registry
}

// IsPending reports whether the event has not occurred yet. Only pending
// events may have their metadata patched or be deleted.
func (e *Event) IsPending() bool {
	return e.EventAt == nil
}

// RFIDTag tracks a physical tag independently of the article it is assigned to.
type RFIDTag struct {
	RFID         string     `json:"rfid" db:"rfid"`
	WashCount    int        `json:"wash_count" db:"wash_count"`
	FirstEventID *int64     `json:"first_event_id,omitempty" db:"first_event_id"`
	FirstEventAt *time.Time `json:"first_event_at,omitempty" db:"first_event_at"`
	LastEventID  *int64     `json:"last_event_id,omitempty" db:"last_event_id"`
	LastEventAt  *time.Time `json:"last_event_at,omitempty" db:"last_event_at"`
}

// EventTypeCount is one row of the per-type event statistics.
type EventTypeCount struct {
	EventTypeID int64  `json:"event_type_id"`
	Code        string `json:"code"`
	Label       string `json:"label"`
	Count       int    `json:"count"`
}

// EventFilters defines the available filters for querying events of an organization.
type EventFilters struct {
	EventTypeID *int64     `form:"event_type_id"`
	TemplateID  *int64     `form:"template_id"`
	UnitID      *int64     `form:"unit_id"` // matches from, to or scanned-by unit
	DateFrom    *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo      *time.Time `form:"date_to" time_format:"2006-01-02"`
	PendingOnly bool       `form:"pending_only"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}
