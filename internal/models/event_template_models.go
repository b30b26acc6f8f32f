package models

import "time"

// EventTemplate is a saved preset used to pre-fill recurring event creation.
// A template with IsReusable=false is consumed by its first use.
type EventTemplate struct {
	ID              int64     `json:"id" db:"id"`
	OrganizationID  int64     `json:"organization_id" db:"organization_id"`
	EventTypeID     int64     `json:"event_type_id" db:"event_type_id"`
	Label           string    `json:"label" db:"label"`
	UnitID          *int64    `json:"unit_id,omitempty" db:"unit_id"`
	TargetUnitID    *int64    `json:"target_unit_id,omitempty" db:"target_unit_id"`
	IsReusable      bool      `json:"is_reusable" db:"is_reusable"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	CreatedByUserID *int64    `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// EventTemplateFilters defines the filters for listing templates of an organization.
type EventTemplateFilters struct {
	IsReusable *bool `form:"is_reusable"`
	Page       int   `form:"page"`
	PageSize   int   `form:"page_size"`
}
