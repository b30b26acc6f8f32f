package models

// Well-known event type codes seeded by schema.sql.
const (
	EventTypeRegistration = "registration"
	EventTypeDelivery     = "delivery"
	EventTypeWash         = "wash"
	EventTypeInventory    = "inventory"
	EventTypeRepetitive   = "repetitive"
)

// EventType is reference data describing a kind of event.
type EventType struct {
	ID                  int64   `json:"id" db:"id"`
	Code                string  `json:"code" db:"code"`
	Name                string  `json:"name" db:"name"`
	NameEN              *string `json:"name_en,omitempty" db:"name_en"`
	IsTransfer          bool    `json:"is_transfer" db:"is_transfer"`
	IncrementsWashCount bool    `json:"increments_wash_count" db:"increments_wash_count"`
	SortOrder           int     `json:"sort_order" db:"sort_order"`
	IsActive            bool    `json:"is_active" db:"is_active"`
}

// Label is the human-readable name shown next to events of this type.
func (t EventType) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Code
}
