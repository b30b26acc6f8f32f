package repositories

import (
	"database/sql"

	"hospitex_portal/internal/models"
)

// EventTypeRepository reads the event type reference table.
type EventTypeRepository interface {
	GetActiveEventTypes() ([]models.EventType, error)
}

type eventTypeRepository struct {
	db *sql.DB
}

// NewEventTypeRepository creates a new instance of EventTypeRepository.
func NewEventTypeRepository(db *sql.DB) EventTypeRepository {
	return &eventTypeRepository{db: db}
}

// GetActiveEventTypes returns every active type ordered by sort_order, then name.
func (r *eventTypeRepository) GetActiveEventTypes() ([]models.EventType, error) {
	query := `SELECT id, code, name, name_en, is_transfer, increments_wash_count, sort_order, is_active
	          FROM event_types
	          WHERE is_active = TRUE
	          ORDER BY sort_order, name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, wrapDBError(err, "querying event types")
	}
	defer rows.Close()

	types := []models.EventType{}
	for rows.Next() {
		var et models.EventType
		if err := rows.Scan(&et.ID, &et.Code, &et.Name, &et.NameEN, &et.IsTransfer,
			&et.IncrementsWashCount, &et.SortOrder, &et.IsActive); err != nil {
			return nil, wrapDBError(err, "scanning event type")
		}
		types = append(types, et)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterating event type rows")
	}
	return types, nil
}
