package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hospitex_portal/internal/models"

	"github.com/lib/pq"
)

// EventRepository defines the database operations for generic events.
// Metadata is decoded into its typed variant at this boundary.
type EventRepository interface {
	CreateEvent(executor SQLExecutor, event *models.Event) (int64, error)
	GetEventByID(id, organizationID int64) (*models.Event, error)
	GetEventsByOrganization(organizationID int64, filters models.EventFilters) ([]models.Event, int, error)
	GetEventsByRFID(rfid string, organizationID int64) ([]models.Event, error)
	GetEventRFIDs(eventIDs []int64) (map[int64][]string, error)
	CountEventsByType(organizationID int64) ([]models.EventTypeCount, error)
	UpdatePendingEventMetadata(executor SQLExecutor, id, organizationID int64, metadata models.EventMetadata) (int64, error)
	DeletePendingEvent(executor SQLExecutor, id, organizationID int64) (int64, error)
}

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const selectEventFields = `e.id, e.organization_id, e.event_type_id, e.event_type, e.template_id,
	e.from_unit_id, e.to_unit_id, e.scanned_by_unit_id, e.metadata_kind, e.metadata, e.event_at, e.created_at`

func scanEvent(row scanner, extra ...interface{}) (*models.Event, error) {
	var event models.Event
	var kind string
	var rawMetadata []byte
	dest := []interface{}{
		&event.ID, &event.OrganizationID, &event.EventTypeID, &event.EventType, &event.TemplateID,
		&event.FromUnitID, &event.ToUnitID, &event.ScannedByUnitID, &kind, &rawMetadata, &event.EventAt, &event.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	// the stored kind survives template deletion nulling template_id
	metadata, err := models.DecodeEventMetadata(kind, rawMetadata)
	if err != nil {
		return nil, fmt.Errorf("%w: event ID %d: %v", ErrDatabaseError, event.ID, err)
	}
	event.Metadata = metadata
	return &event, nil
}

func (r *eventRepository) CreateEvent(executor SQLExecutor, event *models.Event) (int64, error) {
	query := `INSERT INTO events
	            (organization_id, event_type_id, event_type, template_id, from_unit_id, to_unit_id,
	             scanned_by_unit_id, metadata_kind, metadata, event_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id, created_at`

	kind, metadata, err := encodeMetadata(event.Metadata)
	if err != nil {
		return 0, err
	}
	err = executor.QueryRow(query,
		event.OrganizationID, event.EventTypeID, event.EventType, event.TemplateID, event.FromUnitID,
		event.ToUnitID, event.ScannedByUnitID, kind, metadata, event.EventAt, time.Now(),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return 0, wrapDBError(err, "creating event")
	}
	return event.ID, nil
}

func encodeMetadata(metadata models.EventMetadata) (string, string, error) {
	kind := models.MetadataKindGeneric
	if metadata != nil {
		kind = metadata.Kind()
	}
	raw, err := models.EncodeEventMetadata(metadata)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return kind, string(raw), nil
}

func (r *eventRepository) GetEventByID(id, organizationID int64) (*models.Event, error) {
	query := "SELECT " + selectEventFields + " FROM events e WHERE e.id = $1 AND e.organization_id = $2"
	event, err := scanEvent(r.db.QueryRow(query, id, organizationID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting event ID %d", id))
	}
	return event, nil
}

func (r *eventRepository) GetEventsByOrganization(organizationID int64, filters models.EventFilters) ([]models.Event, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + selectEventFields + ", COUNT(*) OVER() AS total_count FROM events e")

	conditions := []string{"e.organization_id = $1"}
	args := []interface{}{organizationID}
	argCount := 2

	if filters.EventTypeID != nil {
		conditions = append(conditions, fmt.Sprintf("e.event_type_id = $%d", argCount))
		args = append(args, *filters.EventTypeID)
		argCount++
	}
	if filters.TemplateID != nil {
		conditions = append(conditions, fmt.Sprintf("e.template_id = $%d", argCount))
		args = append(args, *filters.TemplateID)
		argCount++
	}
	if filters.UnitID != nil {
		conditions = append(conditions, fmt.Sprintf("(e.from_unit_id = $%d OR e.to_unit_id = $%d OR e.scanned_by_unit_id = $%d)", argCount, argCount, argCount))
		args = append(args, *filters.UnitID)
		argCount++
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("e.created_at >= $%d", argCount))
		args = append(args, *filters.DateFrom)
		argCount++
	}
	if filters.DateTo != nil {
		// inclusive of the whole end day
		conditions = append(conditions, fmt.Sprintf("e.created_at < $%d", argCount))
		args = append(args, filters.DateTo.AddDate(0, 0, 1))
		argCount++
	}
	if filters.PendingOnly {
		conditions = append(conditions, "e.event_at IS NULL")
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY e.created_at DESC, e.id DESC")

	if filters.PageSize > 0 {
		limit, offset := pageBounds(filters.Page, filters.PageSize)
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "querying events")
	}
	defer rows.Close()

	events := []models.Event{}
	totalCount := 0
	for rows.Next() {
		event, scanErr := scanEvent(rows, &totalCount)
		if scanErr != nil {
			return nil, 0, wrapDBError(scanErr, "scanning event")
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError(err, "iterating event rows")
	}
	return events, totalCount, nil
}

func (r *eventRepository) GetEventsByRFID(rfid string, organizationID int64) ([]models.Event, error) {
	query := "SELECT " + selectEventFields + `
		FROM events e
		JOIN event_rfids er ON er.event_id = e.id
		WHERE er.rfid = $1 AND e.organization_id = $2
		ORDER BY e.created_at DESC, e.id DESC`

	rows, err := r.db.Query(query, rfid, organizationID)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("querying events for RFID %s", rfid))
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, wrapDBError(scanErr, "scanning event")
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterating event rows")
	}
	return events, nil
}

// GetEventRFIDs returns the linked tags per event id.
func (r *eventRepository) GetEventRFIDs(eventIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(`SELECT event_id, rfid FROM event_rfids WHERE event_id = ANY($1) ORDER BY event_id, rfid`, pq.Array(eventIDs))
	if err != nil {
		return nil, wrapDBError(err, "querying event RFIDs")
	}
	defer rows.Close()

	for rows.Next() {
		var eventID int64
		var rfid string
		if err := rows.Scan(&eventID, &rfid); err != nil {
			return nil, wrapDBError(err, "scanning event RFID")
		}
		result[eventID] = append(result[eventID], rfid)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterating event RFID rows")
	}
	return result, nil
}

func (r *eventRepository) CountEventsByType(organizationID int64) ([]models.EventTypeCount, error) {
	query := `SELECT e.event_type_id, MAX(e.event_type), COUNT(*)
	          FROM events e
	          WHERE e.organization_id = $1
	          GROUP BY e.event_type_id
	          ORDER BY COUNT(*) DESC, e.event_type_id`

	rows, err := r.db.Query(query, organizationID)
	if err != nil {
		return nil, wrapDBError(err, "counting events by type")
	}
	defer rows.Close()

	counts := []models.EventTypeCount{}
	for rows.Next() {
		var c models.EventTypeCount
		if err := rows.Scan(&c.EventTypeID, &c.Code, &c.Count); err != nil {
			return nil, wrapDBError(err, "scanning event type count")
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterating event type counts")
	}
	return counts, nil
}

// UpdatePendingEventMetadata replaces the metadata of a pending event and
// returns the number of rows affected (0 when missing, foreign or historical).
func (r *eventRepository) UpdatePendingEventMetadata(executor SQLExecutor, id, organizationID int64, metadata models.EventMetadata) (int64, error) {
	kind, raw, err := encodeMetadata(metadata)
	if err != nil {
		return 0, err
	}
	result, err := executor.Exec(
		`UPDATE events SET metadata_kind = $1, metadata = $2 WHERE id = $3 AND organization_id = $4 AND event_at IS NULL`,
		kind, raw, id, organizationID,
	)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("updating metadata of event ID %d", id))
	}
	return result.RowsAffected()
}

// DeletePendingEvent deletes a pending event and returns the number of rows affected.
func (r *eventRepository) DeletePendingEvent(executor SQLExecutor, id, organizationID int64) (int64, error) {
	result, err := executor.Exec(
		`DELETE FROM events WHERE id = $1 AND organization_id = $2 AND event_at IS NULL`,
		id, organizationID,
	)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("deleting event ID %d", id))
	}
	return result.RowsAffected()
}
