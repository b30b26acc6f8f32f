package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"hospitex_portal/internal/models"
)

// RFIDRepository maintains the per-tag counters and the event/tag links.
type RFIDRepository interface {
	// TouchTag records that eventID involved the tag: the last-event pointer is
	// always overwritten, the first-event pointer is written only once and the
	// wash counter grows by one when incrementWash is set.
	TouchTag(executor SQLExecutor, rfid string, eventID int64, eventAt time.Time, incrementWash bool) error
	LinkEventRFID(executor SQLExecutor, eventID int64, rfid string) error
	GetTag(rfid string) (*models.RFIDTag, error)
}

type rfidRepository struct {
	db *sql.DB
}

// NewRFIDRepository creates a new instance of RFIDRepository.
func NewRFIDRepository(db *sql.DB) RFIDRepository {
	return &rfidRepository{db: db}
}

func (r *rfidRepository) TouchTag(executor SQLExecutor, rfid string, eventID int64, eventAt time.Time, incrementWash bool) error {
	// first_event_at is the write-once marker; first_event_id may be nulled
	// by a pending-event delete without reopening the slot.
	query := `INSERT INTO rfid_tags (rfid, wash_count, first_event_id, first_event_at, last_event_id, last_event_at)
	          VALUES ($1, $2, $3, $4, $3, $4)
	          ON CONFLICT (rfid) DO UPDATE SET
	            wash_count     = rfid_tags.wash_count + EXCLUDED.wash_count,
	            first_event_id = CASE WHEN rfid_tags.first_event_at IS NULL THEN EXCLUDED.first_event_id ELSE rfid_tags.first_event_id END,
	            first_event_at = COALESCE(rfid_tags.first_event_at, EXCLUDED.first_event_at),
	            last_event_id  = EXCLUDED.last_event_id,
	            last_event_at  = EXCLUDED.last_event_at`

	washDelta := 0
	if incrementWash {
		washDelta = 1
	}
	if _, err := executor.Exec(query, rfid, washDelta, eventID, eventAt); err != nil {
		return wrapDBError(err, fmt.Sprintf("updating RFID tag %s", rfid))
	}
	return nil
}

func (r *rfidRepository) LinkEventRFID(executor SQLExecutor, eventID int64, rfid string) error {
	if _, err := executor.Exec(`INSERT INTO event_rfids (event_id, rfid) VALUES ($1, $2)`, eventID, rfid); err != nil {
		return wrapDBError(err, fmt.Sprintf("linking RFID %s to event ID %d", rfid, eventID))
	}
	return nil
}

func (r *rfidRepository) GetTag(rfid string) (*models.RFIDTag, error) {
	tag := &models.RFIDTag{}
	err := r.db.QueryRow(
		`SELECT rfid, wash_count, first_event_id, first_event_at, last_event_id, last_event_at FROM rfid_tags WHERE rfid = $1`,
		rfid,
	).Scan(&tag.RFID, &tag.WashCount, &tag.FirstEventID, &tag.FirstEventAt, &tag.LastEventID, &tag.LastEventAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting RFID tag %s", rfid))
	}
	return tag, nil
}
