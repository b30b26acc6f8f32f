package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospitex_portal/internal/models"
)

// ShipmentUpdatableFields is the allow-list applied to partial shipment edits.
// Status columns are changed only through UpdateShipmentStatus.
var ShipmentUpdatableFields = map[string]bool{
	"sales_order_id":    true,
	"purchase_order_id": true,
	"notes":             true,
	"metadata":          true,
	"from_unit_id":      true,
	"to_unit_id":        true,
}

// ShipmentRepository defines the database operations for shipments.
type ShipmentRepository interface {
	CountShipmentsCreatedInYear(executor SQLExecutor, year int) (int, error)
	CreateShipment(executor SQLExecutor, shipment *models.Shipment) (*models.Shipment, error)
	UpdatePreparedShipment(executor SQLExecutor, id int64, fields map[string]interface{}) (int64, error)
	UpdateShipmentStatus(executor SQLExecutor, id int64, to models.ShipmentStatus, userID int64, at time.Time) (int64, error)
	DeletePreparedShipment(executor SQLExecutor, id int64) (int64, error)
	FindShipmentByOrderIDs(fromOrgID, toOrgID int64, salesOrderID, purchaseOrderID *string) (*models.Shipment, error)
	GetShipmentByID(id int64) (*models.Shipment, error)
	GetShipmentsByOrganization(organizationID int64, filters models.ShipmentFilters) ([]models.Shipment, int, error)
}

type shipmentRepository struct {
	db *sql.DB
}

// NewShipmentRepository creates a new instance of ShipmentRepository.
func NewShipmentRepository(db *sql.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

const selectShipmentFields = `id, qr_code, from_org_id, to_org_id, from_unit_id, to_unit_id,
	sales_order_id, purchase_order_id, status, notes, metadata, created_by_user_id, created_at,
	shipped_at, shipped_by_user_id, received_at, received_by_user_id, cancelled_at, cancelled_by_user_id`

func scanShipment(row scanner, extra ...interface{}) (*models.Shipment, error) {
	var s models.Shipment
	var metadata []byte
	dest := []interface{}{
		&s.ID, &s.QRCode, &s.FromOrgID, &s.ToOrgID, &s.FromUnitID, &s.ToUnitID,
		&s.SalesOrderID, &s.PurchaseOrderID, &s.Status, &s.Notes, &metadata, &s.CreatedByUserID, &s.CreatedAt,
		&s.ShippedAt, &s.ShippedByUserID, &s.ReceivedAt, &s.ReceivedByUserID, &s.CancelledAt, &s.CancelledByUserID,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		s.Metadata = metadata
	}
	return &s, nil
}

// CountShipmentsCreatedInYear counts shipments whose created_at falls in the calendar year.
func (r *shipmentRepository) CountShipmentsCreatedInYear(executor SQLExecutor, year int) (int, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)
	var count int
	err := executor.QueryRow(
		`SELECT COUNT(*) FROM shipments WHERE created_at >= $1 AND created_at < $2`,
		start, start.AddDate(1, 0, 0),
	).Scan(&count)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("counting shipments of %d", year))
	}
	return count, nil
}

// CreateShipment inserts the row and lets the database assign the initial status.
func (r *shipmentRepository) CreateShipment(executor SQLExecutor, shipment *models.Shipment) (*models.Shipment, error) {
	query := `INSERT INTO shipments
	            (qr_code, from_org_id, to_org_id, from_unit_id, to_unit_id, sales_order_id, purchase_order_id,
	             notes, metadata, created_by_user_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id, status, created_at`

	err := executor.QueryRow(query,
		shipment.QRCode, shipment.FromOrgID, shipment.ToOrgID, shipment.FromUnitID, shipment.ToUnitID,
		shipment.SalesOrderID, shipment.PurchaseOrderID, shipment.Notes, jsonParam(shipment.Metadata),
		shipment.CreatedByUserID, time.Now(),
	).Scan(&shipment.ID, &shipment.Status, &shipment.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err, "creating shipment")
	}
	return shipment, nil
}

// UpdatePreparedShipment applies the allow-listed entries of fields to a
// shipment that is still prepared and returns the number of rows affected.
func (r *shipmentRepository) UpdatePreparedShipment(executor SQLExecutor, id int64, fields map[string]interface{}) (int64, error) {
	setClauses, args := buildSetClause(fields, ShipmentUpdatableFields, 1)
	if len(setClauses) == 0 {
		return 0, ErrNoFieldsToUpdate
	}
	args = append(args, id, string(models.ShipmentStatusPrepared))
	query := fmt.Sprintf("UPDATE shipments SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setClauses, ", "), len(args)-1, len(args))

	result, err := executor.Exec(query, args...)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("updating shipment ID %d", id))
	}
	return result.RowsAffected()
}

// statusActorColumns maps a target status to its timestamp and actor columns.
var statusActorColumns = map[models.ShipmentStatus][2]string{
	models.ShipmentStatusShipped:   {"shipped_at", "shipped_by_user_id"},
	models.ShipmentStatusReceived:  {"received_at", "received_by_user_id"},
	models.ShipmentStatusCancelled: {"cancelled_at", "cancelled_by_user_id"},
}

// UpdateShipmentStatus moves a shipment to status to, stamping the actor and
// time. The statement only matches rows in a status allowed to reach to, so
// an illegal transition affects zero rows.
func (r *shipmentRepository) UpdateShipmentStatus(executor SQLExecutor, id int64, to models.ShipmentStatus, userID int64, at time.Time) (int64, error) {
	cols, ok := statusActorColumns[to]
	from := models.AllowedFromStatuses(to)
	if !ok || len(from) == 0 {
		return 0, fmt.Errorf("%w: no transition into status %q", ErrDatabaseError, to)
	}

	args := []interface{}{string(to), at, userID, id}
	placeholders := make([]string, 0, len(from))
	for _, s := range from {
		args = append(args, string(s))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE shipments SET status = $1, %s = $2, %s = $3
	          WHERE id = $4 AND status IN (%s)`, cols[0], cols[1], strings.Join(placeholders, ", "))

	result, err := executor.Exec(query, args...)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("setting status %s on shipment ID %d", to, id))
	}
	return result.RowsAffected()
}

// DeletePreparedShipment deletes the shipment only while it is prepared and
// returns the number of rows affected (0 or 1). Zero is not an error.
func (r *shipmentRepository) DeletePreparedShipment(executor SQLExecutor, id int64) (int64, error) {
	result, err := executor.Exec(`DELETE FROM shipments WHERE id = $1 AND status = $2`, id, string(models.ShipmentStatusPrepared))
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("deleting shipment ID %d", id))
	}
	return result.RowsAffected()
}

// FindShipmentByOrderIDs is the import de-duplication lookup. It matches both
// order id columns exactly (NULL matches NULL) and returns nil, nil when no
// shipment matches or when both order ids are nil.
func (r *shipmentRepository) FindShipmentByOrderIDs(fromOrgID, toOrgID int64, salesOrderID, purchaseOrderID *string) (*models.Shipment, error) {
	if salesOrderID == nil && purchaseOrderID == nil {
		return nil, nil
	}
	query := "SELECT " + selectShipmentFields + ` FROM shipments
	          WHERE from_org_id = $1 AND to_org_id = $2
	            AND sales_order_id IS NOT DISTINCT FROM $3::varchar
	            AND purchase_order_id IS NOT DISTINCT FROM $4::varchar
	          ORDER BY created_at DESC, id DESC
	          LIMIT 1`

	shipment, err := scanShipment(r.db.QueryRow(query, fromOrgID, toOrgID, salesOrderID, purchaseOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError(err, "finding shipment by order IDs")
	}
	return shipment, nil
}

func (r *shipmentRepository) GetShipmentByID(id int64) (*models.Shipment, error) {
	shipment, err := scanShipment(r.db.QueryRow("SELECT "+selectShipmentFields+" FROM shipments WHERE id = $1", id))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting shipment ID %d", id))
	}
	return shipment, nil
}

func (r *shipmentRepository) GetShipmentsByOrganization(organizationID int64, filters models.ShipmentFilters) ([]models.Shipment, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + selectShipmentFields + ", COUNT(*) OVER() AS total_count FROM shipments")

	var conditions []string
	args := []interface{}{organizationID}
	argCount := 2

	switch filters.Direction {
	case models.ShipmentDirectionIncoming:
		conditions = append(conditions, "to_org_id = $1")
	case models.ShipmentDirectionOutgoing:
		conditions = append(conditions, "from_org_id = $1")
	default:
		conditions = append(conditions, "(from_org_id = $1 OR to_org_id = $1)")
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argCount))
		args = append(args, *filters.DateFrom)
		argCount++
	}
	if filters.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argCount))
		args = append(args, filters.DateTo.AddDate(0, 0, 1))
		argCount++
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filters.PageSize > 0 {
		limit, offset := pageBounds(filters.Page, filters.PageSize)
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "querying shipments")
	}
	defer rows.Close()

	shipments := []models.Shipment{}
	totalCount := 0
	for rows.Next() {
		shipment, scanErr := scanShipment(rows, &totalCount)
		if scanErr != nil {
			return nil, 0, wrapDBError(scanErr, "scanning shipment")
		}
		shipments = append(shipments, *shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError(err, "iterating shipment rows")
	}
	return shipments, totalCount, nil
}
