package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hospitex_portal/internal/models"
)

// EventTemplateUpdatableFields is the allow-list applied to partial template updates.
var EventTemplateUpdatableFields = map[string]bool{
	"event_type_id":  true,
	"label":          true,
	"unit_id":        true,
	"target_unit_id": true,
	"is_reusable":    true,
	"notes":          true,
}

// EventTemplateRepository defines the database operations for event templates.
type EventTemplateRepository interface {
	CreateEventTemplate(executor SQLExecutor, tpl *models.EventTemplate) (int64, error)
	UpdateEventTemplate(executor SQLExecutor, id int64, fields map[string]interface{}) error
	DeleteEventTemplate(executor SQLExecutor, id int64) error
	FindEventTemplateByIDAndOrganization(id, organizationID int64) (*models.EventTemplate, error)
	FindEventTemplatesByOrganization(organizationID int64, isReusable *bool, limit, offset int) ([]models.EventTemplate, int, error)
}

type eventTemplateRepository struct {
	db *sql.DB
}

// NewEventTemplateRepository creates a new instance of EventTemplateRepository.
func NewEventTemplateRepository(db *sql.DB) EventTemplateRepository {
	return &eventTemplateRepository{db: db}
}

const selectEventTemplateFields = `id, organization_id, event_type_id, label, unit_id, target_unit_id,
	is_reusable, notes, created_by_user_id, created_at`

func scanEventTemplate(row scanner, extra ...interface{}) (*models.EventTemplate, error) {
	var tpl models.EventTemplate
	dest := []interface{}{
		&tpl.ID, &tpl.OrganizationID, &tpl.EventTypeID, &tpl.Label, &tpl.UnitID, &tpl.TargetUnitID,
		&tpl.IsReusable, &tpl.Notes, &tpl.CreatedByUserID, &tpl.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *eventTemplateRepository) CreateEventTemplate(executor SQLExecutor, tpl *models.EventTemplate) (int64, error) {
	query := `INSERT INTO event_templates
	            (organization_id, event_type_id, label, unit_id, target_unit_id, is_reusable, notes, created_by_user_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id, created_at`

	err := executor.QueryRow(query,
		tpl.OrganizationID, tpl.EventTypeID, tpl.Label, tpl.UnitID, tpl.TargetUnitID,
		tpl.IsReusable, tpl.Notes, tpl.CreatedByUserID, time.Now(),
	).Scan(&tpl.ID, &tpl.CreatedAt)
	if err != nil {
		return 0, wrapDBError(err, "creating event template")
	}
	return tpl.ID, nil
}

// UpdateEventTemplate applies the allow-listed entries of fields. Unknown keys
// are ignored; if nothing remains ErrNoFieldsToUpdate is returned.
func (r *eventTemplateRepository) UpdateEventTemplate(executor SQLExecutor, id int64, fields map[string]interface{}) error {
	setClauses, args := buildSetClause(fields, EventTemplateUpdatableFields, 1)
	if len(setClauses) == 0 {
		return ErrNoFieldsToUpdate
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE event_templates SET %s WHERE id = $%d", strings.Join(setClauses, ", "), len(args))

	result, err := executor.Exec(query, args...)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("updating event template ID %d", id))
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEventTemplate removes the template unconditionally; ownership is the caller's concern.
func (r *eventTemplateRepository) DeleteEventTemplate(executor SQLExecutor, id int64) error {
	result, err := executor.Exec(`DELETE FROM event_templates WHERE id = $1`, id)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("deleting event template ID %d", id))
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventTemplateRepository) FindEventTemplateByIDAndOrganization(id, organizationID int64) (*models.EventTemplate, error) {
	query := "SELECT " + selectEventTemplateFields + " FROM event_templates WHERE id = $1 AND organization_id = $2"
	tpl, err := scanEventTemplate(r.db.QueryRow(query, id, organizationID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding event template ID %d", id))
	}
	return tpl, nil
}

func (r *eventTemplateRepository) FindEventTemplatesByOrganization(organizationID int64, isReusable *bool, limit, offset int) ([]models.EventTemplate, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + selectEventTemplateFields + ", COUNT(*) OVER() AS total_count FROM event_templates WHERE organization_id = $1")
	args := []interface{}{organizationID}

	if isReusable != nil {
		args = append(args, *isReusable)
		queryBuilder.WriteString(fmt.Sprintf(" AND is_reusable = $%d", len(args)))
	}
	queryBuilder.WriteString(" ORDER BY label, id")
	if limit > 0 {
		args = append(args, limit)
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
		if offset > 0 {
			args = append(args, offset)
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "querying event templates")
	}
	defer rows.Close()

	templates := []models.EventTemplate{}
	totalCount := 0
	for rows.Next() {
		tpl, scanErr := scanEventTemplate(rows, &totalCount)
		if scanErr != nil {
			return nil, 0, wrapDBError(scanErr, "scanning event template")
		}
		templates = append(templates, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError(err, "iterating event template rows")
	}
	return templates, totalCount, nil
}
