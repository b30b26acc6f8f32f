package repositories

import (
	"database/sql"
	"fmt"

	"hospitex_portal/internal/models"
)

// OrganizationRepository resolves tenants and their units.
type OrganizationRepository interface {
	GetOrganizationByID(id int64) (*models.Organization, error)
	FindOrganizationByName(name string) (*models.Organization, error) // case-insensitive
	GetUnitByID(id int64) (*models.Unit, error)
	FindUnitByName(organizationID int64, name string) (*models.Unit, error) // case-insensitive
}

type organizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new instance of OrganizationRepository.
func NewOrganizationRepository(db *sql.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) GetOrganizationByID(id int64) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`SELECT id, name, is_operator, created_at FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.IsOperator, &org.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting organization ID %d", id))
	}
	return org, nil
}

func (r *organizationRepository) FindOrganizationByName(name string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`SELECT id, name, is_operator, created_at FROM organizations WHERE LOWER(name) = LOWER($1)`, name).
		Scan(&org.ID, &org.Name, &org.IsOperator, &org.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding organization %q", name))
	}
	return org, nil
}

func (r *organizationRepository) GetUnitByID(id int64) (*models.Unit, error) {
	unit := &models.Unit{}
	err := r.db.QueryRow(`SELECT id, organization_id, name, created_at FROM units WHERE id = $1`, id).
		Scan(&unit.ID, &unit.OrganizationID, &unit.Name, &unit.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting unit ID %d", id))
	}
	return unit, nil
}

func (r *organizationRepository) FindUnitByName(organizationID int64, name string) (*models.Unit, error) {
	unit := &models.Unit{}
	err := r.db.QueryRow(
		`SELECT id, organization_id, name, created_at FROM units WHERE organization_id = $1 AND LOWER(name) = LOWER($2)`,
		organizationID, name,
	).Scan(&unit.ID, &unit.OrganizationID, &unit.Name, &unit.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding unit %q of organization %d", name, organizationID))
	}
	return unit, nil
}
