package models

import "time"

// Organization is a tenant: a customer or the operator itself.
type Organization struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	IsOperator bool      `json:"is_operator" db:"is_operator"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Unit is a sub-location (department, site) inside an organization.
type Unit struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
