package models

import "time"

// Role names known to the portal.
const (
	RoleAdmin = "Admin"
	RoleStaff = "Staff"
)

// User represents a portal user. Every user belongs to exactly one organization.
type User struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Username       string    `json:"username" db:"username"`
	PasswordHash   string    `json:"-" db:"password_hash"` // '-' means don't send in JSON response
	Email          *string   `json:"email,omitempty" db:"email"`
	FullName       *string   `json:"full_name,omitempty" db:"full_name"`
	RoleID         *int64    `json:"role_id,omitempty" db:"role_id"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	Role           *Role     `json:"role,omitempty"` // For joining with Role
}

// RoleName returns the joined role name, or "" when the user has none.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Role represents a user role
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name" db:"name"`
}

// Credentials for login request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegistrationPayload for user registration. The new user joins the
// organization of the admin performing the registration.
type RegistrationPayload struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	RoleName *string `json:"role_name,omitempty"` // e.g., "Admin", "Staff"
}
