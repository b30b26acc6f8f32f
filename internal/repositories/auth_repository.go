package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"hospitex_portal/internal/models"
)

// AuthRepository defines the interface for authentication-related database operations.
type AuthRepository interface {
	CreateUser(executor SQLExecutor, user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(username string) (*models.User, string, error) // Returns User, HashedPassword, Error
	FindUserByID(userID int64) (*models.User, error)
	FindRoleByName(name string) (*models.Role, error)
}

// authRepository implements the AuthRepository interface.
type authRepository struct {
	db *sql.DB // The direct database connection pool
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

const selectUserFields = `
	SELECT u.id, u.organization_id, u.username, u.password_hash, u.email, u.full_name, u.role_id,
	       u.is_active, u.created_at, u.updated_at, ro.name
	FROM users u
	LEFT JOIN roles ro ON u.role_id = ro.id`

// CreateUser inserts a new user into the database.
// It expects an SQLExecutor which can be a *sql.DB or *sql.Tx.
// IsActive is set to true by default. CreatedAt and UpdatedAt are set to the current time.
func (r *authRepository) CreateUser(executor SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	query := `INSERT INTO users (organization_id, username, password_hash, email, full_name, role_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`

	currentTime := time.Now()

	var userID int64
	err := executor.QueryRow(
		query,
		user.OrganizationID,
		user.Username,
		hashedPassword,
		user.Email,    // Can be nil
		user.FullName, // Can be nil
		user.RoleID,   // Can be nil
		true,
		currentTime,
		currentTime,
	).Scan(&userID)
	if err != nil {
		return 0, wrapDBError(err, "creating user")
	}
	return userID, nil
}

func scanUser(row scanner) (*models.User, string, error) {
	user := &models.User{}
	var hashedPassword string
	var roleName sql.NullString

	err := row.Scan(
		&user.ID, &user.OrganizationID, &user.Username, &hashedPassword, &user.Email, &user.FullName,
		&user.RoleID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &roleName,
	)
	if err != nil {
		return nil, "", err
	}
	if user.RoleID != nil && roleName.Valid {
		user.Role = &models.Role{ID: *user.RoleID, Name: roleName.String}
	}
	return user, hashedPassword, nil
}

// FindUserByUsername retrieves a user by their username.
// It returns the user model, their hashed password, and an error if any.
func (r *authRepository) FindUserByUsername(username string) (*models.User, string, error) {
	user, hashedPassword, err := scanUser(r.db.QueryRow(selectUserFields+" WHERE u.username = $1", username))
	if err != nil {
		return nil, "", wrapDBError(err, fmt.Sprintf("finding user by username %s", username))
	}
	return user, hashedPassword, nil
}

// FindUserByID retrieves a user by their ID. The password hash is not populated.
func (r *authRepository) FindUserByID(userID int64) (*models.User, error) {
	user, _, err := scanUser(r.db.QueryRow(selectUserFields+" WHERE u.id = $1", userID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding user by ID %d", userID))
	}
	return user, nil
}

// FindRoleByName looks a role up case-insensitively.
func (r *authRepository) FindRoleByName(name string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRow(`SELECT id, name FROM roles WHERE LOWER(name) = LOWER($1)`, name).Scan(&role.ID, &role.Name)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding role %s", name))
	}
	return role, nil
}
