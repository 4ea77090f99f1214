// user_repository.go implements UserRepository: user lookup for actor
// resolution, provisioning of invited users, and the one-shot persistence
// correction that promotes the bootstrap identity to system admin.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/safesite-hq/safesite/internal/db/models"
)

const userColumns = `
	id, email, name, role, organization_id, managed_organization_id,
	can_manage_users, can_create_organizations, is_active, password_hash, oidc_sub,
	created_at, updated_at
`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetUserByOIDCSub retrieves a user by OIDC subject. Returns (nil, nil) when not found.
func (r *UserRepository) GetUserByOIDCSub(ctx context.Context, sub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE oidc_sub = $1`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, sub)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by oidc subject: %w", err)
	}

	return user, nil
}

// Create inserts a new user. The derived capability flags are computed from
// the role here so they never drift from it.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, role, organization_id, managed_organization_id,
		                   can_manage_users, can_create_organizations, password_hash, oidc_sub)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, is_active, created_at, updated_at
	`

	canManageUsers := user.Role == "system_admin" || user.Role == "org_admin"
	canCreateOrgs := user.Role == "system_admin"

	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.Name, user.Role,
		user.OrganizationID, user.ManagedOrganizationID,
		canManageUsers, canCreateOrgs,
		user.PasswordHash, user.OIDCSub,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CanManageUsers = canManageUsers
	user.CanCreateOrganizations = canCreateOrgs
	return nil
}

// ListByOrganization retrieves all users whose home organization is orgID
func (r *UserRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE organization_id = $1 ORDER BY created_at DESC`

	users := make([]*models.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// PromoteToSystemAdmin executes the persistence correction signalled by the
// actor resolver for the bootstrap identity. Idempotent: the WHERE clause
// makes repeat calls no-ops, and the derived flags are updated together with
// the role so they stay in sync. Returns true when a row actually changed.
func (r *UserRepository) PromoteToSystemAdmin(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE users
		SET role = 'system_admin',
		    can_manage_users = TRUE,
		    can_create_organizations = TRUE,
		    is_active = TRUE,
		    updated_at = NOW()
		WHERE id = $1 AND role <> 'system_admin'
	`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to promote user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read promotion result: %w", err)
	}
	return n > 0, nil
}

// Deactivate soft-deletes a user account
func (r *UserRepository) Deactivate(ctx context.Context, userID string) error {
	query := `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	return nil
}
