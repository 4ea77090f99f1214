// Package models - user.go defines the User model. Role is persisted as a
// string and converted to the closed authz.Role enum at actor-resolution time;
// CanManageUsers and CanCreateOrganizations are derived flags kept in sync
// with the role by the user repository.
package models

import "time"

// User represents a user account
type User struct {
	ID                    string    `db:"id" json:"id"`
	Email                 string    `db:"email" json:"email"`
	Name                  string    `db:"name" json:"name"`
	Role                  string    `db:"role" json:"role"`
	OrganizationID        *string   `db:"organization_id" json:"organization_id"`                 // home organization; nil only transiently during onboarding
	ManagedOrganizationID *string   `db:"managed_organization_id" json:"managed_organization_id"` // set only for org admins
	CanManageUsers        bool      `db:"can_manage_users" json:"can_manage_users"`
	CanCreateOrganizations bool     `db:"can_create_organizations" json:"can_create_organizations"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	PasswordHash          *string   `db:"password_hash" json:"-"` // nil for SSO-only accounts
	OIDCSub               *string   `db:"oidc_sub" json:"-"`      // OIDC subject identifier
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}
