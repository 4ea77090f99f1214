// Package models - organization.go defines the Organization model. Organizations
// form a tree (holding companies and subsidiaries) via ParentOrganizationID;
// Level is the denormalized depth used for ordering tree listings.
package models

import "time"

// Organization represents a tenant organization in the hierarchy
type Organization struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	ParentOrganizationID *string   `db:"parent_organization_id" json:"parent_organization_id"` // nil for root organizations
	Level                int       `db:"level" json:"level"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
