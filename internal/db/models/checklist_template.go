// Package models - checklist_template.go defines the ChecklistTemplate model.
// Items are stored as a JSONB column and (un)marshalled by the repository.
package models

import "time"

// ChecklistTemplate represents a reusable inspection checklist
type ChecklistTemplate struct {
	ID             string         `db:"id" json:"id"`
	OrganizationID string         `db:"organization_id" json:"organization_id"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	Name           string         `db:"name" json:"name"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	Items          []TemplateItem `db:"-" json:"items"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// TemplateItem is a single checklist entry
type TemplateItem struct {
	Order    int    `json:"order"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Required bool   `json:"required"`
}

// OwningOrganizationID implements authz.Record.
func (t *ChecklistTemplate) OwningOrganizationID() string { return t.OrganizationID }

// CreatorID implements authz.Record.
func (t *ChecklistTemplate) CreatorID() string { return t.CreatedBy }

// HasActiveCollaborator implements authz.Record. Templates have no
// collaborator set; visibility is organizational (plus creator for ordinary
// roles via the collaboration fallback).
func (t *ChecklistTemplate) HasActiveCollaborator(string) bool { return false }
