// Package models - inspection.go defines the Inspection model and its
// collaborator set. Inspections implement authz.Record so the scoping engine
// can authorize single-record access without knowing the concrete type.
package models

import "time"

// Inspection statuses
const (
	InspectionStatusDraft      = "draft"
	InspectionStatusScheduled  = "scheduled"
	InspectionStatusInProgress = "in_progress"
	InspectionStatusCompleted  = "completed"
)

// Collaborator statuses
const (
	CollaboratorActive   = "active"
	CollaboratorInactive = "inactive"
)

// Inspection represents a safety inspection belonging to an organization
type Inspection struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	TemplateID     *string    `db:"template_id" json:"template_id"`
	Title          string     `db:"title" json:"title"`
	Status         string     `db:"status" json:"status"`
	ScheduledFor   *time.Time `db:"scheduled_for" json:"scheduled_for"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	// Collaborators is loaded separately by the repository; it is not a column.
	Collaborators []Collaborator `db:"-" json:"collaborators,omitempty"`
}

// Collaborator grants a user record-level access to an inspection independent
// of organizational scope, with an active/inactive status.
type Collaborator struct {
	InspectionID string    `db:"inspection_id" json:"inspection_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// OwningOrganizationID implements authz.Record.
func (i *Inspection) OwningOrganizationID() string { return i.OrganizationID }

// CreatorID implements authz.Record.
func (i *Inspection) CreatorID() string { return i.CreatedBy }

// HasActiveCollaborator implements authz.Record.
func (i *Inspection) HasActiveCollaborator(userID string) bool {
	for _, c := range i.Collaborators {
		if c.UserID == userID && c.Status == CollaboratorActive {
			return true
		}
	}
	return false
}
