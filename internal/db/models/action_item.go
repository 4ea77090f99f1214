// Package models - action_item.go defines the ActionItem model: a corrective
// action raised from an inspection finding, assigned to a user with a due date.
package models

import "time"

// Action item statuses
const (
	ActionItemStatusOpen       = "open"
	ActionItemStatusInProgress = "in_progress"
	ActionItemStatusResolved   = "resolved"
)

// ActionItem represents a corrective action tied to an inspection
type ActionItem struct {
	ID             string     `db:"id" json:"id"`
	InspectionID   string     `db:"inspection_id" json:"inspection_id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	AssignedTo     *string    `db:"assigned_to" json:"assigned_to"`
	Description    string     `db:"description" json:"description"`
	Status         string     `db:"status" json:"status"`
	DueDate        *time.Time `db:"due_date" json:"due_date"`
	NotifiedAt     *time.Time `db:"notified_at" json:"-"` // overdue notification sent (exactly once)
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// OwningOrganizationID implements authz.Record.
func (a *ActionItem) OwningOrganizationID() string { return a.OrganizationID }

// CreatorID implements authz.Record.
func (a *ActionItem) CreatorID() string { return a.CreatedBy }

// HasActiveCollaborator implements authz.Record. The assignee is the action
// item's collaborator: assignment grants access the same way an active
// inspection collaboration does.
func (a *ActionItem) HasActiveCollaborator(userID string) bool {
	return a.AssignedTo != nil && *a.AssignedTo == userID
}
