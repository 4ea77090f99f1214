// Package models - audit_log.go defines the persisted audit record for
// authorization-relevant events (promotions, denials, topology changes).
package models

import "time"

// AuditLog represents an audit log entry
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	Action         string    `db:"action" json:"action"`
	UserID         *string   `db:"user_id" json:"user_id"`
	OrganizationID *string   `db:"organization_id" json:"organization_id"`
	ResourceType   *string   `db:"resource_type" json:"resource_type"`
	ResourceID     *string   `db:"resource_id" json:"resource_id"`
	IPAddress      *string   `db:"ip_address" json:"ip_address"`
	StatusCode     int       `db:"status_code" json:"status_code"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
