// audit_repository.go implements AuditRepository: write-mostly persistence for
// authorization-relevant events, with a filtered listing for admin review.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/safesite-hq/safesite/internal/db/models"
)

const auditColumns = `
	id, action, user_id, organization_id, resource_type, resource_id,
	ip_address, status_code, created_at
`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters narrows a ListAuditLogs query. Nil fields are ignored.
type AuditFilters struct {
	UserID         *string
	OrganizationID *string
	Action         *string
	StartDate      *time.Time
	EndDate        *time.Time
}

// Insert writes an audit log entry
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, user_id, organization_id, resource_type, resource_id, ip_address, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.Action, entry.UserID, entry.OrganizationID,
		entry.ResourceType, entry.ResourceID, entry.IPAddress, entry.StatusCode,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// ListAuditLogs retrieves audit logs with optional filters, newest first
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 6)

	addFilter := func(clause string, value interface{}) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}

	if filters.UserID != nil {
		addFilter(" AND user_id = $%d", *filters.UserID)
	}
	if filters.OrganizationID != nil {
		addFilter(" AND organization_id = $%d", *filters.OrganizationID)
	}
	if filters.Action != nil {
		addFilter(" AND action = $%d", *filters.Action)
	}
	if filters.StartDate != nil {
		addFilter(" AND created_at >= $%d", *filters.StartDate)
	}
	if filters.EndDate != nil {
		addFilter(" AND created_at <= $%d", *filters.EndDate)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := "SELECT " + auditColumns + " FROM audit_logs" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	logs := make([]*models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, total, nil
}

// GetAuditLog retrieves a single entry. Returns (nil, nil) when not found.
func (r *AuditRepository) GetAuditLog(ctx context.Context, id string) (*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`

	entry := &models.AuditLog{}
	err := r.db.GetContext(ctx, entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}

	return entry, nil
}
