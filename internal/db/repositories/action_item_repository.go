// action_item_repository.go implements ActionItemRepository: corrective
// actions raised from inspections, listed under the same visibility scope
// translation as inspections (assignee stands in for the collaborator set).
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
)

const actionItemColumns = `
	id, inspection_id, organization_id, created_by, assigned_to, description,
	status, due_date, notified_at, created_at, updated_at
`

// ActionItemRepository handles database operations for action items
type ActionItemRepository struct {
	db *sqlx.DB
}

// NewActionItemRepository creates a new action item repository
func NewActionItemRepository(db *sqlx.DB) *ActionItemRepository {
	return &ActionItemRepository{db: db}
}

// List retrieves action items visible under the scope, soonest due first.
// For ordinary users the collaboration predicate is creator-or-assignee.
func (r *ActionItemRepository) List(ctx context.Context, scope authz.VisibilityScope, limit, offset int) ([]*models.ActionItem, error) {
	if scope.Empty() {
		return []*models.ActionItem{}, nil
	}

	args := make([]interface{}, 0, 4)
	clause := ""
	if !scope.Unrestricted {
		args = append(args, pq.Array(scope.OrganizationIDs))
		clause = "organization_id = ANY($" + strconv.Itoa(len(args)) + ")"
	}
	if scope.RestrictToUserID != "" {
		args = append(args, scope.RestrictToUserID)
		n := strconv.Itoa(len(args))
		collab := "(created_by = $" + n + " OR assigned_to = $" + n + ")"
		if clause != "" {
			clause += " AND " + collab
		} else {
			clause = collab
		}
	}

	query := `SELECT ` + actionItemColumns + ` FROM action_items`
	if clause != "" {
		query += " WHERE " + clause
	}
	args = append(args, limit)
	query += " ORDER BY due_date NULLS LAST, created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	items := make([]*models.ActionItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}

	return items, nil
}

// ListByInspection retrieves all action items for one inspection. Visibility
// is enforced by the caller via CanAccessRecord on the inspection itself.
func (r *ActionItemRepository) ListByInspection(ctx context.Context, inspectionID string) ([]*models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE inspection_id = $1 ORDER BY created_at`

	items := make([]*models.ActionItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, inspectionID); err != nil {
		return nil, fmt.Errorf("failed to list action items: %w", err)
	}

	return items, nil
}

// GetByID retrieves an action item. Returns (nil, nil) when not found.
func (r *ActionItemRepository) GetByID(ctx context.Context, id string) (*models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE id = $1`

	item := &models.ActionItem{}
	err := r.db.GetContext(ctx, item, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get action item: %w", err)
	}

	return item, nil
}

// Create inserts a new action item. The owning organization is copied from
// the parent inspection by the caller; it is immutable after creation.
func (r *ActionItemRepository) Create(ctx context.Context, item *models.ActionItem) error {
	query := `
		INSERT INTO action_items (inspection_id, organization_id, created_by, assigned_to, description, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	status := item.Status
	if status == "" {
		status = models.ActionItemStatusOpen
	}

	err := r.db.QueryRowxContext(ctx, query,
		item.InspectionID, item.OrganizationID, item.CreatedBy,
		item.AssignedTo, item.Description, status, item.DueDate,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create action item: %w", err)
	}

	item.Status = status
	return nil
}

// Update persists assignee, description, status, and due date changes
func (r *ActionItemRepository) Update(ctx context.Context, item *models.ActionItem) error {
	query := `
		UPDATE action_items
		SET assigned_to = $2, description = $3, status = $4, due_date = $5, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.AssignedTo, item.Description, item.Status, item.DueDate,
	)
	if err != nil {
		return fmt.Errorf("failed to update action item: %w", err)
	}

	return nil
}

// FindOverdue returns unresolved action items whose due date has passed and
// that have not yet been notified. Used by the overdue notifier job.
func (r *ActionItemRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]*models.ActionItem, error) {
	query := `
		SELECT ` + actionItemColumns + `
		FROM action_items
		WHERE status <> 'resolved' AND due_date IS NOT NULL AND due_date < $1 AND notified_at IS NULL
		ORDER BY due_date
	`

	items := make([]*models.ActionItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, asOf); err != nil {
		return nil, fmt.Errorf("failed to find overdue action items: %w", err)
	}

	return items, nil
}

// MarkNotified records that an overdue notification was emitted for the item,
// so notifications are sent exactly once even across server restarts.
func (r *ActionItemRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE action_items SET notified_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark action item notified: %w", err)
	}

	return nil
}
