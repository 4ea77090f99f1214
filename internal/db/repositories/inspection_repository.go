// inspection_repository.go implements InspectionRepository. This is where the
// computed authz.VisibilityScope is translated into SQL: an organization ANY()
// filter plus, for ordinary users, an OR-clause over creator and active
// collaborator. The scoping engine itself never sees a WHERE clause.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
)

const inspectionColumns = `
	i.id, i.organization_id, i.created_by, i.template_id, i.title, i.status,
	i.scheduled_for, i.completed_at, i.created_at, i.updated_at
`

// InspectionRepository handles database operations for inspections
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository creates a new inspection repository
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// scopeClause renders a VisibilityScope to a WHERE fragment and its args.
// alias is the table alias carrying organization_id/created_by. The returned
// fragment never includes the leading WHERE/AND keyword. An empty scope must
// be handled by the caller before rendering — see List.
func scopeClause(scope authz.VisibilityScope, alias string, args []interface{}) (string, []interface{}) {
	clause := ""
	if !scope.Unrestricted {
		args = append(args, pq.Array(scope.OrganizationIDs))
		clause = alias + ".organization_id = ANY($" + strconv.Itoa(len(args)) + ")"
	}

	if scope.RestrictToUserID != "" {
		args = append(args, scope.RestrictToUserID)
		n := strconv.Itoa(len(args))
		collab := "(" + alias + ".created_by = $" + n + ` OR EXISTS (
			SELECT 1 FROM inspection_collaborators c
			WHERE c.inspection_id = ` + alias + `.id AND c.user_id = $` + n + ` AND c.status = 'active'))`
		if clause != "" {
			clause += " AND " + collab
		} else {
			clause = collab
		}
	}

	return clause, args
}

// List retrieves inspections visible under the scope, newest first.
// An empty scope short-circuits to an empty result set without touching the
// database: "nothing visible" is a valid outcome, not an error.
func (r *InspectionRepository) List(ctx context.Context, scope authz.VisibilityScope, limit, offset int) ([]*models.Inspection, error) {
	if scope.Empty() {
		return []*models.Inspection{}, nil
	}

	args := make([]interface{}, 0, 4)
	clause, args := scopeClause(scope, "i", args)

	query := `SELECT ` + inspectionColumns + ` FROM inspections i`
	if clause != "" {
		query += " WHERE " + clause
	}
	args = append(args, limit)
	query += " ORDER BY i.created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	inspections := make([]*models.Inspection, 0)
	if err := r.db.SelectContext(ctx, &inspections, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}

	return inspections, nil
}

// Count returns the number of inspections visible under the scope
func (r *InspectionRepository) Count(ctx context.Context, scope authz.VisibilityScope) (int, error) {
	if scope.Empty() {
		return 0, nil
	}

	args := make([]interface{}, 0, 2)
	clause, args := scopeClause(scope, "i", args)

	query := `SELECT COUNT(*) FROM inspections i`
	if clause != "" {
		query += " WHERE " + clause
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count inspections: %w", err)
	}

	return count, nil
}

// GetByID retrieves an inspection with its collaborator set loaded, so the
// returned value satisfies authz.Record completely. Returns (nil, nil) when
// not found.
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections i WHERE i.id = $1`

	inspection := &models.Inspection{}
	err := r.db.GetContext(ctx, inspection, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}

	collabQuery := `
		SELECT inspection_id, user_id, status, created_at
		FROM inspection_collaborators
		WHERE inspection_id = $1
	`
	if err := r.db.SelectContext(ctx, &inspection.Collaborators, collabQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load collaborators: %w", err)
	}

	return inspection, nil
}

// Create inserts a new inspection. organization_id and created_by are set
// here at creation time and are immutable thereafter.
func (r *InspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	query := `
		INSERT INTO inspections (organization_id, created_by, template_id, title, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	status := inspection.Status
	if status == "" {
		status = models.InspectionStatusDraft
	}

	err := r.db.QueryRowxContext(ctx, query,
		inspection.OrganizationID, inspection.CreatedBy, inspection.TemplateID,
		inspection.Title, status, inspection.ScheduledFor,
	).Scan(&inspection.ID, &inspection.CreatedAt, &inspection.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}

	inspection.Status = status
	return nil
}

// Update persists title, status, schedule, and completion changes.
// organization_id and created_by are deliberately not updatable.
func (r *InspectionRepository) Update(ctx context.Context, inspection *models.Inspection) error {
	query := `
		UPDATE inspections
		SET title = $2, status = $3, scheduled_for = $4, completed_at = $5, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		inspection.ID, inspection.Title, inspection.Status,
		inspection.ScheduledFor, inspection.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update inspection: %w", err)
	}

	return nil
}

// Delete removes an inspection and, via ON DELETE CASCADE, its collaborators
// and action items
func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM inspections WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete inspection: %w", err)
	}

	return nil
}

// UpsertCollaborator adds a collaborator or updates their status. Flipping an
// inactive collaboration back to active re-grants access with no other change.
func (r *InspectionRepository) UpsertCollaborator(ctx context.Context, inspectionID, userID, status string) error {
	query := `
		INSERT INTO inspection_collaborators (inspection_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (inspection_id, user_id) DO UPDATE SET status = EXCLUDED.status
	`

	if _, err := r.db.ExecContext(ctx, query, inspectionID, userID, status); err != nil {
		return fmt.Errorf("failed to upsert collaborator: %w", err)
	}

	return nil
}
