// checklist_template_repository.go implements ChecklistTemplateRepository.
// Template items live in a JSONB column and are (un)marshalled here so the
// model carries a typed slice.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
)

// ChecklistTemplateRepository handles database operations for checklist templates
type ChecklistTemplateRepository struct {
	db *sqlx.DB
}

// NewChecklistTemplateRepository creates a new checklist template repository
func NewChecklistTemplateRepository(db *sqlx.DB) *ChecklistTemplateRepository {
	return &ChecklistTemplateRepository{db: db}
}

func scanTemplate(row interface {
	Scan(dest ...interface{}) error
}) (*models.ChecklistTemplate, error) {
	t := &models.ChecklistTemplate{}
	var itemsJSON []byte
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.CreatedBy, &t.Name, &t.IsActive,
		&itemsJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &t.Items); err != nil {
			return nil, fmt.Errorf("failed to parse template items: %w", err)
		}
	}
	return t, nil
}

// List retrieves active templates visible under the scope
func (r *ChecklistTemplateRepository) List(ctx context.Context, scope authz.VisibilityScope) ([]*models.ChecklistTemplate, error) {
	if scope.Empty() {
		return []*models.ChecklistTemplate{}, nil
	}

	args := make([]interface{}, 0, 2)
	query := `
		SELECT id, organization_id, created_by, name, is_active, items, created_at, updated_at
		FROM checklist_templates
		WHERE is_active = TRUE
	`
	if !scope.Unrestricted {
		args = append(args, pq.Array(scope.OrganizationIDs))
		query += " AND organization_id = ANY($" + strconv.Itoa(len(args)) + ")"
	}
	if scope.RestrictToUserID != "" {
		// Templates have no collaborator set; the fallback reduces to creator.
		args = append(args, scope.RestrictToUserID)
		query += " AND created_by = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.ChecklistTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// GetByID retrieves a template. Returns (nil, nil) when not found.
func (r *ChecklistTemplateRepository) GetByID(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	query := `
		SELECT id, organization_id, created_by, name, is_active, items, created_at, updated_at
		FROM checklist_templates
		WHERE id = $1
	`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return t, nil
}

// Create inserts a new template
func (r *ChecklistTemplateRepository) Create(ctx context.Context, t *models.ChecklistTemplate) error {
	itemsJSON, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("failed to encode template items: %w", err)
	}

	query := `
		INSERT INTO checklist_templates (organization_id, created_by, name, items)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`

	err = r.db.QueryRowxContext(ctx, query, t.OrganizationID, t.CreatedBy, t.Name, itemsJSON).
		Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// Update persists name and item changes
func (r *ChecklistTemplateRepository) Update(ctx context.Context, t *models.ChecklistTemplate) error {
	itemsJSON, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("failed to encode template items: %w", err)
	}

	query := `
		UPDATE checklist_templates
		SET name = $2, items = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Name, itemsJSON); err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	return nil
}

// Deactivate retires a template without deleting inspections that used it
func (r *ChecklistTemplateRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE checklist_templates SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to deactivate template: %w", err)
	}

	return nil
}
