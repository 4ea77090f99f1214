// organization_repository.go implements OrganizationRepository: CRUD for the
// organization tree plus the direct-children query backing the authz hierarchy
// index (it satisfies authz.HierarchyStore).
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safesite-hq/safesite/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID retrieves an organization by ID. Returns (nil, nil) when not found.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, parent_organization_id, level, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	org := &models.Organization{}
	err := r.db.GetContext(ctx, org, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// Create inserts a new organization. Level is derived from the parent so the
// denormalized depth stays consistent: root organizations get level 0,
// children get parent level + 1.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, parent_organization_id, level)
		VALUES ($1, $2, COALESCE((SELECT level + 1 FROM organizations WHERE id = $2), 0))
		RETURNING id, level, is_active, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, org.Name, org.ParentOrganizationID).Scan(
		&org.ID,
		&org.Level,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// DirectChildIDs returns the IDs of the organization's active direct children.
// This is the single query the authz hierarchy index issues.
func (r *OrganizationRepository) DirectChildIDs(ctx context.Context, orgID string) ([]string, error) {
	query := `
		SELECT id FROM organizations
		WHERE parent_organization_id = $1 AND is_active = TRUE
		ORDER BY level, name
	`

	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to get direct children: %w", err)
	}

	return ids, nil
}

// ListByIDs retrieves organizations by ID set, active first, ordered by the
// denormalized level so parents precede subsidiaries in listings.
func (r *OrganizationRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.Organization, error) {
	if len(ids) == 0 {
		return []*models.Organization{}, nil
	}

	query := `
		SELECT id, name, parent_organization_id, level, is_active, created_at, updated_at
		FROM organizations
		WHERE id = ANY($1)
		ORDER BY level, name
	`

	orgs := make([]*models.Organization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// ListAll retrieves every organization, ordered by level then name. Used only
// for the unrestricted (system admin) listing path.
func (r *OrganizationRepository) ListAll(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT id, name, parent_organization_id, level, is_active, created_at, updated_at
		FROM organizations
		ORDER BY level, name
	`

	orgs := make([]*models.Organization, 0)
	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// Deactivate soft-deletes an organization. Resources owned by it are not
// cascade-deleted; their organization_id keeps referencing the inactive row.
func (r *OrganizationRepository) Deactivate(ctx context.Context, orgID string) error {
	query := `UPDATE organizations SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, orgID); err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}

	return nil
}

// Update renames an organization
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `UPDATE organizations SET name = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, org.ID, org.Name); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	return nil
}
