package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/safesite-hq/safesite/internal/authz"
	"github.com/safesite-hq/safesite/internal/db/models"
)

var inspectionCols = []string{
	"id", "organization_id", "created_by", "template_id", "title", "status",
	"scheduled_for", "completed_at", "created_at", "updated_at",
}

var collaboratorCols = []string{"inspection_id", "user_id", "status", "created_at"}

func sampleInspectionRow() *sqlmock.Rows {
	return sqlmock.NewRows(inspectionCols).AddRow(
		"insp-1", "org-1", "user-1", nil, "Monthly walkthrough", "draft",
		nil, nil, time.Now(), time.Now(),
	)
}

func newInspectionRepo(t *testing.T) (*InspectionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewInspectionRepository(db), mock
}

// ---------------------------------------------------------------------------
// List: scope translation
// ---------------------------------------------------------------------------

func TestInspectionList_EmptyScopeSkipsQuery(t *testing.T) {
	repo, mock := newInspectionRepo(t)

	inspections, err := repo.List(context.Background(), authz.VisibilityScope{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inspections) != 0 {
		t.Errorf("len = %d, want 0", len(inspections))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}

func TestInspectionList_Unrestricted(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery(`SELECT.*FROM inspections i ORDER BY`).
		WithArgs(20, 0).
		WillReturnRows(sampleInspectionRow())

	scope := authz.VisibilityScope{Unrestricted: true}
	inspections, err := repo.List(context.Background(), scope, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inspections) != 1 {
		t.Errorf("len = %d, want 1", len(inspections))
	}
}

func TestInspectionList_OrganizationFilter(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery(`SELECT.*FROM inspections i WHERE i\.organization_id = ANY`).
		WillReturnRows(sampleInspectionRow())

	scope := authz.VisibilityScope{OrganizationIDs: []string{"org-1", "org-2"}}
	inspections, err := repo.List(context.Background(), scope, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inspections) != 1 {
		t.Errorf("len = %d, want 1", len(inspections))
	}
}

func TestInspectionList_CollaborationFallbackClause(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	// Ordinary users get the creator-or-active-collaborator predicate appended
	// to the organization filter.
	mock.ExpectQuery(`organization_id = ANY.*AND.*created_by.*OR EXISTS.*inspection_collaborators.*status = 'active'`).
		WillReturnRows(sampleInspectionRow())

	scope := authz.VisibilityScope{
		OrganizationIDs:  []string{"org-1"},
		RestrictToUserID: "user-1",
	}
	inspections, err := repo.List(context.Background(), scope, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inspections) != 1 {
		t.Errorf("len = %d, want 1", len(inspections))
	}
}

func TestInspectionList_DBError(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery("SELECT.*FROM inspections").
		WillReturnError(errDB)

	if _, err := repo.List(context.Background(), authz.VisibilityScope{Unrestricted: true}, 20, 0); err == nil {
		t.Error("expected error")
	}
}

// ---------------------------------------------------------------------------
// Count
// ---------------------------------------------------------------------------

func TestInspectionCount_EmptyScope(t *testing.T) {
	repo, mock := newInspectionRepo(t)

	count, err := repo.Count(context.Background(), authz.VisibilityScope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}

func TestInspectionCount_Scoped(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery(`SELECT COUNT.*FROM inspections i WHERE i\.organization_id = ANY`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background(), authz.VisibilityScope{OrganizationIDs: []string{"org-1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestInspectionGetByID_LoadsCollaborators(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery("SELECT.*FROM inspections i WHERE i.id").
		WithArgs("insp-1").
		WillReturnRows(sampleInspectionRow())
	mock.ExpectQuery("SELECT.*FROM inspection_collaborators").
		WithArgs("insp-1").
		WillReturnRows(sqlmock.NewRows(collaboratorCols).
			AddRow("insp-1", "user-2", "active", time.Now()))

	inspection, err := repo.GetByID(context.Background(), "insp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspection == nil {
		t.Fatal("expected inspection, got nil")
	}
	if len(inspection.Collaborators) != 1 {
		t.Fatalf("len(Collaborators) = %d, want 1", len(inspection.Collaborators))
	}
	if !inspection.HasActiveCollaborator("user-2") {
		t.Error("user-2 should be an active collaborator")
	}
}

func TestInspectionGetByID_NotFound(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery("SELECT.*FROM inspections i WHERE i.id").
		WillReturnRows(sqlmock.NewRows(inspectionCols))

	inspection, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspection != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// Create / Update / Delete
// ---------------------------------------------------------------------------

func TestInspectionCreate_DefaultsToDraft(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectQuery("INSERT INTO inspections").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("insp-new", time.Now(), time.Now()))

	inspection := &models.Inspection{
		OrganizationID: "org-1",
		CreatedBy:      "user-1",
		Title:          "Quarterly audit",
	}
	if err := repo.Create(context.Background(), inspection); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspection.Status != models.InspectionStatusDraft {
		t.Errorf("Status = %s, want %s", inspection.Status, models.InspectionStatusDraft)
	}
}

func TestInspectionUpdate_Success(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectExec("UPDATE inspections").
		WillReturnResult(sqlmock.NewResult(0, 1))

	inspection := &models.Inspection{ID: "insp-1", Title: "Renamed", Status: "in_progress"}
	if err := repo.Update(context.Background(), inspection); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInspectionDelete_Success(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectExec("DELETE FROM inspections").
		WithArgs("insp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "insp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// UpsertCollaborator
// ---------------------------------------------------------------------------

func TestUpsertCollaborator_Success(t *testing.T) {
	repo, mock := newInspectionRepo(t)
	mock.ExpectExec("INSERT INTO inspection_collaborators.*ON CONFLICT").
		WithArgs("insp-1", "user-2", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpsertCollaborator(context.Background(), "insp-1", "user-2", "active"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
