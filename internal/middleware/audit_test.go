package middleware

import "testing"

func TestAuditResourceType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/inspections", "inspection"},
		{"/v1/inspections/abc/collaborators", "inspection"},
		{"/v1/action-items/xyz", "action_item"},
		{"/v1/templates", "checklist_template"},
		{"/v1/organizations/o1/invite", "organization"},
		{"/v1/users/u1", "user"},
		{"/v1/sessions", "session"},
		{"/healthz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := auditResourceType(tt.path); got != tt.want {
				t.Errorf("auditResourceType(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestAuditAction(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"POST", "/v1/inspections", "inspection.created"},
		{"PUT", "/v1/inspections/abc", "inspection.updated"},
		{"DELETE", "/v1/inspections/abc", "inspection.deleted"},
		{"PUT", "/v1/inspections/abc/collaborators/u2", "inspection.collaborator_updated"},
		{"POST", "/v1/organizations/o1/invite", "organization.user_invited"},
		{"GET", "/v1/inspections/export", "inspection.exported"},
		{"POST", "/v1/sessions", "session.created"},
		{"POST", "/unknown/path", "POST /unknown/path"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := auditAction(tt.method, tt.path); got != tt.want {
				t.Errorf("auditAction = %q, want %q", got, tt.want)
			}
		})
	}
}
