package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safesite-hq/safesite/internal/config"
)

func sampleEntry() *LogEntry {
	return &LogEntry{
		Timestamp:      time.Now(),
		Action:         "inspection.created",
		UserID:         "user-1",
		OrganizationID: "org-1",
		ResourceType:   "inspection",
		ResourceID:     "insp-1",
		IPAddress:      "10.0.0.1",
		StatusCode:     201,
	}
}

// ---------------------------------------------------------------------------
// FileShipper
// ---------------------------------------------------------------------------

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fs, err := NewFileShipper(&config.AuditFileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	if err := fs.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := fs.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if entry.Action != "inspection.created" {
			t.Errorf("Action = %q, want inspection.created", entry.Action)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

// ---------------------------------------------------------------------------
// WebhookShipper
// ---------------------------------------------------------------------------

func TestWebhookShipper_PostsEntry(t *testing.T) {
	received := make(chan LogEntry, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Audit-Token") != "secret" {
			t.Errorf("missing custom header")
		}
		var entry LogEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- entry
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ws, err := NewWebhookShipper(&config.AuditWebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Audit-Token": "secret"},
	})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}

	if err := ws.Ship(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Ship: %v", err)
	}

	select {
	case entry := <-received:
		if entry.UserID != "user-1" {
			t.Errorf("UserID = %q, want user-1", entry.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received entry")
	}
}

func TestWebhookShipper_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws, err := NewWebhookShipper(&config.AuditWebhookConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}

	if err := ws.Ship(context.Background(), sampleEntry()); err == nil {
		t.Error("expected error for 500 response, got nil")
	}
}

func TestWebhookShipper_MissingURL(t *testing.T) {
	if _, err := NewWebhookShipper(&config.AuditWebhookConfig{}); err == nil {
		t.Error("expected error for missing URL, got nil")
	}
}

// ---------------------------------------------------------------------------
// MultiShipper
// ---------------------------------------------------------------------------

func TestNewMultiShipper_SkipsDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	ms, err := NewMultiShipper([]config.AuditShipperConfig{
		{Enabled: false, Type: "file", File: &config.AuditFileConfig{Path: path}},
		{Enabled: true, Type: "file", File: &config.AuditFileConfig{Path: path}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper: %v", err)
	}
	defer ms.Close()

	if len(ms.shippers) != 1 {
		t.Errorf("len(shippers) = %d, want 1", len(ms.shippers))
	}
}

func TestNewMultiShipper_UnknownType(t *testing.T) {
	_, err := NewMultiShipper([]config.AuditShipperConfig{
		{Enabled: true, Type: "carrier-pigeon"},
	})
	if err == nil {
		t.Error("expected error for unknown shipper type, got nil")
	}
}

func TestNewMultiShipper_MissingSubConfig(t *testing.T) {
	_, err := NewMultiShipper([]config.AuditShipperConfig{
		{Enabled: true, Type: "webhook"},
	})
	if err == nil {
		t.Error("expected error for webhook shipper without config, got nil")
	}
}
