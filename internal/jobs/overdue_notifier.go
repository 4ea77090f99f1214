// overdue_notifier.go implements the OverdueNotifier background job, which
// periodically scans for unresolved action items whose due date has passed
// and records an audit entry for each. Notification state is persisted in the
// database (notified_at column) so each item is flagged exactly once even
// across server restarts.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/safesite-hq/safesite/internal/db/models"
	"github.com/safesite-hq/safesite/internal/telemetry"
)

// ActionItemStore is the slice of the action item repository the notifier needs.
type ActionItemStore interface {
	FindOverdue(ctx context.Context, asOf time.Time) ([]*models.ActionItem, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// AuditStore records the overdue events.
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// OverdueNotifier periodically flags overdue action items.
type OverdueNotifier struct {
	items    ActionItemStore
	audits   AuditStore
	interval time.Duration
	stopChan chan struct{}

	// now is replaceable in tests.
	now func() time.Time
}

// NewOverdueNotifier creates an OverdueNotifier. interval defaults to one
// hour when unset.
func NewOverdueNotifier(items ActionItemStore, audits AuditStore, interval time.Duration) *OverdueNotifier {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueNotifier{
		items:    items,
		audits:   audits,
		interval: interval,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the background overdue-check loop. It runs an initial check
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (n *OverdueNotifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("overdue action item notifier started", "interval", n.interval)

	n.RunCheck(ctx)

	for {
		select {
		case <-ticker.C:
			n.RunCheck(ctx)
		case <-n.stopChan:
			slog.Info("overdue action item notifier stopped")
			return
		case <-ctx.Done():
			slog.Info("overdue action item notifier context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (n *OverdueNotifier) Stop() {
	close(n.stopChan)
}

// RunCheck performs one overdue scan. Exported so a deployment can trigger it
// out of band and so tests drive it directly.
func (n *OverdueNotifier) RunCheck(ctx context.Context) {
	now := n.now().UTC()

	items, err := n.items.FindOverdue(ctx, now)
	if err != nil {
		slog.Error("overdue notifier: failed to query overdue action items", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	slog.Info("overdue notifier: found overdue action items", "count", len(items))

	for _, item := range items {
		entry := &models.AuditLog{
			Action:         "action_item.overdue",
			OrganizationID: &item.OrganizationID,
			ResourceType:   strPtr("action_item"),
			ResourceID:     &item.ID,
		}
		if item.AssignedTo != nil {
			entry.UserID = item.AssignedTo
		}
		if err := n.audits.Insert(ctx, entry); err != nil {
			// Skip MarkNotified so the item is retried on the next pass.
			slog.Error("overdue notifier: failed to record audit entry", "action_item_id", item.ID, "error", err)
			continue
		}

		if err := n.items.MarkNotified(ctx, item.ID, now); err != nil {
			slog.Error("overdue notifier: failed to mark action item notified", "action_item_id", item.ID, "error", err)
			continue
		}

		telemetry.OverdueActionItemsNotified.Inc()
	}
}

func strPtr(s string) *string { return &s }
