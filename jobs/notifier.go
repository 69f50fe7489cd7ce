package jobs

import (
	"context"
	"log/slog"

	"github.com/tillpoint/tillpoint/internal/ledger"
)

// Notifier forwards raised stock alerts onto the job queue. It satisfies
// the ledger's post-commit notification seam.
type Notifier struct {
	client *Client
	logger *slog.Logger
}

// NewNotifier constructs Notifier.
func NewNotifier(client *Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// LowStock enqueues delivery of the alert.
func (n *Notifier) LowStock(ctx context.Context, alert ledger.Alert) error {
	_, err := n.client.EnqueueLowStock(ctx, LowStockPayload{
		AlertID:      alert.ID,
		ProductID:    alert.ProductID,
		StockAtRaise: alert.StockAtRaise,
		Threshold:    alert.Threshold,
		RaisedAt:     alert.CreatedAt,
	})
	return err
}

// NopNotifier drops alerts. Used when no queue is configured.
type NopNotifier struct{}

// LowStock is a no-op.
func (NopNotifier) LowStock(context.Context, ledger.Alert) error { return nil }
