package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LowStockJob delivers low-stock alerts to whoever needs to restock. The
// current sink is the structured log; the handler is where an email or chat
// integration plugs in.
type LowStockJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLowStockJob initialises the low-stock delivery handler.
func NewLowStockJob(pool *pgxpool.Pool, logger *slog.Logger) *LowStockJob {
	return &LowStockJob{pool: pool, logger: logger}
}

// Handle processes one low-stock alert.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock: handler not configured")
	}
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	// The alert may have been resolved between raise and delivery; deliver
	// anyway but annotate, so a restock that already happened is visible.
	var sku, name string
	var status string
	err := j.pool.QueryRow(ctx,
		`SELECT p.sku, p.name, a.status
		 FROM stock_alerts a JOIN products p ON p.id = a.product_id
		 WHERE a.id = $1`, payload.AlertID).Scan(&sku, &name, &status)
	if err != nil {
		return fmt.Errorf("low stock: load alert %d: %w", payload.AlertID, err)
	}

	j.logger.Warn("low stock alert",
		slog.Int64("alert_id", payload.AlertID),
		slog.String("sku", sku),
		slog.String("product", name),
		slog.Int64("stock", payload.StockAtRaise),
		slog.Int64("threshold", payload.Threshold),
		slog.String("status", status),
	)
	return nil
}
