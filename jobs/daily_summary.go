package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DailySummaryJob aggregates one calendar day of committed sales and writes
// the snapshot into daily_sales_summaries. Re-running a day overwrites the
// previous snapshot, so the job is safe to retry.
type DailySummaryJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	clock  func() time.Time
}

// NewDailySummaryJob initialises the daily summary handler.
func NewDailySummaryJob(pool *pgxpool.Pool, logger *slog.Logger) *DailySummaryJob {
	return &DailySummaryJob{
		pool:   pool,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle aggregates the requested day.
func (j *DailySummaryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("daily summary: handler not configured")
	}
	var payload DailySummaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	day := j.clock().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var (
		orders    int64
		gross     decimal.Decimal
		tax       decimal.Decimal
		discounts decimal.Decimal
		voided    int64
	)
	err := j.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'PAID'),
			COALESCE(SUM(total) FILTER (WHERE status = 'PAID'), 0),
			COALESCE(SUM(tax) FILTER (WHERE status = 'PAID'), 0),
			COALESCE(SUM(discount) FILTER (WHERE status = 'PAID'), 0),
			COUNT(*) FILTER (WHERE status = 'CANCELLED')
		 FROM sales WHERE created_at >= $1 AND created_at < $2`,
		dayStart, dayEnd).Scan(&orders, &gross, &tax, &discounts, &voided)
	if err != nil {
		return err
	}

	_, err = j.pool.Exec(ctx,
		`INSERT INTO daily_sales_summaries (summary_date, orders, gross, tax, discounts, voided, computed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (summary_date) DO UPDATE SET
			orders = EXCLUDED.orders, gross = EXCLUDED.gross, tax = EXCLUDED.tax,
			discounts = EXCLUDED.discounts, voided = EXCLUDED.voided, computed_at = EXCLUDED.computed_at`,
		dayStart, orders, gross, tax, discounts, voided, j.clock())
	if err != nil {
		return err
	}

	j.logger.Info("daily sales summary computed",
		slog.String("date", dayStart.Format("2006-01-02")),
		slog.Int64("orders", orders),
		slog.String("gross", gross.String()),
		slog.Int64("voided", voided),
	)
	return nil
}
