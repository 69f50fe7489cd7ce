// Package jobs contains the Asynq background tasks: low-stock alert
// delivery and the daily sales summary.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert delivers a low-stock alert raised by a committed
	// movement.
	TaskLowStockAlert = "stock:low_alert"
	// TaskDailySalesSummary aggregates one day of sales.
	TaskDailySalesSummary = "sales:daily_summary"
)

// LowStockPayload carries the alert details to the delivery handler.
type LowStockPayload struct {
	AlertID      int64     `json:"alert_id"`
	ProductID    int64     `json:"product_id"`
	StockAtRaise int64     `json:"stock_at_raise"`
	Threshold    int64     `json:"threshold"`
	RaisedAt     time.Time `json:"raised_at"`
}

// NewLowStockTask constructs a low-stock alert task.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, data), nil
}

// DailySummaryPayload selects the day to aggregate. A zero Date means the
// previous calendar day.
type DailySummaryPayload struct {
	Date string `json:"date,omitempty"`
}

// NewDailySummaryTask constructs a daily summary task.
func NewDailySummaryTask(payload DailySummaryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailySalesSummary, data), nil
}
