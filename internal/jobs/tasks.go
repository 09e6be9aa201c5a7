// Package jobs runs the scheduled background work of lotkeeper on asynq:
// notification scans, the outbox relay, and housekeeping.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// QueueDefault is the queue every task is enqueued on.
const QueueDefault = "default"

// Task types.
const (
	TaskLowStockScan     = "notifications:low_stock"
	TaskExpiryScan       = "notifications:expiry"
	TaskLowStockReminder = "notifications:low_stock_reminder"
	TaskOutboxRelay      = "outbox:relay"
	TaskCleanup          = "maintenance:cleanup"
)

// ExpiryScanPayload carries the look-ahead of an expiry scan.
type ExpiryScanPayload struct {
	WindowDays int `json:"window_days"`
}

// CleanupPayload carries retention settings for housekeeping.
type CleanupPayload struct {
	OutboxRetentionHours int `json:"outbox_retention_hours"`
}

// NewLowStockScanTask constructs the hourly low-stock scan.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil, asynq.Queue(QueueDefault))
}

// NewLowStockReminderTask constructs the daily low-stock reminder.
func NewLowStockReminderTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockReminder, nil, asynq.Queue(QueueDefault))
}

// NewOutboxRelayTask constructs an outbox relay run.
func NewOutboxRelayTask() *asynq.Task {
	return asynq.NewTask(TaskOutboxRelay, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

// NewExpiryScanTask constructs an expiry scan over the next windowDays days.
func NewExpiryScanTask(windowDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// NewCleanupTask constructs a housekeeping run.
func NewCleanupTask(outboxRetention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{OutboxRetentionHours: int(outboxRetention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCleanup, body, asynq.Queue(QueueDefault)), nil
}
