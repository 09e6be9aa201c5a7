package jobs

import (
	"time"

	"github.com/hibiken/asynq"

	"lotkeeper/internal/config"
)

// OutboxRetention is how long published outbox rows are kept.
const OutboxRetention = 7 * 24 * time.Hour

// Schedule builds the cron table of the worker from configuration.
func Schedule(cfg config.WorkerConfig) ([]CronRegistration, error) {
	expiryTask, err := NewExpiryScanTask(cfg.ExpiryWindowDays)
	if err != nil {
		return nil, err
	}
	cleanupTask, err := NewCleanupTask(OutboxRetention)
	if err != nil {
		return nil, err
	}

	retry := []asynq.Option{asynq.MaxRetry(3)}
	return []CronRegistration{
		{Spec: cfg.LowStockCron, Task: NewLowStockScanTask(), Options: retry},
		{Spec: cfg.ExpiryCron, Task: expiryTask, Options: retry},
		{Spec: cfg.LowStockReminderCron, Task: NewLowStockReminderTask(), Options: retry},
		// A missed relay run is picked up by the next one.
		{Spec: cfg.OutboxRelayCron, Task: NewOutboxRelayTask(), Options: []asynq.Option{asynq.Unique(time.Minute)}},
		{Spec: cfg.CleanupCron, Task: cleanupTask, Options: retry},
	}, nil
}
