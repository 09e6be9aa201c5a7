package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"lotkeeper/internal/domain/notifications"
	"lotkeeper/internal/infrastructure/metrics"
	"lotkeeper/pkg/logger"
)

// NotificationScanner raises scheduled notifications.
type NotificationScanner interface {
	ScanLowStock(ctx context.Context) (notifications.ScanResult, error)
	SendLowStockReminders(ctx context.Context) (notifications.ScanResult, error)
	ScanExpiry(ctx context.Context, window time.Duration) (notifications.ScanResult, error)
}

// OutboxRelay delivers pending outbox messages.
type OutboxRelay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	CleanupPublished(ctx context.Context, retention time.Duration) (int64, error)
}

// IdempotencyCleaner removes expired idempotency keys.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Handlers implements every task of the worker.
type Handlers struct {
	Notifications NotificationScanner
	Outbox        OutboxRelay
	Idempotency   IdempotencyCleaner
	Metrics       *metrics.Metrics

	// DefaultExpiryWindow applies when a task carries no window.
	DefaultExpiryWindow time.Duration
	// DefaultOutboxRetention applies when a task carries no retention.
	DefaultOutboxRetention time.Duration
}

// TaskHandlers lists the handler of every task type.
func (h *Handlers) TaskHandlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLowStockScan, Handler: h.HandleLowStockScan},
		{Type: TaskLowStockReminder, Handler: h.HandleLowStockReminder},
		{Type: TaskExpiryScan, Handler: h.HandleExpiryScan},
		{Type: TaskOutboxRelay, Handler: h.HandleOutboxRelay},
		{Type: TaskCleanup, Handler: h.HandleCleanup},
	}
}

func (h *Handlers) track(job string) *metrics.Tracker {
	if h.Metrics == nil {
		return nil
	}
	return h.Metrics.Track(job)
}

// HandleLowStockScan processes TaskLowStockScan.
func (h *Handlers) HandleLowStockScan(ctx context.Context, _ *asynq.Task) error {
	tracker := h.track(TaskLowStockScan)
	res, err := h.Notifications.ScanLowStock(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("low stock scan: %w", err))
	}
	logScan(ctx, "low stock scan completed", res)
	return tracker.End(nil)
}

// HandleLowStockReminder processes TaskLowStockReminder.
func (h *Handlers) HandleLowStockReminder(ctx context.Context, _ *asynq.Task) error {
	tracker := h.track(TaskLowStockReminder)
	res, err := h.Notifications.SendLowStockReminders(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("low stock reminder: %w", err))
	}
	logScan(ctx, "low stock reminders sent", res)
	return tracker.End(nil)
}

// HandleExpiryScan processes TaskExpiryScan.
func (h *Handlers) HandleExpiryScan(ctx context.Context, t *asynq.Task) error {
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode expiry payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	window := h.DefaultExpiryWindow
	if payload.WindowDays > 0 {
		window = time.Duration(payload.WindowDays) * 24 * time.Hour
	}
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}

	tracker := h.track(TaskExpiryScan)
	res, err := h.Notifications.ScanExpiry(ctx, window)
	if err != nil {
		return tracker.End(fmt.Errorf("expiry scan: %w", err))
	}
	logScan(ctx, "expiry scan completed", res)
	return tracker.End(nil)
}

// HandleOutboxRelay processes TaskOutboxRelay: it drains due messages and
// parks exhausted ones in the dead letter table.
func (h *Handlers) HandleOutboxRelay(ctx context.Context, _ *asynq.Task) error {
	tracker := h.track(TaskOutboxRelay)

	processed, err := h.Outbox.ProcessBatch(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("outbox relay: %w", err))
	}
	moved, err := h.Outbox.MoveToDLQ(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("outbox dlq: %w", err))
	}
	if processed > 0 || moved > 0 {
		logger.Info(ctx, "outbox relayed", "processed", processed, "dead_lettered", moved)
	}
	return tracker.End(nil)
}

// HandleCleanup processes TaskCleanup. Both steps run even if one fails.
func (h *Handlers) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := h.DefaultOutboxRetention
	if payload.OutboxRetentionHours > 0 {
		retention = time.Duration(payload.OutboxRetentionHours) * time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	tracker := h.track(TaskCleanup)
	var errs []error

	keys, err := h.Idempotency.CleanupExpired(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	published, err := h.Outbox.CleanupPublished(ctx, retention)
	if err != nil {
		errs = append(errs, err)
	}

	logger.Info(ctx, "cleanup completed",
		"idempotency_keys", keys,
		"outbox_messages", published,
	)
	return tracker.End(errors.Join(errs...))
}

func logScan(ctx context.Context, msg string, res notifications.ScanResult) {
	logger.Info(ctx, msg,
		"matched", res.Matched,
		"created", res.Created,
		"skipped", res.Skipped,
	)
}
