package notifications

import (
	"context"
	"fmt"
	"math"
	"time"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/event"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/registers/stock"
	"lotkeeper/pkg/logger"
)

const (
	// EventCreated is the outbox event type of a stored notification.
	EventCreated = "notification.created"

	// dedupWindow suppresses repeated scan alerts for the same subject.
	dedupWindow = 24 * time.Hour

	expiryPageSize = 500
)

// LowStockSource returns the materials currently below threshold.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]stock.LowStockItem, error)
}

// LotLister lists lots for the expiry scan.
type LotLister interface {
	ListExpiring(ctx context.Context, before time.Time, filter allocation.LotFilter) ([]allocation.Lot, error)
}

// ScanResult counts notifications created by a scan.
type ScanResult struct {
	Matched int
	Created int
	Skipped int
}

// Service creates, scans and lists notifications.
type Service struct {
	repo      Repository
	publisher event.Publisher
	txManager tx.Manager
	lowStock  LowStockSource
	lots      LotLister
	now       func() time.Time
}

// NewService creates a new notification service.
func NewService(repo Repository, publisher event.Publisher, txManager tx.Manager, lowStock LowStockSource, lots LotLister) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		txManager: txManager,
		lowStock:  lowStock,
		lots:      lots,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ allocation.CommitHook  = (*Service)(nil)
	_ allocation.ReceiveHook = (*Service)(nil)
)

// Notify stores n and its outbox event in one transaction.
func (s *Service) Notify(ctx context.Context, n *Notification) error {
	if !n.Type.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown notification type %q", n.Type))
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		if s.publisher == nil {
			return nil
		}
		return s.publisher.Publish(ctx, event.Event{
			AggregateType: "notification",
			AggregateID:   n.ID,
			EventType:     EventCreated,
			Payload:       n,
		})
	})
}

// notifyOnce skips n when the same type and dedup key was raised within the
// dedup window.
func (s *Service) notifyOnce(ctx context.Context, n *Notification) (bool, error) {
	exists, err := s.repo.ExistsSince(ctx, n.Type, n.DedupKey, s.now().Add(-dedupWindow))
	if err != nil {
		return false, fmt.Errorf("check duplicate notification: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.Notify(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// ScanLowStock raises LOW_STOCK for every material matching the low-stock
// rule, at most once a day per material.
func (s *Service) ScanLowStock(ctx context.Context) (ScanResult, error) {
	items, err := s.lowStock.LowStock(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("load low stock: %w", err)
	}

	res := ScanResult{Matched: len(items)}
	for _, item := range items {
		n := lowStockNotification(TypeLowStock, item)
		created, err := s.notifyOnce(ctx, n)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	logger.Info(ctx, "low stock scan finished",
		"matched", res.Matched, "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

// SendLowStockReminders raises LOW_STOCK_REMINDER for every material still
// below threshold. Reminders are not deduplicated.
func (s *Service) SendLowStockReminders(ctx context.Context) (ScanResult, error) {
	items, err := s.lowStock.LowStock(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("load low stock: %w", err)
	}

	res := ScanResult{Matched: len(items)}
	for _, item := range items {
		if err := s.Notify(ctx, lowStockNotification(TypeLowStockReminder, item)); err != nil {
			return res, err
		}
		res.Created++
	}

	logger.Info(ctx, "low stock reminders sent", "count", res.Created)
	return res, nil
}

func lowStockNotification(t Type, item stock.LowStockItem) *Notification {
	title := "Low stock"
	if t == TypeLowStockReminder {
		title = "Low stock reminder"
	}
	if item.IsCritical {
		title = "Critical: " + title
	}

	n := New(t, title,
		fmt.Sprintf("%s (%s) has %s %s on hand, minimum is %s",
			item.MaterialName, item.MaterialCode, item.OnHand, item.Unit, item.MinStock),
		map[string]any{
			"material_id":   item.MaterialID.String(),
			"material_code": item.MaterialCode,
			"on_hand":       item.OnHand.String(),
			"min_stock":     item.MinStock.String(),
			"reorder_point": item.ReorderPoint.String(),
			"shortage":      item.Shortage.String(),
			"is_critical":   item.IsCritical,
		})
	n.DedupKey = item.MaterialID.String()
	return n
}

// ScanExpiry raises MATERIAL_EXPIRING for lots expiring within window and
// MATERIAL_EXPIRED for expired lots that still hold stock. Each lot is
// reported at most once a day per type.
func (s *Service) ScanExpiry(ctx context.Context, window time.Duration) (ScanResult, error) {
	now := s.now()
	horizon := now.Add(window)

	var res ScanResult
	for offset := 0; ; offset += expiryPageSize {
		lots, err := s.lots.ListExpiring(ctx, horizon, allocation.LotFilter{
			Limit:  expiryPageSize,
			Offset: offset,
		})
		if err != nil {
			return res, fmt.Errorf("list expiring lots: %w", err)
		}

		for i := range lots {
			lot := &lots[i]
			if lot.ExpDate == nil || !lot.QuantityOnHand.IsPositive() {
				continue
			}
			res.Matched++

			created, err := s.notifyOnce(ctx, expiryNotification(lot, now))
			if err != nil {
				return res, err
			}
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}

		if len(lots) < expiryPageSize {
			break
		}
	}

	logger.Info(ctx, "expiry scan finished",
		"matched", res.Matched, "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

func expiryNotification(lot *allocation.Lot, now time.Time) *Notification {
	data := map[string]any{
		"lot_id":       lot.ID.String(),
		"lot_number":   lot.LotNumber,
		"material_id":  lot.MaterialID.String(),
		"warehouse_id": lot.WarehouseID.String(),
		"quantity":     lot.QuantityOnHand.String(),
		"exp_date":     lot.ExpDate.Format(time.DateOnly),
	}

	var n *Notification
	if lot.IsExpired(now) {
		n = New(TypeMaterialExpired, "Lot expired",
			fmt.Sprintf("Lot %s expired on %s with %s still on hand",
				lot.LotNumber, lot.ExpDate.Format(time.DateOnly), lot.QuantityOnHand),
			data)
	} else {
		days := int(math.Ceil(lot.ExpDate.Sub(now).Hours() / 24))
		data["days_left"] = days
		n = New(TypeMaterialExpiring, "Lot expiring soon",
			fmt.Sprintf("Lot %s expires in %d day(s) on %s",
				lot.LotNumber, days, lot.ExpDate.Format(time.DateOnly)),
			data)
	}
	n.DedupKey = lot.ID.String()
	return n
}

// AfterCommit raises MATERIAL_SHORTAGE when a withdrawal could not be
// fully served.
func (s *Service) AfterCommit(ctx context.Context, w *allocation.Withdrawal) error {
	if !w.Result.IsPartial() {
		return nil
	}

	r := w.Result
	n := New(TypeMaterialShortage, "Material shortage",
		fmt.Sprintf("Withdrawal %s fulfilled %s of %s, short by %s",
			w.Reference, r.Fulfilled, r.Requested, r.Shortfall),
		map[string]any{
			"withdrawal_id": w.ID.String(),
			"reference":     w.Reference,
			"material_id":   r.MaterialID.String(),
			"warehouse_id":  r.WarehouseID.String(),
			"requested":     r.Requested.String(),
			"fulfilled":     r.Fulfilled.String(),
			"shortfall":     r.Shortfall.String(),
		})
	n.DedupKey = w.ID.String()
	return s.Notify(ctx, n)
}

// AfterReceive raises INVENTORY_RECEIVED for a stored lot.
func (s *Service) AfterReceive(ctx context.Context, lot *allocation.Lot) error {
	n := New(TypeInventoryReceived, "Inventory received",
		fmt.Sprintf("Lot %s received with %s on hand", lot.LotNumber, lot.QuantityOnHand),
		map[string]any{
			"lot_id":       lot.ID.String(),
			"lot_number":   lot.LotNumber,
			"material_id":  lot.MaterialID.String(),
			"warehouse_id": lot.WarehouseID.String(),
			"quantity":     lot.QuantityOnHand.String(),
		})
	n.DedupKey = lot.ID.String()
	return s.Notify(ctx, n)
}

// ListForUser returns the notifications addressed to the roles of the
// user in ctx.
func (s *Service) ListForUser(ctx context.Context, filter ListFilter) ([]Notification, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	roles := user.Roles
	if user.HasAnyRole(appctx.RoleSuperAdmin) {
		roles = allRoles()
	}
	return s.repo.ListForRoles(ctx, roles, user.UserID, filter)
}

// MarkRead marks a notification read for the user in ctx.
func (s *Service) MarkRead(ctx context.Context, notificationID id.ID) error {
	user := appctx.GetUser(ctx)
	if user == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if !n.VisibleTo(user.Roles) {
		return apperror.NewNotFound("notification", notificationID)
	}
	return s.repo.MarkRead(ctx, notificationID, user.UserID, s.now())
}

func allRoles() []string {
	return []string{
		appctx.RoleSuperAdmin, appctx.RoleAdmin, appctx.RoleInventoryManager,
		appctx.RoleProductionManager, appctx.RolePurchaseManager, appctx.RoleUser,
	}
}
