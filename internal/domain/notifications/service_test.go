package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/event"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/registers/stock"
)

type mockRepo struct {
	created []*Notification
	reads   map[id.ID]string
	roles   []string
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	m.created = append(m.created, n)
	return nil
}

func (m *mockRepo) ExistsSince(_ context.Context, t Type, key string, since time.Time) (bool, error) {
	for _, n := range m.created {
		if n.Type == t && n.DedupKey == key && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListForRoles(_ context.Context, roles []string, _ string, _ ListFilter) ([]Notification, error) {
	m.roles = roles
	out := make([]Notification, 0)
	for _, n := range m.created {
		if n.VisibleTo(roles) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, notificationID id.ID) (*Notification, error) {
	for _, n := range m.created {
		if n.ID == notificationID {
			return n, nil
		}
	}
	return nil, apperror.NewNotFound("notification", notificationID)
}

func (m *mockRepo) MarkRead(_ context.Context, notificationID id.ID, userID string, _ time.Time) error {
	if m.reads == nil {
		m.reads = make(map[id.ID]string)
	}
	m.reads[notificationID] = userID
	return nil
}

type capturePublisher struct {
	events []event.Event
}

func (p *capturePublisher) Publish(_ context.Context, e event.Event) error {
	p.events = append(p.events, e)
	return nil
}

type stubLowStock []stock.LowStockItem

func (s stubLowStock) LowStock(context.Context) ([]stock.LowStockItem, error) {
	return s, nil
}

type stubLots struct {
	lots    []allocation.Lot
	filters []allocation.LotFilter
}

func (s *stubLots) ListExpiring(_ context.Context, before time.Time, filter allocation.LotFilter) ([]allocation.Lot, error) {
	s.filters = append(s.filters, filter)
	out := make([]allocation.Lot, 0)
	for _, l := range s.lots {
		if l.ExpDate != nil && l.ExpDate.Before(before) {
			out = append(out, l)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func newTestService(items []stock.LowStockItem, lots []allocation.Lot) (*Service, *mockRepo, *capturePublisher) {
	repo := &mockRepo{}
	pub := &capturePublisher{}
	svc := NewService(repo, pub, tx.Nop{}, stubLowStock(items), &stubLots{lots: lots})
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pub
}

func lowItem(onHand, minStock, reorder int64) stock.LowStockItem {
	return stock.NewLowStockItem(stock.StockLevel{
		MaterialID:   id.New(),
		MaterialCode: "MAT-00001",
		MaterialName: "Flour",
		Unit:         "kg",
		OnHand:       types.NewQuantity(onHand),
		MinStock:     types.NewQuantity(minStock),
		ReorderPoint: types.NewQuantity(reorder),
	})
}

func TestTargetRoles(t *testing.T) {
	tests := []struct {
		typ  Type
		want []string
	}{
		{TypeLowStock, []string{"inventory_manager", "purchase_manager", "admin", "super_admin"}},
		{TypeLowStockReminder, []string{"purchase_manager", "admin", "super_admin"}},
		{TypeMaterialExpiring, []string{"inventory_manager", "purchase_manager", "admin", "super_admin"}},
		{TypeMaterialExpired, []string{"inventory_manager", "purchase_manager", "admin", "super_admin"}},
		{TypeMaterialShortage, []string{"inventory_manager", "purchase_manager", "production_manager", "super_admin"}},
		{TypeInventoryReceived, []string{"inventory_manager", "purchase_manager", "super_admin"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.TargetRoles())
			assert.True(t, tt.typ.IsValid())
		})
	}

	assert.False(t, Type("PLAN_DEADLINE").IsValid())
	assert.Empty(t, Type("PLAN_DEADLINE").TargetRoles())
}

func TestTargetRoles_ReturnsCopy(t *testing.T) {
	roles := TypeLowStock.TargetRoles()
	roles[0] = "user"
	assert.Equal(t, appctx.RoleInventoryManager, TypeLowStock.TargetRoles()[0])
}

func TestScanLowStock_DeduplicatesPerDay(t *testing.T) {
	items := []stock.LowStockItem{lowItem(0, 10, 20), lowItem(8, 10, 12)}
	svc, repo, pub := newTestService(items, nil)
	ctx := context.Background()

	res, err := svc.ScanLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Matched: 2, Created: 2}, res)
	require.Len(t, repo.created, 2)
	assert.Len(t, pub.events, 2)
	assert.Equal(t, EventCreated, pub.events[0].EventType)

	first := repo.created[0]
	assert.Equal(t, TypeLowStock, first.Type)
	assert.Equal(t, "Critical: Low stock", first.Title)
	assert.Equal(t, true, first.Data["is_critical"])
	assert.Equal(t, "20.0000", first.Data["shortage"])
	assert.Equal(t, "Low stock", repo.created[1].Title)

	res, err = svc.ScanLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Matched: 2, Skipped: 2}, res)
	assert.Len(t, repo.created, 2)
}

func TestSendLowStockReminders_NotDeduplicated(t *testing.T) {
	svc, repo, _ := newTestService([]stock.LowStockItem{lowItem(3, 10, 10)}, nil)
	ctx := context.Background()

	for range 2 {
		res, err := svc.SendLowStockReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
	}
	require.Len(t, repo.created, 2)
	assert.Equal(t, TypeLowStockReminder, repo.created[0].Type)
	assert.Equal(t, TypeLowStockReminder.TargetRoles(), repo.created[0].TargetRoles)
}

func TestScanExpiry(t *testing.T) {
	material, warehouse := id.New(), id.New()
	lot := func(number string, qty int64, exp time.Time) allocation.Lot {
		l := allocation.NewLot(material, warehouse, types.NewQuantity(qty), fixedNow.AddDate(0, -3, 0), &exp)
		l.LotNumber = number
		return *l
	}

	lots := []allocation.Lot{
		lot("L-EXPIRING", 5, fixedNow.AddDate(0, 0, 3)),
		lot("L-EXPIRED", 2, fixedNow.AddDate(0, 0, -1)),
		lot("L-EXPIRED-EMPTY", 0, fixedNow.AddDate(0, 0, -2)),
		lot("L-LATER", 5, fixedNow.AddDate(0, 1, 0)),
	}
	svc, repo, _ := newTestService(nil, lots)

	res, err := svc.ScanExpiry(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Created)

	byLot := make(map[string]*Notification)
	for _, n := range repo.created {
		byLot[n.Data["lot_number"].(string)] = n
	}
	require.Contains(t, byLot, "L-EXPIRING")
	require.Contains(t, byLot, "L-EXPIRED")
	assert.Equal(t, TypeMaterialExpiring, byLot["L-EXPIRING"].Type)
	assert.Equal(t, 3, byLot["L-EXPIRING"].Data["days_left"])
	assert.Equal(t, TypeMaterialExpired, byLot["L-EXPIRED"].Type)

	res, err = svc.ScanExpiry(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Skipped)
}

func TestAfterCommit_ShortageOnly(t *testing.T) {
	svc, repo, _ := newTestService(nil, nil)
	ctx := context.Background()

	full := &allocation.Withdrawal{ID: id.New(), Reference: "WD-1", Result: allocation.Result{
		Requested: types.NewQuantity(3), Fulfilled: types.NewQuantity(3),
	}}
	require.NoError(t, svc.AfterCommit(ctx, full))
	assert.Empty(t, repo.created)

	partial := &allocation.Withdrawal{ID: id.New(), Reference: "WD-2", Result: allocation.Result{
		Requested: types.NewQuantity(10), Fulfilled: types.NewQuantity(8), Shortfall: types.NewQuantity(2),
	}}
	require.NoError(t, svc.AfterCommit(ctx, partial))
	require.Len(t, repo.created, 1)
	assert.Equal(t, TypeMaterialShortage, repo.created[0].Type)
	assert.Equal(t, "2.0000", repo.created[0].Data["shortfall"])
	assert.Contains(t, repo.created[0].TargetRoles, appctx.RoleProductionManager)
}

func TestAfterReceive(t *testing.T) {
	svc, repo, pub := newTestService(nil, nil)
	lot := allocation.NewLot(id.New(), id.New(), types.NewQuantity(4), fixedNow, nil)
	lot.LotNumber = "L-1"

	require.NoError(t, svc.AfterReceive(context.Background(), lot))
	require.Len(t, repo.created, 1)
	assert.Equal(t, TypeInventoryReceived, repo.created[0].Type)
	require.Len(t, pub.events, 1)
	assert.Equal(t, repo.created[0].ID, pub.events[0].AggregateID)
}

func TestListAndMarkRead(t *testing.T) {
	svc, repo, _ := newTestService([]stock.LowStockItem{lowItem(1, 5, 5)}, nil)
	_, err := svc.SendLowStockReminders(context.Background())
	require.NoError(t, err)
	n := repo.created[0]

	t.Run("requires user", func(t *testing.T) {
		_, err := svc.ListForUser(context.Background(), ListFilter{})
		assert.Equal(t, apperror.CodeUnauthorized, mustAppError(t, err).Code)
	})

	t.Run("role without access", func(t *testing.T) {
		ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
			UserID: "u-1", Roles: []string{appctx.RoleInventoryManager},
		})
		list, err := svc.ListForUser(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)

		err = svc.MarkRead(ctx, n.ID)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("purchase manager", func(t *testing.T) {
		ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
			UserID: "u-2", Roles: []string{appctx.RolePurchaseManager},
		})
		list, err := svc.ListForUser(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, svc.MarkRead(ctx, n.ID))
		assert.Equal(t, "u-2", repo.reads[n.ID])
	})

	t.Run("super admin sees every role", func(t *testing.T) {
		ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
			UserID: "root", Roles: []string{appctx.RoleSuperAdmin},
		})
		_, err := svc.ListForUser(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Contains(t, repo.roles, appctx.RoleProductionManager)
	})
}

func TestNotify_RejectsUnknownType(t *testing.T) {
	svc, repo, _ := newTestService(nil, nil)
	err := svc.Notify(context.Background(), New("PLAN_DEADLINE", "x", "y", nil))
	assert.Equal(t, apperror.CodeValidation, mustAppError(t, err).Code)
	assert.Empty(t, repo.created)
}

func mustAppError(t *testing.T, err error) *apperror.AppError {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr
}
