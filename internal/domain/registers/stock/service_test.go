package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

type mockRepo struct {
	created []entity.Movement
	levels  []StockLevel
	filter  MovementFilter
	err     error
}

func (m *mockRepo) CreateMovements(_ context.Context, movements []entity.Movement) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, movements...)
	return nil
}

func (m *mockRepo) ListMovements(_ context.Context, filter MovementFilter) ([]entity.Movement, error) {
	m.filter = filter
	return m.created, nil
}

func (m *mockRepo) GetBalances(context.Context, BalanceFilter) ([]Balance, error) {
	return nil, nil
}

func (m *mockRepo) GetStockLevels(context.Context) ([]StockLevel, error) {
	return m.levels, m.err
}

func TestRecordMovements_Validates(t *testing.T) {
	lotID, material, warehouse := id.New(), id.New(), id.New()
	valid := entity.NewMovement(entity.MovementOut, lotID, material, warehouse, types.NewQuantity(2), "WD-1")

	tests := []struct {
		name   string
		mutate func(m *entity.Movement)
	}{
		{"zero quantity", func(m *entity.Movement) { m.Quantity = 0 }},
		{"unknown type", func(m *entity.Movement) { m.Type = "TRANSFER" }},
		{"missing lot", func(m *entity.Movement) { m.LotID = id.Nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			m := valid
			tt.mutate(&m)

			err := NewService(repo, nil).RecordMovements(context.Background(), []entity.Movement{m})
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Empty(t, repo.created)
		})
	}

	repo := &mockRepo{}
	require.NoError(t, NewService(repo, nil).RecordMovements(context.Background(), []entity.Movement{valid}))
	assert.Len(t, repo.created, 1)
}

func TestRecordMovements_WrapsRepoError(t *testing.T) {
	boom := errors.New("copy failed")
	repo := &mockRepo{err: boom}
	m := entity.NewMovement(entity.MovementIn, id.New(), id.New(), id.New(), types.NewQuantity(1), "GR-1")

	err := NewService(repo, nil).RecordMovements(context.Background(), []entity.Movement{m})
	assert.ErrorIs(t, err, boom)
}

func TestAfterCommit_RecordsOutMovements(t *testing.T) {
	repo := &mockRepo{}
	lotA, lotB := id.New(), id.New()
	w := &allocation.Withdrawal{
		Reference: "WD-2026-00001",
		Reason:    "production",
		UserID:    "u-1",
		Result: allocation.Result{
			MaterialID:  id.New(),
			WarehouseID: id.New(),
			Lines: []allocation.Take{
				{LotID: lotA, Quantity: types.NewQuantity(3)},
				{LotID: lotB, Quantity: types.NewQuantity(1)},
			},
		},
	}

	require.NoError(t, NewService(repo, nil).AfterCommit(context.Background(), w))
	require.Len(t, repo.created, 2)
	assert.Equal(t, lotA, repo.created[0].LotID)
	assert.Equal(t, entity.MovementOut, repo.created[0].Type)
	assert.Equal(t, types.NewQuantity(-3), repo.created[0].SignedQuantity())
	assert.Equal(t, "production", repo.created[1].Reason)
}

func TestAfterCommit_EmptyWithdrawal(t *testing.T) {
	repo := &mockRepo{}
	w := &allocation.Withdrawal{Result: allocation.Result{Lines: []allocation.Take{}}}

	require.NoError(t, NewService(repo, nil).AfterCommit(context.Background(), w))
	assert.Empty(t, repo.created)
}

func TestMovements_ClampsLimit(t *testing.T) {
	repo := &mockRepo{}
	_, err := NewService(repo, nil).Movements(context.Background(), MovementFilter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, repo.filter.Limit)
}

func TestLowStock(t *testing.T) {
	repo := &mockRepo{levels: []StockLevel{
		{MaterialCode: "FLOUR", OnHand: types.NewQuantity(0), MinStock: types.NewQuantity(10), ReorderPoint: types.NewQuantity(20)},
		{MaterialCode: "SUGAR", OnHand: types.NewQuantity(8), MinStock: types.NewQuantity(10), ReorderPoint: types.NewQuantity(12)},
		{MaterialCode: "SALT", OnHand: types.NewQuantity(50), MinStock: types.NewQuantity(10), ReorderPoint: types.NewQuantity(20)},
		{MaterialCode: "YEAST", OnHand: types.NewQuantity(1), MinStock: 0},
	}}

	items, err := NewService(repo, nil).LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "FLOUR", items[0].MaterialCode)
	assert.True(t, items[0].IsCritical)
	assert.Equal(t, types.NewQuantity(20), items[0].Shortage)

	assert.Equal(t, "SUGAR", items[1].MaterialCode)
	assert.False(t, items[1].IsCritical)
	assert.Equal(t, types.NewQuantity(4), items[1].Shortage)
}

func TestRule(t *testing.T) {
	rule, err := NewRule("on_hand <= reorder_point")
	require.NoError(t, err)

	hit, err := rule.Matches(StockLevel{OnHand: types.NewQuantity(5), ReorderPoint: types.NewQuantity(5)})
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = NewRule("on_hand + 1.0")
	assert.Error(t, err, "non-bool rules are rejected")

	_, err = NewRule("unknown_var > 1.0")
	assert.Error(t, err)

	assert.Equal(t, DefaultLowStockRule, MustRule(DefaultLowStockRule).String())
}

func TestNewLowStockItem(t *testing.T) {
	item := NewLowStockItem(StockLevel{OnHand: types.NewQuantity(4), ReorderPoint: types.NewQuantity(10)})
	assert.True(t, item.IsCritical)
	assert.Equal(t, types.NewQuantity(6), item.Shortage)

	item = NewLowStockItem(StockLevel{OnHand: types.NewQuantity(12), ReorderPoint: types.NewQuantity(10)})
	assert.False(t, item.IsCritical)
	assert.True(t, item.Shortage.IsZero())
}
