package stock

import (
	"context"
	"fmt"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/pkg/logger"
)

// Service provides business operations for the stock register.
// Transactions are managed by the caller (allocation and receiving).
type Service struct {
	repo Repository
	rule *Rule
}

// NewService creates a new stock register service. A nil rule falls back
// to DefaultLowStockRule.
func NewService(repo Repository, rule *Rule) *Service {
	if rule == nil {
		rule = MustRule(DefaultLowStockRule)
	}
	return &Service{
		repo: repo,
		rule: rule,
	}
}

var (
	_ allocation.MovementRecorder = (*Service)(nil)
	_ allocation.CommitHook       = (*Service)(nil)
)

// RecordMovements validates and stores ledger rows.
func (s *Service) RecordMovements(ctx context.Context, movements []entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
		}
		if !m.Type.IsValid() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: unknown type %q", i, m.Type))
		}
		if id.IsNil(m.LotID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: lot_id is required", i))
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "recorded stock movements",
		"count", len(movements),
		"type", movements[0].Type,
		"reference", movements[0].Reference,
	)
	return nil
}

// AfterCommit records one OUT movement per withdrawn lot.
func (s *Service) AfterCommit(ctx context.Context, w *allocation.Withdrawal) error {
	return s.RecordMovements(ctx, w.Movements())
}

// Balances returns on-hand quantities per material and warehouse.
func (s *Service) Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	return s.repo.GetBalances(ctx, filter)
}

// Movements returns ledger rows.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]entity.Movement, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return s.repo.ListMovements(ctx, filter)
}

// LowStock returns every material whose level matches the low-stock rule.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	levels, err := s.repo.GetStockLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stock levels: %w", err)
	}

	items := make([]LowStockItem, 0)
	for _, level := range levels {
		matched, err := s.rule.Matches(level)
		if err != nil {
			return nil, err
		}
		if matched {
			items = append(items, NewLowStockItem(level))
		}
	}
	return items, nil
}
