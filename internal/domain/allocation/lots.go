package allocation

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/pkg/logger"
)

// ReceiveHook runs inside the receiving transaction after a lot is stored.
type ReceiveHook interface {
	AfterReceive(ctx context.Context, lot *Lot) error
}

// LotService receives lots and serves lot queries.
type LotService struct {
	repo      LotRepository
	txManager tx.Manager
	movements MovementRecorder
	hooks     []ReceiveHook
}

// NewLotService creates a new lot service. movements may be nil.
func NewLotService(repo LotRepository, txManager tx.Manager, movements MovementRecorder) *LotService {
	return &LotService{
		repo:      repo,
		txManager: txManager,
		movements: movements,
	}
}

// RegisterHook adds a hook run after every receipt.
func (s *LotService) RegisterHook(h ReceiveHook) {
	s.hooks = append(s.hooks, h)
}

// Receive stores a new lot and records the matching IN movement.
func (s *LotService) Receive(ctx context.Context, lot *Lot, reference string) error {
	if err := lot.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		if s.movements != nil && lot.QuantityOnHand.IsPositive() {
			m := entity.NewMovement(entity.MovementIn, lot.ID, lot.MaterialID, lot.WarehouseID,
				lot.QuantityOnHand, reference)
			if err := s.movements.RecordMovements(ctx, []entity.Movement{m}); err != nil {
				return err
			}
		}
		for _, h := range s.hooks {
			if err := h.AfterReceive(ctx, lot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "lot received",
		"lot_id", lot.ID,
		"lot_number", lot.LotNumber,
		"material_id", lot.MaterialID,
		"quantity", lot.QuantityOnHand.String(),
	)
	return nil
}

// GetByID returns a single lot.
func (s *LotService) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	return s.repo.GetByID(ctx, lotID)
}

// List returns lots matching filter.
func (s *LotService) List(ctx context.Context, filter LotFilter) ([]Lot, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// ListExpiring returns lots with stock that expire before the given time.
// The remaining fields of filter narrow and page the result.
func (s *LotService) ListExpiring(ctx context.Context, before time.Time, filter LotFilter) ([]Lot, error) {
	filter.ExpiresBefore = &before
	filter.IncludeEmpty = false
	return s.List(ctx, filter)
}

// ListExpired returns lots with stock that expired before now.
func (s *LotService) ListExpired(ctx context.Context, now time.Time, filter LotFilter) ([]Lot, error) {
	return s.ListExpiring(ctx, now, filter)
}
