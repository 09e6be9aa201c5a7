package material

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/pkg/logger"
)

// CodePrefix prefixes generated material codes (MAT-2026-00001).
const CodePrefix = "MAT"

// ChangeLog records field-level changes of an updated entity.
type ChangeLog interface {
	LogUpdate(ctx context.Context, entityType string, entityID id.ID, before, after map[string]any) error
}

// CodeGenerator issues sequential catalog codes.
type CodeGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Service provides business logic for the Material catalog and resolves
// lot strategies for withdrawals.
type Service struct {
	repo    Repository
	cache   StrategyCache
	codes   CodeGenerator
	txm     tx.Manager
	changes ChangeLog
}

// NewService creates a new Material service. cache and codes may be nil.
func NewService(repo Repository, cache StrategyCache, codes CodeGenerator) *Service {
	return &Service{repo: repo, cache: cache, codes: codes, txm: tx.Nop{}}
}

// WithChangeLog makes Update record the changed fields in the same
// transaction as the write.
func (s *Service) WithChangeLog(txm tx.Manager, changes ChangeLog) *Service {
	s.txm = txm
	s.changes = changes
	return s
}

var _ allocation.StrategyResolver = (*Service)(nil)

// Create validates and stores a material, generating a code when empty.
func (s *Service) Create(ctx context.Context, m *Material) error {
	if m.Code == "" && s.codes != nil {
		code, err := s.codes.Next(ctx, CodePrefix)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		m.Code = code
	}
	if err := m.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}

	logger.Info(ctx, "material created", "id", m.ID, "code", m.Code)
	return nil
}

// Update stores changed thresholds or default strategy.
func (s *Service) Update(ctx context.Context, m *Material) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if s.changes == nil {
			return s.repo.Update(ctx, m)
		}
		prev, err := s.repo.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		before := prev.auditState()
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		return s.changes.LogUpdate(ctx, auditEntity, m.ID, before, m.auditState())
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, m.ID)
	return nil
}

// GetByID returns a material.
func (s *Service) GetByID(ctx context.Context, materialID id.ID) (*Material, error) {
	return s.repo.GetByID(ctx, materialID)
}

// List returns materials.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Material, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// SetStrategyOverride pins strategy for the material at a warehouse.
func (s *Service) SetStrategyOverride(ctx context.Context, materialID, warehouseID id.ID, strategy allocation.Strategy) error {
	if !strategy.IsValid() {
		return apperror.NewValidation("invalid lot strategy").WithDetail("value", string(strategy))
	}
	if _, err := s.repo.GetByID(ctx, materialID); err != nil {
		return err
	}

	err := s.repo.SetOverride(ctx, StrategyOverride{
		MaterialID:  materialID,
		WarehouseID: warehouseID,
		Strategy:    strategy,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("set strategy override: %w", err)
	}
	s.invalidate(ctx, materialID)

	logger.Info(ctx, "strategy override set",
		"material_id", materialID,
		"warehouse_id", warehouseID,
		"strategy", strategy,
	)
	return nil
}

// ClearStrategyOverride removes the override so the material default applies.
func (s *Service) ClearStrategyOverride(ctx context.Context, materialID, warehouseID id.ID) error {
	if err := s.repo.DeleteOverride(ctx, materialID, warehouseID); err != nil {
		return fmt.Errorf("delete strategy override: %w", err)
	}
	s.invalidate(ctx, materialID)
	return nil
}

// ResolveStrategy returns the warehouse override, else the material
// default, else allocation.DefaultStrategy. Cache failures degrade to a
// repository read.
func (s *Service) ResolveStrategy(ctx context.Context, materialID, warehouseID id.ID) (allocation.Strategy, error) {
	if s.cache != nil {
		strategy, ok, err := s.cache.Get(ctx, materialID, warehouseID)
		if err != nil {
			logger.Warn(ctx, "strategy cache read failed", "error", err)
		} else if ok {
			return strategy, nil
		}
	}

	strategy, err := s.resolveFromRepo(ctx, materialID, warehouseID)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, materialID, warehouseID, strategy); err != nil {
			logger.Warn(ctx, "strategy cache write failed", "error", err)
		}
	}
	return strategy, nil
}

func (s *Service) resolveFromRepo(ctx context.Context, materialID, warehouseID id.ID) (allocation.Strategy, error) {
	override, err := s.repo.GetOverride(ctx, materialID, warehouseID)
	if err != nil {
		return "", fmt.Errorf("get strategy override: %w", err)
	}
	if override != nil && override.Strategy.IsValid() {
		return override.Strategy, nil
	}

	m, err := s.repo.GetByID(ctx, materialID)
	if err != nil {
		return "", err
	}
	if m.DefaultStrategy.IsValid() {
		return m.DefaultStrategy, nil
	}
	return allocation.DefaultStrategy, nil
}

func (s *Service) invalidate(ctx context.Context, materialID id.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMaterial(ctx, materialID); err != nil {
		logger.Warn(ctx, "strategy cache invalidation failed", "material_id", materialID, "error", err)
	}
}
