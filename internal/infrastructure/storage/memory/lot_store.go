// Package memory provides in-process implementations of the lot store and
// the movement ledger. They back tests and single-process tooling; atomicity
// comes from a mutex rather than a database transaction, so hook failures
// after CommitDecrements are not rolled back.
package memory

import (
	"context"
	"slices"
	"sync"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

// LotStore keeps lots in a map guarded by a mutex.
type LotStore struct {
	mu   sync.RWMutex
	lots map[id.ID]allocation.Lot
}

// NewLotStore creates a store seeded with lots.
func NewLotStore(lots ...allocation.Lot) *LotStore {
	s := &LotStore{lots: make(map[id.ID]allocation.Lot, len(lots))}
	for _, l := range lots {
		s.lots[l.ID] = cloneLot(l)
	}
	return s
}

var _ allocation.LotRepository = (*LotStore)(nil)

// FetchCandidateLots returns a copy of every lot of the material at the warehouse.
func (s *LotStore) FetchCandidateLots(_ context.Context, materialID, warehouseID id.ID) ([]allocation.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]allocation.Lot, 0)
	for _, l := range s.lots {
		if l.MaterialID == materialID && l.WarehouseID == warehouseID {
			out = append(out, cloneLot(l))
		}
	}
	// Map iteration order is random; keep snapshots stable for callers.
	slices.SortFunc(out, func(a, b allocation.Lot) int { return id.Compare(a.ID, b.ID) })
	return out, nil
}

// CommitDecrements validates every take against the current quantities and
// applies them only if all pass.
func (s *LotStore) CommitDecrements(_ context.Context, takes []allocation.Take) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	needed := make(map[id.ID]types.Quantity, len(takes))
	for _, t := range takes {
		if !t.Quantity.IsPositive() {
			return apperror.NewInvalidRequest("take quantity must be positive").
				WithDetail("lot_id", t.LotID.String())
		}
		needed[t.LotID] += t.Quantity
	}

	for lotID, qty := range needed {
		lot, ok := s.lots[lotID]
		if !ok {
			return apperror.NewNotFound("lot", lotID)
		}
		if lot.QuantityOnHand < qty {
			return apperror.NewConcurrencyConflict(lotID, qty.String(), lot.QuantityOnHand.String())
		}
	}

	for lotID, qty := range needed {
		lot := s.lots[lotID]
		lot.QuantityOnHand -= qty
		lot.Touch()
		s.lots[lotID] = lot
	}
	return nil
}

// Create stores a new lot.
func (s *LotStore) Create(_ context.Context, lot *allocation.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[lot.ID]; exists {
		return apperror.NewDuplicate("lot", "id", lot.ID.String())
	}
	s.lots[lot.ID] = cloneLot(*lot)
	return nil
}

// GetByID returns a copy of one lot.
func (s *LotStore) GetByID(_ context.Context, lotID id.ID) (*allocation.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID)
	}
	out := cloneLot(lot)
	return &out, nil
}

// List returns lots matching filter ordered by id.
func (s *LotStore) List(_ context.Context, filter allocation.LotFilter) ([]allocation.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]allocation.Lot, 0)
	for _, l := range s.lots {
		if filter.MaterialID != nil && l.MaterialID != *filter.MaterialID {
			continue
		}
		if filter.WarehouseID != nil && l.WarehouseID != *filter.WarehouseID {
			continue
		}
		if !filter.IncludeEmpty && !l.QuantityOnHand.IsPositive() {
			continue
		}
		if filter.ExpiresBefore != nil && (l.ExpDate == nil || !l.ExpDate.Before(*filter.ExpiresBefore)) {
			continue
		}
		out = append(out, cloneLot(l))
	}
	slices.SortFunc(out, func(a, b allocation.Lot) int { return id.Compare(a.ID, b.ID) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []allocation.Lot{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func cloneLot(l allocation.Lot) allocation.Lot {
	if l.ExpDate != nil {
		exp := *l.ExpDate
		l.ExpDate = &exp
	}
	return l
}

// MovementLog is an append-only in-memory ledger.
type MovementLog struct {
	mu        sync.Mutex
	movements []entity.Movement
}

// NewMovementLog creates an empty ledger.
func NewMovementLog() *MovementLog {
	return &MovementLog{}
}

// RecordMovements appends movements.
func (l *MovementLog) RecordMovements(_ context.Context, movements []entity.Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.movements = append(l.movements, movements...)
	return nil
}

// Movements returns a copy of every recorded movement.
func (l *MovementLog) Movements() []entity.Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.movements)
}
