package allocation

import (
	"context"
	"time"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
)

// LotStore is the collaborator the allocator reads snapshots from and
// commits decrements to.
type LotStore interface {
	// FetchCandidateLots returns every lot of the material at the warehouse,
	// empty lots included. No locks are taken.
	FetchCandidateLots(ctx context.Context, materialID, warehouseID id.ID) ([]Lot, error)

	// CommitDecrements applies all takes or none. It re-validates each lot's
	// on-hand quantity and fails with a concurrent modification error when a
	// lot holds less than its take.
	CommitDecrements(ctx context.Context, takes []Take) error
}

// LotFilter narrows lot listings.
type LotFilter struct {
	MaterialID   *id.ID
	WarehouseID  *id.ID
	IncludeEmpty bool
	// ExpiresBefore keeps lots with an expiry date before the given time.
	ExpiresBefore *time.Time
	Limit         int
	Offset        int
}

// LotRepository extends LotStore with the lot reads and writes used by
// receiving and the background scans.
type LotRepository interface {
	LotStore

	Create(ctx context.Context, lot *Lot) error
	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)
	List(ctx context.Context, filter LotFilter) ([]Lot, error)
}

// StrategyResolver resolves the configured strategy of a material at a
// warehouse.
type StrategyResolver interface {
	ResolveStrategy(ctx context.Context, materialID, warehouseID id.ID) (Strategy, error)
}

// MovementRecorder writes inventory ledger rows.
type MovementRecorder interface {
	RecordMovements(ctx context.Context, movements []entity.Movement) error
}

// CommitHook runs inside the commit transaction after the decrements are
// applied. An error rolls the whole withdrawal back.
type CommitHook interface {
	AfterCommit(ctx context.Context, w *Withdrawal) error
}

// CommitHookFunc adapts a function to CommitHook.
type CommitHookFunc func(ctx context.Context, w *Withdrawal) error

func (f CommitHookFunc) AfterCommit(ctx context.Context, w *Withdrawal) error {
	return f(ctx, w)
}

// ReferenceGenerator issues withdrawal reference numbers.
type ReferenceGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Metrics observes allocation outcomes.
type Metrics interface {
	ObserveAllocation(strategy Strategy, outcome string, shortfall float64)
	ObserveConflict(strategy Strategy)
	// ObserveAttempts records how many commits a successful withdrawal took.
	ObserveAttempts(strategy Strategy, attempts int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAllocation(Strategy, string, float64) {}
func (nopMetrics) ObserveConflict(Strategy)                    {}
func (nopMetrics) ObserveAttempts(Strategy, int)               {}
