package allocation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/infrastructure/storage/memory"
)

var (
	material  = id.New()
	warehouse = id.New()
)

func newLot(qty int64, mfg time.Time) allocation.Lot {
	return *allocation.NewLot(material, warehouse, types.NewQuantity(qty), mfg, nil)
}

func withdrawal(qty int64) allocation.WithdrawalRequest {
	return allocation.WithdrawalRequest{
		MaterialID:  material,
		WarehouseID: warehouse,
		Quantity:    types.NewQuantity(qty),
	}
}

type fixedResolver struct {
	strategy allocation.Strategy
	calls    int
}

func (r *fixedResolver) ResolveStrategy(context.Context, id.ID, id.ID) (allocation.Strategy, error) {
	r.calls++
	return r.strategy, nil
}

type sequenceRefs struct{ n atomic.Int64 }

func (s *sequenceRefs) Next(_ context.Context, prefix string) (string, error) {
	return prefix + "-" + string(rune('0'+s.n.Add(1))), nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	conflicts int
	attempts  []int
}

func (m *recordingMetrics) ObserveAllocation(_ allocation.Strategy, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ObserveConflict(allocation.Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) ObserveAttempts(_ allocation.Strategy, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempts)
}

// racingStore drains a lot behind the allocator's back the first n times a
// snapshot is fetched, so the following commit conflicts.
type racingStore struct {
	*memory.LotStore
	victim id.ID
	races  int
}

func (s *racingStore) FetchCandidateLots(ctx context.Context, materialID, warehouseID id.ID) ([]allocation.Lot, error) {
	lots, err := s.LotStore.FetchCandidateLots(ctx, materialID, warehouseID)
	if err != nil || s.races == 0 {
		return lots, err
	}
	s.races--
	err = s.LotStore.CommitDecrements(ctx, []allocation.Take{{LotID: s.victim, Quantity: types.NewQuantity(1)}})
	return lots, err
}

func TestService_PreviewResolvesStrategy(t *testing.T) {
	older := newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := newLot(5, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewLotStore(older, newer)
	resolver := &fixedResolver{strategy: allocation.LIFO}

	svc := allocation.NewService(allocation.Deps{
		Lots:       store,
		TxManager:  tx.Nop{},
		Strategies: resolver,
	}, allocation.DefaultOptions())

	res, err := svc.Preview(context.Background(), withdrawal(3))
	require.NoError(t, err)
	assert.Equal(t, allocation.LIFO, res.Strategy)
	assert.Equal(t, []allocation.Take{{LotID: newer.ID, Quantity: types.NewQuantity(3)}}, res.Lines)

	// explicit strategy wins over the catalog
	req := withdrawal(3)
	req.Strategy = allocation.FIFO
	res, err = svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, older.ID, res.Lines[0].LotID)
	assert.Equal(t, 1, resolver.calls)

	// preview never mutates
	lot, err := store.GetByID(context.Background(), newer.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(5), lot.QuantityOnHand)
}

func TestService_PreviewDefaultsToFIFO(t *testing.T) {
	svc := allocation.NewService(allocation.Deps{
		Lots:      memory.NewLotStore(),
		TxManager: tx.Nop{},
	}, allocation.DefaultOptions())

	res, err := svc.Preview(context.Background(), withdrawal(1))
	require.NoError(t, err)
	assert.Equal(t, allocation.FIFO, res.Strategy)
	assert.Equal(t, types.NewQuantity(1), res.Shortfall)
}

func TestService_WithdrawCommitsAndRunsHooks(t *testing.T) {
	a := newLot(3, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := newLot(5, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewLotStore(a, b)
	ledger := memory.NewMovementLog()
	metrics := &recordingMetrics{}

	svc := allocation.NewService(allocation.Deps{
		Lots:       store,
		TxManager:  tx.Nop{},
		References: &sequenceRefs{},
		Metrics:    metrics,
	}, allocation.DefaultOptions())

	var hooked *allocation.Withdrawal
	svc.RegisterHook(allocation.CommitHookFunc(func(ctx context.Context, w *allocation.Withdrawal) error {
		hooked = w
		return ledger.RecordMovements(ctx, w.Movements())
	}))

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-7"})
	w, err := svc.Withdraw(ctx, withdrawal(10))
	require.NoError(t, err)

	assert.Equal(t, "WD-1", w.Reference)
	assert.Equal(t, "u-7", w.UserID)
	assert.Equal(t, 1, w.Attempts)
	assert.Equal(t, types.NewQuantity(8), w.Result.Fulfilled)
	assert.Equal(t, types.NewQuantity(2), w.Result.Shortfall)
	assert.Same(t, w, hooked)

	for _, lotID := range []id.ID{a.ID, b.ID} {
		lot, err := store.GetByID(ctx, lotID)
		require.NoError(t, err)
		assert.True(t, lot.QuantityOnHand.IsZero())
		assert.Equal(t, 2, lot.Version)
	}

	movements := ledger.Movements()
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, entity.MovementOut, m.Type)
		assert.Equal(t, "WD-1", m.Reference)
		assert.Equal(t, "u-7", m.UserID)
	}
	assert.Equal(t, []string{allocation.OutcomePartial}, metrics.outcomes)
}

func TestService_WithdrawRejectsShortfallWhenPartialDisallowed(t *testing.T) {
	a := newLot(2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewLotStore(a)
	metrics := &recordingMetrics{}

	svc := allocation.NewService(allocation.Deps{
		Lots:      store,
		TxManager: tx.Nop{},
		Metrics:   metrics,
	}, allocation.Options{MaxAttempts: 3, AllowPartial: false})

	_, err := svc.Withdraw(context.Background(), withdrawal(5))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	lot, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), lot.QuantityOnHand, "nothing may be committed")

	// a request can opt in explicitly
	allow := true
	req := withdrawal(5)
	req.AllowPartial = &allow
	w, err := svc.Withdraw(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(3), w.Result.Shortfall)
	assert.Equal(t, []string{allocation.OutcomeRejected, allocation.OutcomePartial}, metrics.outcomes)
}

func TestService_WithdrawRetriesOnConflict(t *testing.T) {
	a := newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := newLot(5, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	store := &racingStore{LotStore: memory.NewLotStore(a, b), victim: a.ID, races: 1}
	metrics := &recordingMetrics{}

	svc := allocation.NewService(allocation.Deps{
		Lots:      store,
		TxManager: tx.Nop{},
		Metrics:   metrics,
	}, allocation.DefaultOptions())

	w, err := svc.Withdraw(context.Background(), withdrawal(5))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Attempts)
	assert.Equal(t, 1, metrics.conflicts)
	assert.Equal(t, []int{2}, metrics.attempts)

	// the second snapshot saw lot a at 4 units and topped up from b
	assert.Equal(t, []allocation.Take{
		{LotID: a.ID, Quantity: types.NewQuantity(4)},
		{LotID: b.ID, Quantity: types.NewQuantity(1)},
	}, w.Result.Lines)
}

func TestService_WithdrawSurfacesConflictAfterMaxAttempts(t *testing.T) {
	a := newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := &racingStore{LotStore: memory.NewLotStore(a), victim: a.ID, races: 2}
	metrics := &recordingMetrics{}

	svc := allocation.NewService(allocation.Deps{
		Lots:      store,
		TxManager: tx.Nop{},
		Metrics:   metrics,
	}, allocation.Options{MaxAttempts: 2, AllowPartial: true})

	_, err := svc.Withdraw(context.Background(), withdrawal(5))
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, 2, metrics.conflicts)
	assert.Equal(t, []string{allocation.OutcomeConflict}, metrics.outcomes)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 2, appErr.Details["attempts"])
}

func TestService_HookFailureFailsWithdrawal(t *testing.T) {
	store := memory.NewLotStore(newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	metrics := &recordingMetrics{}
	svc := allocation.NewService(allocation.Deps{Lots: store, TxManager: tx.Nop{}, Metrics: metrics}, allocation.DefaultOptions())

	boom := errors.New("ledger unavailable")
	calls := 0
	svc.RegisterHook(allocation.CommitHookFunc(func(context.Context, *allocation.Withdrawal) error {
		calls++
		return boom
	}))

	w, err := svc.Withdraw(context.Background(), withdrawal(1))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.ErrorIs(t, err, boom)
	assert.False(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, 1, calls, "a hook error is not retried")
	assert.Empty(t, metrics.outcomes)
}

func TestService_HooksSeeFinalAttempt(t *testing.T) {
	a := newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := newLot(5, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	store := &racingStore{LotStore: memory.NewLotStore(a, b), victim: a.ID, races: 1}
	refs := &sequenceRefs{}

	svc := allocation.NewService(allocation.Deps{
		Lots:       store,
		TxManager:  tx.Nop{},
		References: refs,
	}, allocation.DefaultOptions())

	var seenAttempts int
	var seenReference string
	svc.RegisterHook(allocation.CommitHookFunc(func(_ context.Context, w *allocation.Withdrawal) error {
		seenAttempts = w.Attempts
		seenReference = w.Reference
		return nil
	}))

	w, err := svc.Withdraw(context.Background(), withdrawal(5))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Attempts)
	assert.Equal(t, 2, seenAttempts)
	assert.Equal(t, "WD-1", seenReference)
	assert.Equal(t, int64(1), refs.n.Load(), "the conflicting attempt draws no reference")
}

func TestService_RejectedWithdrawalDrawsNoReference(t *testing.T) {
	store := memory.NewLotStore(newLot(2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	refs := &sequenceRefs{}
	svc := allocation.NewService(allocation.Deps{
		Lots:       store,
		TxManager:  tx.Nop{},
		References: refs,
	}, allocation.Options{MaxAttempts: 3, AllowPartial: false})

	_, err := svc.Withdraw(context.Background(), withdrawal(5))
	require.True(t, apperror.IsInsufficientStock(err))
	assert.Zero(t, refs.n.Load())

	req := withdrawal(1)
	req.Reference = "PICK-42"
	w, err := svc.Withdraw(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "PICK-42", w.Reference)
	assert.Zero(t, refs.n.Load(), "a caller reference is kept")
}

func TestService_WithdrawValidatesBeforeReading(t *testing.T) {
	svc := allocation.NewService(allocation.Deps{Lots: memory.NewLotStore(), TxManager: tx.Nop{}}, allocation.DefaultOptions())

	_, err := svc.Withdraw(context.Background(), withdrawal(0))
	assert.True(t, apperror.IsInvalidRequest(err))
}

// Two commits race for the same lot with proposals computed from the same
// snapshot; their combined take exceeds the lot.
func TestService_ConcurrentCommitsExactlyOneWins(t *testing.T) {
	for round := 0; round < 50; round++ {
		store := memory.NewLotStore(newLot(5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		svc := allocation.NewService(allocation.Deps{Lots: store, TxManager: tx.Nop{}}, allocation.DefaultOptions())
		ctx := context.Background()

		req := withdrawal(4)
		req.Strategy = allocation.FIFO
		proposal, err := svc.Preview(ctx, req)
		require.NoError(t, err)

		var (
			wins      atomic.Int32
			conflicts atomic.Int32
			start     = make(chan struct{})
			g         errgroup.Group
		)
		for i := 0; i < 2; i++ {
			g.Go(func() error {
				<-start
				_, err := svc.Commit(ctx, req, proposal)
				switch {
				case err == nil:
					wins.Add(1)
				case apperror.IsConcurrentModification(err):
					conflicts.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		close(start)
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(1), conflicts.Load())
	}
}
