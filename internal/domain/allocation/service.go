package allocation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/tx"
	"lotkeeper/pkg/logger"
)

// ReferencePrefix prefixes generated withdrawal references (WD-2026-00001).
const ReferencePrefix = "WD"

// Options tunes withdrawal policy.
type Options struct {
	// MaxAttempts bounds optimistic retries of Withdraw.
	MaxAttempts int
	// AllowPartial is the default when a request does not say.
	AllowPartial bool
}

// DefaultOptions returns the standard withdrawal policy.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, AllowPartial: true}
}

// Deps are the collaborators of Service. Lots and TxManager are required.
type Deps struct {
	Lots       LotStore
	TxManager  tx.Manager
	Strategies StrategyResolver
	References ReferenceGenerator
	Metrics    Metrics
}

// Service runs withdrawals: resolve a strategy, allocate against a fresh
// snapshot, commit, and retry on concurrent modification.
type Service struct {
	lots       LotStore
	txManager  tx.Manager
	strategies StrategyResolver
	references ReferenceGenerator
	metrics    Metrics
	hooks      []CommitHook
	opts       Options
	tracer     trace.Tracer
	now        func() time.Time
}

// NewService creates a new allocation service.
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		lots:       deps.Lots,
		txManager:  deps.TxManager,
		strategies: deps.Strategies,
		references: deps.References,
		metrics:    metrics,
		opts:       opts,
		tracer:     otel.Tracer("lotkeeper/allocation"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterHook adds a hook executed inside every commit transaction, in
// registration order.
func (s *Service) RegisterHook(h CommitHook) {
	s.hooks = append(s.hooks, h)
}

// ResolveStrategy returns the request strategy or the configured default.
func (s *Service) ResolveStrategy(ctx context.Context, req WithdrawalRequest) (Strategy, error) {
	if req.Strategy != "" {
		return req.Strategy, nil
	}
	if s.strategies == nil {
		return DefaultStrategy, nil
	}
	strategy, err := s.strategies.ResolveStrategy(ctx, req.MaterialID, req.WarehouseID)
	if err != nil {
		return "", fmt.Errorf("resolve strategy: %w", err)
	}
	if !strategy.IsValid() {
		return DefaultStrategy, nil
	}
	return strategy, nil
}

// Preview computes an allocation against the current snapshot without
// changing anything.
func (s *Service) Preview(ctx context.Context, req WithdrawalRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	strategy, err := s.ResolveStrategy(ctx, req)
	if err != nil {
		return Result{}, err
	}
	req.Strategy = strategy

	lots, err := s.lots.FetchCandidateLots(ctx, req.MaterialID, req.WarehouseID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch candidate lots: %w", err)
	}

	return Allocate(req, lots)
}

// Commit applies res in one transaction together with every registered
// hook. A concurrent modification error means the snapshot behind res is
// stale and allocation has to be re-run.
func (s *Service) Commit(ctx context.Context, req WithdrawalRequest, res Result) (*Withdrawal, error) {
	return s.commit(ctx, req, res, 1)
}

// commit stamps attempt before any hook sees the withdrawal. A generated
// reference is drawn after the decrements, inside the same transaction.
func (s *Service) commit(ctx context.Context, req WithdrawalRequest, res Result, attempt int) (*Withdrawal, error) {
	w := &Withdrawal{
		ID:          id.New(),
		Reference:   req.Reference,
		Reason:      req.Reason,
		UserID:      appctx.GetUserID(ctx),
		Result:      res,
		Attempts:    attempt,
		CommittedAt: s.now(),
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lots.CommitDecrements(ctx, res.Lines); err != nil {
			return err
		}
		if w.Reference == "" && s.references != nil {
			ref, err := s.references.Next(ctx, ReferencePrefix)
			if err != nil {
				return fmt.Errorf("generate reference: %w", err)
			}
			w.Reference = ref
		}
		for _, h := range s.hooks {
			if err := h.AfterCommit(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Withdraw allocates and commits req, re-running allocation on a fresh
// snapshot after each concurrent modification, up to MaxAttempts. A
// shortfall is rejected with INSUFFICIENT_STOCK unless partial fulfillment
// is allowed.
func (s *Service) Withdraw(ctx context.Context, req WithdrawalRequest) (*Withdrawal, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.Withdraw", trace.WithAttributes(
		attribute.String("material_id", req.MaterialID.String()),
		attribute.String("warehouse_id", req.WarehouseID.String()),
		attribute.String("quantity", req.Quantity.String()),
	))
	defer span.End()

	w, err := s.withdraw(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("strategy", w.Result.Strategy.String()),
		attribute.Int("attempts", w.Attempts),
	)
	return w, nil
}

func (s *Service) withdraw(ctx context.Context, req WithdrawalRequest) (*Withdrawal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	allowPartial := s.opts.AllowPartial
	if req.AllowPartial != nil {
		allowPartial = *req.AllowPartial
	}

	var (
		lastErr      error
		lastStrategy Strategy
	)
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		res, err := s.Preview(ctx, req)
		if err != nil {
			return nil, err
		}

		if res.IsPartial() && !allowPartial {
			s.metrics.ObserveAllocation(res.Strategy, OutcomeRejected, res.Shortfall.Float64())
			return nil, apperror.NewInsufficientStock(
				req.MaterialID.String(), res.Requested.String(), res.Fulfilled.String(),
			).WithDetail("warehouse_id", req.WarehouseID.String())
		}

		w, err := s.commit(ctx, req, res, attempt)
		if err == nil {
			s.metrics.ObserveAllocation(res.Strategy, res.Outcome(), res.Shortfall.Float64())
			s.metrics.ObserveAttempts(res.Strategy, attempt)
			logger.Info(ctx, "withdrawal committed",
				"reference", w.Reference,
				"material_id", req.MaterialID,
				"warehouse_id", req.WarehouseID,
				"strategy", res.Strategy,
				"fulfilled", res.Fulfilled.String(),
				"shortfall", res.Shortfall.String(),
				"lots", len(res.Lines),
				"attempt", attempt,
			)
			return w, nil
		}
		if !apperror.IsConcurrentModification(err) {
			return nil, fmt.Errorf("commit withdrawal: %w", err)
		}

		lastErr = err
		lastStrategy = res.Strategy
		s.metrics.ObserveConflict(res.Strategy)
		logger.Warn(ctx, "withdrawal conflicted, retrying with fresh snapshot",
			"material_id", req.MaterialID,
			"warehouse_id", req.WarehouseID,
			"attempt", attempt,
			"max_attempts", s.opts.MaxAttempts,
		)
	}

	s.metrics.ObserveAllocation(lastStrategy, OutcomeConflict, 0)
	if appErr, ok := apperror.AsAppError(lastErr); ok {
		return nil, appErr.WithDetail("attempts", s.opts.MaxAttempts)
	}
	return nil, lastErr
}
