// Package app builds the dependency graph shared by the server, the worker
// and the seed tool.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lotkeeper/internal/config"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/auth"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/domain/notifications"
	"lotkeeper/internal/domain/registers/stock"
	"lotkeeper/internal/infrastructure/cache"
	v1 "lotkeeper/internal/infrastructure/http/v1"
	"lotkeeper/internal/infrastructure/http/v1/handlers"
	"lotkeeper/internal/infrastructure/metrics"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/internal/infrastructure/storage/postgres/catalog_repo"
	"lotkeeper/internal/infrastructure/storage/postgres/lot_repo"
	"lotkeeper/internal/infrastructure/storage/postgres/notification_repo"
	"lotkeeper/internal/infrastructure/storage/postgres/register_repo"
	"lotkeeper/internal/jobs"
	"lotkeeper/pkg/logger"
	"lotkeeper/pkg/numerator"
)

// App holds every long-lived component.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pool    *postgres.Pool
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Cache   *cache.StrategyCache

	TxManager   *postgres.TxManager
	Numerator   *numerator.Service
	Idempotency *postgres.IdempotencyStore
	Outbox      *postgres.OutboxRelay
	JWT         *auth.JWTService

	Allocations   *allocation.Service
	Lots          *allocation.LotService
	LotRepo       *lot_repo.LotRepo
	Stock         *stock.Service
	Materials     *material.Service
	Warehouses    *warehouse.Service
	Notifications *notifications.Service
	Audit         *audit.Service
}

// New connects to PostgreSQL and Redis and wires the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.AppName = cfg.DBAppName

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	a := &App{
		Config:  cfg,
		Logger:  log,
		Pool:    pool,
		Redis:   rdb,
		Metrics: metrics.New(),
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	a.registerPoolGauges()
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config

	txm := postgres.NewTxManager(a.Pool)
	a.TxManager = txm
	a.Numerator = numerator.NewWithQuerierFunc(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})
	// Withdrawal references stay gap-free; catalog codes only need to be unique.
	if cfg.CatalogCodeRange > 0 {
		for _, prefix := range []string{material.CodePrefix, warehouse.CodePrefix} {
			a.Numerator.SetOptions(prefix, &numerator.Options{
				Strategy:  numerator.StrategyCached,
				RangeSize: cfg.CatalogCodeRange,
			})
		}
	}
	a.Idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	a.Outbox = postgres.NewOutboxRelay(txm, cfg.Worker.OutboxBatchSize, postgres.LogOutboxHandler())

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Issuer = cfg.JWTIssuer
	a.JWT = auth.NewJWTService(jwtCfg)

	rule, err := stock.NewRule(cfg.Worker.LowStockRule)
	if err != nil {
		return fmt.Errorf("low stock rule: %w", err)
	}
	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	if err != nil {
		return err
	}

	a.LotRepo = lot_repo.NewLotRepo(txm)
	a.Stock = stock.NewService(register_repo.NewStockRepo(txm), rule)
	a.Cache = cache.NewStrategyCache(a.Redis, cfg.StrategyCacheTTL)
	a.Warehouses = warehouse.NewService(catalog_repo.NewWarehouseRepo(txm), a.Numerator)
	a.Audit = audit.NewService(postgres.NewAuditRepo(txm), codec)
	a.Materials = material.NewService(catalog_repo.NewMaterialRepo(txm), a.Cache, a.Numerator).
		WithChangeLog(txm, a.Audit)
	a.Lots = allocation.NewLotService(a.LotRepo, txm, a.Stock)
	publisher := postgres.NewOutboxPublisher(txm)
	a.Notifications = notifications.NewService(
		notification_repo.NewNotificationRepo(txm),
		publisher,
		txm,
		a.Stock,
		a.Lots,
	)

	a.Allocations = allocation.NewService(allocation.Deps{
		Lots:       a.LotRepo,
		TxManager:  txm,
		Strategies: a.Materials,
		References: a.Numerator,
		Metrics:    a.Metrics,
	}, allocation.Options{
		MaxAttempts:  cfg.Allocation.MaxRetries,
		AllowPartial: cfg.Allocation.AllowPartial,
	})
	a.Allocations.RegisterHook(a.Stock)
	a.Allocations.RegisterHook(allocation.PublishCommitted(publisher))
	a.Allocations.RegisterHook(a.Notifications)
	a.Allocations.RegisterHook(a.Audit)

	a.Lots.RegisterHook(a.Notifications)
	a.Lots.RegisterHook(a.Audit)
	return nil
}

func (a *App) registerPoolGauges() {
	a.Metrics.RegisterGaugeFunc("db_pool_total_conns", "Open database connections.", func() float64 {
		return float64(a.Pool.Stat().TotalConns())
	})
	a.Metrics.RegisterGaugeFunc("db_pool_acquired_conns", "Database connections in use.", func() float64 {
		return float64(a.Pool.Stat().AcquiredConns())
	})
	a.Metrics.RegisterGaugeFunc("db_pool_idle_conns", "Idle database connections.", func() float64 {
		return float64(a.Pool.Stat().IdleConns())
	})
}

// RouterConfig collects what the HTTP router needs.
func (a *App) RouterConfig() v1.RouterConfig {
	return v1.RouterConfig{
		Logger:       a.Logger,
		JWTValidator: a.JWT,
		Idempotency:  a.Idempotency,
		Metrics:      a.Metrics,
		HealthChecks: map[string]handlers.Pinger{
			"postgres": a.Pool,
			"redis":    a.Cache,
		},
		Allocations:   a.Allocations,
		Lots:          a.Lots,
		Stock:         a.Stock,
		Materials:     a.Materials,
		Warehouses:    a.Warehouses,
		Notifications: a.Notifications,
		Audit:         a.Audit,
	}
}

// JobHandlers returns the worker task handlers.
func (a *App) JobHandlers() *jobs.Handlers {
	return &jobs.Handlers{
		Notifications:          a.Notifications,
		Outbox:                 a.Outbox,
		Idempotency:            a.Idempotency,
		Metrics:                a.Metrics,
		DefaultExpiryWindow:    a.Config.ExpiryWindow(),
		DefaultOutboxRetention: jobs.OutboxRetention,
	}
}

// Close releases the pool and the redis client.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
