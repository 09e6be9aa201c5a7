// Package main applies the schema and seeds demo catalogs and lots.
// It prints a development access token when JWT_SECRET is set.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"lotkeeper/internal/app"
	"lotkeeper/internal/config"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/pkg/logger"
)

// seedUserID is the subject of the printed development token.
const seedUserID = "seed-admin"

type materialSeed struct {
	code     string
	name     string
	unit     string
	strategy allocation.Strategy
	minStock int64
	shelf    time.Duration
}

var materials = []materialSeed{
	{"MAT-FLOUR", "Wheat flour", "kg", allocation.FEFO, 50, 180 * 24 * time.Hour},
	{"MAT-BOLT", "Steel bolt M8", "pcs", allocation.FIFO, 200, 0},
	{"MAT-SAND", "Bulk sand", "t", allocation.LIFO, 5, 0},
}

var warehouses = []struct{ code, name string }{
	{"WH-MAIN", "Main warehouse"},
	{"WH-EAST", "East depot"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	user := appctx.UserContext{
		UserID: seedUserID,
		Email:  "admin@lotkeeper.local",
		Roles:  []string{appctx.RoleAdmin},
	}
	ctx := appctx.WithUser(context.Background(), &user)
	ctx = logger.WithLogger(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer func() { _ = a.Close() }()

	if err := postgres.ApplySchema(ctx, a.Pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}
	if err := seed(ctx, a, log); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed successfully")

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, skipping development token")
		return
	}
	token, expiresAt, err := a.JWT.GenerateAccessToken(user)
	if err != nil {
		log.Fatalw("failed to issue token", "error", err)
	}
	log.Infow("development token issued", "expires_at", expiresAt)
	fmt.Println(token)
}

func seed(ctx context.Context, a *app.App, log *logger.Logger) error {
	whIDs := make([]id.ID, 0, len(warehouses))
	for _, w := range warehouses {
		whID, err := ensureWarehouse(ctx, a.Warehouses, w.code, w.name)
		if err != nil {
			return fmt.Errorf("warehouse %s: %w", w.code, err)
		}
		whIDs = append(whIDs, whID)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, ms := range materials {
		matID, created, err := ensureMaterial(ctx, a.Materials, ms)
		if err != nil {
			return fmt.Errorf("material %s: %w", ms.code, err)
		}
		if !created {
			log.Infow("material exists, skipping lots", "code", ms.code)
			continue
		}

		// Three lots per warehouse, one month apart, so every strategy
		// picks a different first lot.
		for _, whID := range whIDs {
			for i := 0; i < 3; i++ {
				mfg := today.AddDate(0, -3+i, 0)
				var exp *time.Time
				if ms.shelf > 0 {
					// Older lots get the longer shelf life so FEFO and FIFO disagree.
					e := mfg.Add(ms.shelf).AddDate(0, 0, -45*i)
					exp = &e
				}
				lot := allocation.NewLot(matID, whID, types.NewQuantity(ms.minStock), mfg, exp)
				lot.LotNumber = fmt.Sprintf("%s-%s-%d", ms.code, mfg.Format("200601"), i+1)
				lot.UnitCost = decimal.New(int64(10+i), 0)
				if err := a.Lots.Receive(ctx, lot, "SEED"); err != nil {
					return fmt.Errorf("receive lot %s: %w", lot.LotNumber, err)
				}
			}
		}
	}
	return nil
}

func ensureWarehouse(ctx context.Context, svc *warehouse.Service, code, name string) (id.ID, error) {
	existing, err := svc.List(ctx, warehouse.ListFilter{Search: code, Limit: 50})
	if err != nil {
		return id.Nil, err
	}
	for _, w := range existing {
		if w.Code == code {
			return w.ID, nil
		}
	}
	wh := warehouse.NewWarehouse(code, name)
	if err := svc.Create(ctx, wh); err != nil {
		return id.Nil, err
	}
	return wh.ID, nil
}

func ensureMaterial(ctx context.Context, svc *material.Service, ms materialSeed) (id.ID, bool, error) {
	existing, err := svc.List(ctx, material.ListFilter{Search: ms.code, Limit: 50})
	if err != nil {
		return id.Nil, false, err
	}
	for _, m := range existing {
		if m.Code == ms.code {
			return m.ID, false, nil
		}
	}
	m := material.NewMaterial(ms.code, ms.name, ms.unit)
	m.DefaultStrategy = ms.strategy
	m.MinStock = types.NewQuantity(ms.minStock)
	m.ReorderPoint = types.NewQuantity(ms.minStock * 2)
	if err := svc.Create(ctx, m); err != nil {
		return id.Nil, false, err
	}
	return m.ID, true, nil
}
