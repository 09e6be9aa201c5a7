// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/domain/notifications"
	"lotkeeper/internal/domain/registers/stock"
	"lotkeeper/internal/infrastructure/http/v1/handlers"
	"lotkeeper/internal/infrastructure/http/v1/middleware"
	"lotkeeper/internal/infrastructure/metrics"
	"lotkeeper/pkg/logger"
)

// RouterConfig holds router dependencies. A nil service leaves its routes
// unregistered.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	// Idempotency enables X-Idempotency-Key handling on mutating routes.
	Idempotency  middleware.IdempotencyStore
	Metrics      *metrics.Metrics
	HealthChecks map[string]handlers.Pinger

	Allocations   *allocation.Service
	Lots          *allocation.LotService
	Stock         *stock.Service
	Materials     *material.Service
	Warehouses    *warehouse.Service
	Notifications *notifications.Service
	Audit         *audit.Service
}

// Role sets for mutating routes.
var (
	withdrawRoles = []string{appctx.RoleInventoryManager, appctx.RoleProductionManager}
	receiveRoles  = []string{appctx.RoleInventoryManager, appctx.RolePurchaseManager}
	catalogRoles  = []string{appctx.RoleInventoryManager}
)

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := &handlers.BaseHandler{}
	registerAllocationRoutes(v1, base, cfg)
	registerLotRoutes(v1, base, cfg)
	registerStockRoutes(v1, base, cfg)
	registerCatalogRoutes(v1, base, cfg)
	registerNotificationRoutes(v1, base, cfg)
	registerAuditRoutes(v1, base, cfg)

	return router
}

func registerAllocationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Allocations == nil {
		return
	}
	h := handlers.NewAllocationHandler(base, cfg.Allocations)
	g := rg.Group("/allocations")
	g.POST("/preview", h.Preview)
	g.POST("/withdraw", middleware.RequireRole(withdrawRoles...), h.Withdraw)
}

func registerLotRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Lots == nil {
		return
	}
	h := handlers.NewLotHandler(base, cfg.Lots)
	g := rg.Group("/lots")
	g.GET("", h.List)
	g.POST("", middleware.RequireRole(receiveRoles...), h.Receive)
	g.GET("/:id", h.Get)
}

func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Stock == nil {
		return
	}
	h := handlers.NewStockHandler(base, cfg.Stock)
	g := rg.Group("/stock")
	g.GET("/balances", h.GetBalances)
	g.GET("/movements", h.GetMovements)
	g.GET("/low-stock", h.GetLowStock)
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Materials != nil {
		h := handlers.NewMaterialHandler(base, cfg.Materials)
		g := rg.Group("/materials")
		g.GET("", h.List)
		g.POST("", middleware.RequireRole(catalogRoles...), h.Create)
		g.GET("/:id", h.Get)
		g.PUT("/:id", middleware.RequireRole(catalogRoles...), h.Update)
		g.PUT("/:id/strategy-overrides/:warehouseId", middleware.RequireRole(catalogRoles...), h.SetStrategyOverride)
		g.DELETE("/:id/strategy-overrides/:warehouseId", middleware.RequireRole(catalogRoles...), h.ClearStrategyOverride)
	}
	if cfg.Warehouses != nil {
		h := handlers.NewWarehouseHandler(base, cfg.Warehouses)
		g := rg.Group("/warehouses")
		g.GET("", h.List)
		g.POST("", middleware.RequireRole(catalogRoles...), h.Create)
	}
}

func registerNotificationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Notifications == nil {
		return
	}
	h := handlers.NewNotificationHandler(base, cfg.Notifications)
	g := rg.Group("/notifications")
	g.GET("", h.List)
	g.POST("/:id/read", h.MarkRead)
}

func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Audit == nil {
		return
	}
	h := handlers.NewAuditHandler(base, cfg.Audit)
	rg.GET("/audit/:entityType/:entityId", middleware.RequireRole(appctx.RoleAdmin), h.History)
}
