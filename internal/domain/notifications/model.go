// Package notifications raises stock alerts (low stock, expiry, shortage,
// receipts) and stores them for the roles that should see them.
package notifications

import (
	"slices"
	"time"

	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
)

// Type identifies what a notification is about.
type Type string

const (
	TypeLowStock          Type = "LOW_STOCK"
	TypeLowStockReminder  Type = "LOW_STOCK_REMINDER"
	TypeMaterialExpiring  Type = "MATERIAL_EXPIRING"
	TypeMaterialExpired   Type = "MATERIAL_EXPIRED"
	TypeMaterialShortage  Type = "MATERIAL_SHORTAGE"
	TypeInventoryReceived Type = "INVENTORY_RECEIVED"
)

var targetRoles = map[Type][]string{
	TypeLowStock: {
		appctx.RoleInventoryManager, appctx.RolePurchaseManager, appctx.RoleAdmin, appctx.RoleSuperAdmin,
	},
	TypeLowStockReminder: {
		appctx.RolePurchaseManager, appctx.RoleAdmin, appctx.RoleSuperAdmin,
	},
	TypeMaterialExpiring: {
		appctx.RoleInventoryManager, appctx.RolePurchaseManager, appctx.RoleAdmin, appctx.RoleSuperAdmin,
	},
	TypeMaterialExpired: {
		appctx.RoleInventoryManager, appctx.RolePurchaseManager, appctx.RoleAdmin, appctx.RoleSuperAdmin,
	},
	TypeMaterialShortage: {
		appctx.RoleInventoryManager, appctx.RolePurchaseManager, appctx.RoleProductionManager, appctx.RoleSuperAdmin,
	},
	TypeInventoryReceived: {
		appctx.RoleInventoryManager, appctx.RolePurchaseManager, appctx.RoleSuperAdmin,
	},
}

// TargetRoles returns the roles that receive notifications of type t.
func (t Type) TargetRoles() []string {
	return slices.Clone(targetRoles[t])
}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	_, ok := targetRoles[t]
	return ok
}

// Notification is a stored alert addressed to a set of roles.
type Notification struct {
	ID          id.ID          `db:"id" json:"id"`
	Type        Type           `db:"type" json:"type"`
	Title       string         `db:"title" json:"title"`
	Message     string         `db:"message" json:"message"`
	Data        map[string]any `db:"data" json:"data,omitempty"`
	DedupKey    string         `db:"dedup_key" json:"-"`
	TargetRoles []string       `db:"target_roles" json:"targetRoles"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`

	// ReadAt is per reader and only filled by ListForUser.
	ReadAt *time.Time `db:"read_at" json:"readAt,omitempty"`
}

// New creates a notification addressed to the roles mapped for t.
func New(t Type, title, message string, data map[string]any) *Notification {
	return &Notification{
		ID:          id.New(),
		Type:        t,
		Title:       title,
		Message:     message,
		Data:        data,
		TargetRoles: t.TargetRoles(),
		CreatedAt:   time.Now().UTC(),
	}
}

// VisibleTo reports whether a user holding roles may see n.
func (n *Notification) VisibleTo(roles []string) bool {
	for _, r := range roles {
		if r == appctx.RoleSuperAdmin || slices.Contains(n.TargetRoles, r) {
			return true
		}
	}
	return false
}
