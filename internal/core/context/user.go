// Package context carries the request-scoped caller and trace ids.
package context

import (
	"context"
	"slices"
)

// Roles issued in access tokens. Mutating routes name the roles they
// accept; admins pass every check.
const (
	RoleSuperAdmin        = "super_admin"
	RoleAdmin             = "admin"
	RoleInventoryManager  = "inventory_manager"
	RoleProductionManager = "production_manager"
	RolePurchaseManager   = "purchase_manager"
	RoleUser              = "user"
)

// UserContext is the authenticated caller.
type UserContext struct {
	UserID    string
	Email     string
	Roles     []string
	SessionID string
}

// IsAdmin: admin or super_admin.
func (u *UserContext) IsAdmin() bool {
	return u.HasAnyRole(RoleAdmin, RoleSuperAdmin)
}

// HasAnyRole reports whether u holds one of roles. A nil user holds none.
func (u *UserContext) HasAnyRole(roles ...string) bool {
	if u == nil {
		return false
	}
	return slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(u.Roles, r) })
}

type userContextKey struct{}

func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// GetUser returns the caller, or nil for anonymous and background work.
func GetUser(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userContextKey{}).(*UserContext)
	return u
}

// GetUserID returns the caller id or "".
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole reports whether the caller holds role.
func HasRole(ctx context.Context, role string) bool {
	return GetUser(ctx).HasAnyRole(role)
}
