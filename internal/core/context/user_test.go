package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContextRoles(t *testing.T) {
	ctx := WithUser(context.Background(), &UserContext{
		UserID: "u-1",
		Roles:  []string{RoleInventoryManager},
	})

	assert.Equal(t, "u-1", GetUserID(ctx))
	assert.True(t, HasRole(ctx, RoleInventoryManager))
	assert.False(t, HasRole(ctx, RoleAdmin))

	u := GetUser(ctx)
	assert.False(t, u.IsAdmin())
	assert.True(t, u.HasAnyRole(RoleAdmin, RoleInventoryManager))
	assert.False(t, u.HasAnyRole(RolePurchaseManager))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUser(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.False(t, HasRole(ctx, RoleUser))
	assert.Empty(t, GetTraceID(ctx))
}
