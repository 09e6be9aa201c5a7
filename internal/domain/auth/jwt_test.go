package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "lotkeeper/internal/core/context"
)

func newTestService(now time.Time) *JWTService {
	s := NewJWTService(DefaultJWTConfig("test-secret"))
	s.now = func() time.Time { return now }
	return s
}

func TestJWTService_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	s := newTestService(now)

	token, expiresAt, err := s.GenerateAccessToken(appctx.UserContext{
		UserID: "u-1",
		Email:  "keeper@example.com",
		Roles:  []string{appctx.RoleInventoryManager},
	})
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)

	user, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "keeper@example.com", user.Email)
	assert.Equal(t, []string{appctx.RoleInventoryManager}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	s := newTestService(now)
	token, _, err := s.GenerateAccessToken(appctx.UserContext{UserID: "u-1"})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestService(now.Add(time.Hour))
		_, err := later.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("other-secret"))
		other.now = func() time.Time { return now }
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := DefaultJWTConfig("test-secret")
		cfg.Issuer = "someone-else"
		other := NewJWTService(cfg)
		other.now = func() time.Time { return now }
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ValidateToken(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTService_RequiresUserID(t *testing.T) {
	s := NewJWTService(DefaultJWTConfig("test-secret"))
	_, _, err := s.GenerateAccessToken(appctx.UserContext{})
	assert.Error(t, err)
}

func TestJWTService_SubjectFallback(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	s := newTestService(now)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lotkeeper",
			Subject:   "idp-user-7",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Roles: []string{appctx.RoleInventoryManager},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	user, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "idp-user-7", user.UserID)
	assert.Equal(t, []string{appctx.RoleInventoryManager}, user.Roles)
}
