package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
)

// JWTValidator turns an access token into the caller.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("authorization scheme must be Bearer")
)

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errBadScheme
	}
	return token, nil
}

// Auth rejects requests without a valid bearer token and stores the caller
// in the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, apperror.NewUnauthorized(err.Error()))
			return
		}
		user, err := validator.ValidateToken(token)
		if err != nil {
			unauthorized(c, apperror.NewUnauthorized("invalid token").WithCause(err))
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set(ctxKeyUserID, user.UserID)
		c.Next()
	}
}

// RequireRole lets through admins and callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		switch {
		case user == nil:
			unauthorized(c, apperror.NewUnauthorized("authentication required"))
		case user.IsAdmin(), user.HasAnyRole(roles...):
			c.Next()
		default:
			_ = c.Error(apperror.NewForbidden("insufficient permissions").WithDetail("required_roles", roles))
			c.Abort()
		}
	}
}

func unauthorized(c *gin.Context, err *apperror.AppError) {
	c.Header("WWW-Authenticate", `Bearer realm="lotkeeper"`)
	_ = c.Error(err)
	c.Abort()
}
