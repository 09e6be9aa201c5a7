package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appctx "lotkeeper/internal/core/context"
)

type staticValidator map[string]*appctx.UserContext

func (v staticValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

func TestBearerToken(t *testing.T) {
	tok, err := bearerToken("Bearer abc")
	assert.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = bearerToken("bearer  xyz ")
	assert.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = bearerToken("")
	assert.ErrorIs(t, err, errNoCredentials)
	for _, h := range []string{"Basic abc", "Bearer", "Bearer   "} {
		_, err = bearerToken(h)
		assert.ErrorIs(t, err, errBadScheme, h)
	}
}

func TestAuthAndRoles(t *testing.T) {
	validator := staticValidator{
		"picker": {UserID: "u-1", Roles: []string{appctx.RoleProductionManager}},
		"viewer": {UserID: "u-2", Roles: []string{appctx.RoleUser}},
		"admin":   {UserID: "u-3", Roles: []string{appctx.RoleAdmin}},
	}
	r := newEngine()
	r.POST("/withdraw", Auth(validator), RequireRole(appctx.RoleProductionManager), func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
	})

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer viewer", http.StatusForbidden},
		{"Bearer picker", http.StatusOK},
		{"Bearer admin", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/withdraw", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, tt.status, rec.Code, tt.header)
		if tt.status == http.StatusUnauthorized {
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		}
	}
}
