// Package auth validates the bearer tokens issued by the identity provider
// and mints development tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "lotkeeper/internal/core/context"
)

// JWTConfig configures HS256 tokens.
type JWTConfig struct {
	Secret         string
	Issuer         string // checked when non-empty
	AccessTokenTTL time.Duration
	Leeway         time.Duration
}

// DefaultJWTConfig: 15 minute tokens, 30 seconds of clock skew.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "lotkeeper",
		AccessTokenTTL: 15 * time.Minute,
		Leeway:         30 * time.Second,
	}
}

// Claims is the token payload. uid falls back to sub for tokens minted by
// providers that only set the registered claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string   `json:"uid,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid,omitempty"`
}

func (c *Claims) user() (*appctx.UserContext, error) {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &appctx.UserContext{
		UserID:    userID,
		Email:     c.Email,
		Roles:     c.Roles,
		SessionID: c.SessionID,
	}, nil
}

// ErrInvalidToken wraps every validation failure.
var ErrInvalidToken = errors.New("invalid token")

// JWTService signs and verifies access tokens.
type JWTService struct {
	config JWTConfig
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTService(config JWTConfig) *JWTService {
	s := &JWTService{config: config, now: time.Now}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	s.parser = jwt.NewParser(opts...)
	return s
}

func (s *JWTService) key(*jwt.Token) (any, error) {
	return []byte(s.config.Secret), nil
}

// GenerateAccessToken signs a token for user and returns its expiry.
func (s *JWTService) GenerateAccessToken(user appctx.UserContext) (string, time.Time, error) {
	if user.UserID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := s.now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    user.UserID,
		Email:     user.Email,
		Roles:     user.Roles,
		SessionID: user.SessionID,
	}).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, expiry and issuer and returns the caller.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	var claims Claims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, s.key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.user()
}
