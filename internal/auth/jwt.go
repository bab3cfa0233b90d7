// Package auth issues and validates operator tokens for the admin and status
// endpoints. End users of the dashboard are anonymous.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token defaults.
const (
	DefaultIssuer   = "atmosguard"
	DefaultAudience = "atmosguard-ops"

	// DefaultTokenExpiry is how long operator tokens are valid unless a TTL is given.
	DefaultTokenExpiry = 12 * time.Hour

	// RoleOperator is the only role the API recognises.
	RoleOperator = "operator"
)

// Token errors.
var (
	ErrInvalidToken     = errors.New("invalid operator token")
	ErrTokenExpired     = errors.New("operator token has expired")
	ErrMissingKey       = errors.New("operator token signing key not configured")
	ErrInsufficientRole = errors.New("token does not carry the operator role")
)

// Claims are the claims carried by an operator token.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}

// TokenService signs and validates operator tokens (HS256).
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// TokenConfig holds configuration for the token service.
type TokenConfig struct {
	// SigningKey is the shared HMAC secret (OPERATOR_TOKEN_KEY).
	SigningKey string
	Issuer     string
	Audience   string
	Now        func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(cfg TokenConfig) *TokenService {
	s := &TokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        cfg.Now,
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.audience == "" {
		s.audience = DefaultAudience
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Enabled reports whether a signing key is configured.
func (s *TokenService) Enabled() bool {
	return len(s.signingKey) > 0
}

// Issue creates a token for the named operator, valid for ttl
// (DefaultTokenExpiry when ttl is zero).
func (s *TokenService) Issue(operator string, ttl time.Duration) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrMissingKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   operator,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Role: RoleOperator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate checks the token's signature, issuer, audience, expiry and role.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrMissingKey
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleOperator {
		return nil, ErrInsufficientRole
	}

	return claims, nil
}

func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
