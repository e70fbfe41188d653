package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoExpiry indicates the token carries no exp claim
	ErrNoExpiry = errors.New("token has no expiry time")

	// ErrExpired indicates the token's exp claim is in the past
	ErrExpired = errors.New("token has expired")
)

// Claims represents the claims of a marketplace access token.
// Marketplace tokens are signed by the platform; this service never holds the key,
// so claims are only inspected, never trusted for authorization decisions.
type Claims struct {
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client-id,omitempty"`
	jwt.RegisteredClaims
}

// Inspector reads marketplace tokens without verifying their signature
type Inspector struct {
	parser *jwt.Parser
	now    func() time.Time
	leeway time.Duration
}

// NewInspector creates a token inspector. leeway is subtracted from the expiry when
// deciding whether a token is still usable.
func NewInspector(leeway time.Duration) *Inspector {
	return &Inspector{
		parser: jwt.NewParser(),
		now:    time.Now,
		leeway: leeway,
	}
}

// ExtractClaims extracts claims from a token without validation
func (i *Inspector) ExtractClaims(tokenString string) (*Claims, error) {
	token, _, err := i.parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// GetTokenExpiry returns the expiry time of a token
func (i *Inspector) GetTokenExpiry(tokenString string) (time.Time, error) {
	claims, err := i.ExtractClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}

	return claims.ExpiresAt.Time, nil
}

// Inspect returns the claims of a usable token, or ErrExpired
func (i *Inspector) Inspect(tokenString string) (*Claims, error) {
	claims, err := i.ExtractClaims(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt != nil && !i.now().Before(claims.ExpiresAt.Time.Add(-i.leeway)) {
		return nil, ErrExpired
	}
	return claims, nil
}
