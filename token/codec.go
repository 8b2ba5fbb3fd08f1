// Package token signs and verifies the compact signed tokens issued by the
// gateway. Access and refresh tokens use distinct HMAC secrets so that a leak
// of one class cannot forge the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidOrExpiredToken is the terminal rejection for any token whose
// signature or expiry check fails. Verification is never retried.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

// Claims is the minimal claim set carried by both token classes.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec creates a Codec with per-class secrets and lifetimes.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess issues a new access token for the given principal. Registered
// claims are always built fresh here, so nothing from a previously issued
// token can collide on rotation.
func (c *Codec) SignAccess(userID, email string) (string, error) {
	return c.sign(userID, email, c.accessSecret, c.accessTTL)
}

// SignRefresh issues a new refresh token for the given principal.
func (c *Codec) SignRefresh(userID, email string) (string, error) {
	return c.sign(userID, email, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) sign(userID, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			// The JTI makes every issued token distinct, so rotation always
			// changes the stored token even within one clock second.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks the signature and expiry of an access token and returns
// its claims. It does not consult the session store; callers must perform
// that second check separately.
func (c *Codec) VerifyAccess(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.accessSecret)
}

// VerifyRefresh checks the signature and expiry of a refresh token.
func (c *Codec) VerifyRefresh(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.refreshSecret)
}

func (c *Codec) verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}
