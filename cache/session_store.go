// Package cache defines the server-side session store contract and an
// in-memory implementation. The store is the single source of truth for the
// tokens currently honored for a user; all orchestration steps that need
// session truth read it fresh, never through an in-process layer.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/authbridge-io/authbridge/domain"
)

// ErrSessionNotFound is returned when no live session exists for a user.
// This is the revocation path: an expired or deleted store entry invalidates
// an otherwise still-valid signed token.
var ErrSessionNotFound = errors.New("session not found")

// ErrCodeNotFound is returned when an auth code is unknown, already
// consumed, or expired.
var ErrCodeNotFound = errors.New("auth code not found")

// SessionStore persists session records keyed by user ID and one-time
// exchange snapshots keyed by auth code.
type SessionStore interface {
	// PutSession upserts the full session field map under the user's key and
	// resets its TTL to the refresh window. At most one live record per user
	// exists at a time; a new login overwrites the prior one.
	PutSession(ctx context.Context, session *domain.Session) error

	// GetSession returns the live session for a user or ErrSessionNotFound.
	GetSession(ctx context.Context, userID string) (*domain.Session, error)

	// UpdateTokens rewrites only the token and expiry fields of an existing
	// session and resets its TTL. Returns ErrSessionNotFound if no session
	// exists.
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken, expiryAt string) error

	// DeleteSession removes a user's session, revoking all tokens bound
	// to it.
	DeleteSession(ctx context.Context, userID string) error

	// PutCode stores a session snapshot under a one-time code with the
	// given TTL.
	PutCode(ctx context.Context, code string, session *domain.Session, ttl time.Duration) error

	// RedeemCode atomically reads and deletes the snapshot stored under the
	// code. Of any number of concurrent redeemers, exactly one observes the
	// snapshot; the rest get ErrCodeNotFound.
	RedeemCode(ctx context.Context, code string) (*domain.Session, error)
}
