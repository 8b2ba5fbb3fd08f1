package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authbridge-io/authbridge/cache"
	"github.com/authbridge-io/authbridge/domain"
)

// ErrAuthCodeInvalid is returned when a code is unknown, already consumed,
// or expired; the three cases are indistinguishable to the caller.
var ErrAuthCodeInvalid = errors.New("auth code invalid or expired")

// CodeBroker issues single-use, time-boxed opaque codes that carry a session
// snapshot across the cookie boundary, for third-party clients that cannot
// receive cookies at login time.
type CodeBroker struct {
	store cache.SessionStore
	ttl   time.Duration
}

// NewCodeBroker creates a broker whose codes expire after ttl.
func NewCodeBroker(store cache.SessionStore, ttl time.Duration) *CodeBroker {
	return &CodeBroker{store: store, ttl: ttl}
}

// TTL returns the configured code lifetime.
func (b *CodeBroker) TTL() time.Duration { return b.ttl }

// Issue binds a session snapshot to a fresh random code and persists it.
func (b *CodeBroker) Issue(ctx context.Context, session *domain.Session) (string, error) {
	code := uuid.NewString()
	if err := b.store.PutCode(ctx, code, session, b.ttl); err != nil {
		return "", fmt.Errorf("failed to persist auth code: %w", err)
	}
	return code, nil
}

// Redeem consumes a code exactly once via the store's atomic get-and-delete.
// A second redeem of the same code always fails, concurrently or
// sequentially.
func (b *CodeBroker) Redeem(ctx context.Context, code string) (*domain.Session, error) {
	session, err := b.store.RedeemCode(ctx, code)
	if err != nil {
		if errors.Is(err, cache.ErrCodeNotFound) {
			return nil, ErrAuthCodeInvalid
		}
		return nil, fmt.Errorf("failed to redeem auth code: %w", err)
	}
	return session, nil
}
