package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/authbridge-io/authbridge/domain"
)

// MemorySessionStore implements SessionStore on ttlcache, for tests and
// redis-less development.
type MemorySessionStore struct {
	sessions *ttlcache.Cache[string, *domain.Session]
	codes    *ttlcache.Cache[string, *domain.Session]

	// redeemMu serializes get-and-delete on codes so that concurrent
	// redeemers see exactly one winner, matching the Redis GETDEL semantics.
	redeemMu sync.Mutex

	sessionTTL time.Duration
}

// NewMemorySessionStore creates an in-memory store whose session entries
// live for sessionTTL after each write.
func NewMemorySessionStore(sessionTTL time.Duration) *MemorySessionStore {
	sessions := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Session](sessionTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
	)
	codes := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
	)

	go sessions.Start()
	go codes.Start()

	return &MemorySessionStore{
		sessions:   sessions,
		codes:      codes,
		sessionTTL: sessionTTL,
	}
}

// PutSession implements SessionStore.PutSession.
func (s *MemorySessionStore) PutSession(_ context.Context, session *domain.Session) error {
	cp := *session
	s.sessions.Set(session.UserID, &cp, s.sessionTTL)
	return nil
}

// GetSession implements SessionStore.GetSession.
func (s *MemorySessionStore) GetSession(_ context.Context, userID string) (*domain.Session, error) {
	item := s.sessions.Get(userID)
	if item == nil {
		return nil, ErrSessionNotFound
	}
	cp := *item.Value()
	return &cp, nil
}

// UpdateTokens implements SessionStore.UpdateTokens.
func (s *MemorySessionStore) UpdateTokens(_ context.Context, userID, accessToken, refreshToken, expiryAt string) error {
	item := s.sessions.Get(userID)
	if item == nil {
		return ErrSessionNotFound
	}
	cp := *item.Value()
	cp.AccessToken = accessToken
	cp.RefreshToken = refreshToken
	cp.ExpiryAt = expiryAt
	s.sessions.Set(userID, &cp, s.sessionTTL)
	return nil
}

// DeleteSession implements SessionStore.DeleteSession.
func (s *MemorySessionStore) DeleteSession(_ context.Context, userID string) error {
	s.sessions.Delete(userID)
	return nil
}

// PutCode implements SessionStore.PutCode.
func (s *MemorySessionStore) PutCode(_ context.Context, code string, session *domain.Session, ttl time.Duration) error {
	cp := *session
	s.codes.Set(code, &cp, ttl)
	return nil
}

// RedeemCode implements SessionStore.RedeemCode.
func (s *MemorySessionStore) RedeemCode(_ context.Context, code string) (*domain.Session, error) {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	item := s.codes.Get(code)
	if item == nil {
		return nil, ErrCodeNotFound
	}
	s.codes.Delete(code)

	cp := *item.Value()
	return &cp, nil
}

// Stop halts the background expiry goroutines.
func (s *MemorySessionStore) Stop() {
	s.sessions.Stop()
	s.codes.Stop()
}

var _ SessionStore = (*MemorySessionStore)(nil)
