// Package redis implements the session store on a Redis backend. Sessions
// are hashes with per-key TTLs; auth codes are JSON string values consumed
// with GETDEL so that exactly one concurrent redeemer wins.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authbridge-io/authbridge/cache"
	"github.com/authbridge-io/authbridge/domain"
)

// SessionStore implements cache.SessionStore using Redis.
type SessionStore struct {
	client     *redis.Client
	prefix     string // Optional prefix for keys
	sessionTTL time.Duration
}

// NewSessionStore creates a new [SessionStore] instance. sessionTTL is the
// long window applied to session keys on every write.
func NewSessionStore(client *redis.Client, prefix string, sessionTTL time.Duration) *SessionStore {
	return &SessionStore{
		client:     client,
		prefix:     prefix,
		sessionTTL: sessionTTL,
	}
}

func (r *SessionStore) sessionKey(userID string) string {
	if r.prefix == "" {
		return "session:" + userID
	}
	return fmt.Sprintf("%s:session:%s", r.prefix, userID)
}

func (r *SessionStore) codeKey(code string) string {
	if r.prefix == "" {
		return "auth_code:" + code
	}
	return fmt.Sprintf("%s:auth_code:%s", r.prefix, code)
}

// PutSession upserts all session fields and resets the key TTL.
func (r *SessionStore) PutSession(ctx context.Context, session *domain.Session) error {
	key := r.sessionKey(session.UserID)

	entry := map[string]interface{}{
		"user_id":       session.UserID,
		"first_name":    session.FirstName,
		"last_name":     session.LastName,
		"email":         session.Email,
		"phone_number":  session.PhoneNumber,
		"profile_image": session.ProfileImage,
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expiry_at":     session.ExpiryAt,
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, entry)
	pipe.Expire(ctx, key, r.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

// GetSession loads the session hash for a user.
func (r *SessionStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	res, err := r.client.HGetAll(ctx, r.sessionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	if len(res) == 0 {
		return nil, cache.ErrSessionNotFound
	}

	return &domain.Session{
		UserID:       res["user_id"],
		FirstName:    res["first_name"],
		LastName:     res["last_name"],
		Email:        res["email"],
		PhoneNumber:  res["phone_number"],
		ProfileImage: res["profile_image"],
		AccessToken:  res["access_token"],
		RefreshToken: res["refresh_token"],
		ExpiryAt:     res["expiry_at"],
	}, nil
}

// UpdateTokens rewrites only the token and expiry fields and resets the TTL.
func (r *SessionStore) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken, expiryAt string) error {
	key := r.sessionKey(userID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session in Redis: %w", err)
	}
	if exists == 0 {
		return cache.ErrSessionNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"access_token", accessToken,
		"refresh_token", refreshToken,
		"expiry_at", expiryAt,
	)
	pipe.Expire(ctx, key, r.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rotate session tokens in Redis: %w", err)
	}
	return nil
}

// DeleteSession removes the session key.
func (r *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

// PutCode stores a session snapshot under the code with a short TTL.
func (r *SessionStore) PutCode(ctx context.Context, code string, session *domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.codeKey(code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store auth code in Redis: %w", err)
	}
	return nil
}

// RedeemCode consumes a code with GETDEL. Redis serializes the get-and-delete
// so only the first caller observes the snapshot.
func (r *SessionStore) RedeemCode(ctx context.Context, code string) (*domain.Session, error) {
	val, err := r.client.GetDel(ctx, r.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem auth code in Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &session, nil
}

var _ cache.SessionStore = (*SessionStore)(nil)
