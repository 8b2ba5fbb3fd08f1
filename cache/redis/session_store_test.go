package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge-io/authbridge/cache"
	"github.com/authbridge-io/authbridge/domain"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *SessionStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis.Run failed")
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewSessionStore(client, "", 7*24*time.Hour)
}

func testSession() *domain.Session {
	return &domain.Session{
		UserID:       "user-1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "a@b.com",
		PhoneNumber:  "+3612345678",
		ProfileImage: "https://img.example/ada.png",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiryAt:     "2026-01-02T15:04:05Z",
	}
}

func TestSessionRoundTrip(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "user-1")
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)

	require.NoError(t, store.PutSession(ctx, testSession()))

	got, err := store.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, testSession(), got)

	// Every write sets the long TTL on the session key.
	ttl := mr.TTL("session:user-1")
	assert.Greater(t, ttl, 6*24*time.Hour)
}

func TestPutSessionOverwritesPreviousLogin(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, testSession()))

	second := testSession()
	second.AccessToken = "access-2"
	second.RefreshToken = "refresh-2"
	require.NoError(t, store.PutSession(ctx, second))

	got, err := store.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-2", got.RefreshToken)
}

func TestUpdateTokensRewritesOnlyTokenFields(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, testSession()))

	// Age the key so the TTL reset is observable.
	mr.FastForward(24 * time.Hour)

	require.NoError(t, store.UpdateTokens(ctx, "user-1", "access-2", "refresh-2", "2026-01-02T15:19:05Z"))

	got, err := store.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-2", got.RefreshToken)
	assert.Equal(t, "2026-01-02T15:19:05Z", got.ExpiryAt)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "a@b.com", got.Email)

	ttl := mr.TTL("session:user-1")
	assert.Greater(t, ttl, 6*24*time.Hour)
}

func TestUpdateTokensMissingSession(t *testing.T) {
	_, store := newTestStore(t)

	err := store.UpdateTokens(context.Background(), "ghost", "a", "r", "e")
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestDeleteSession(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, testSession()))
	require.NoError(t, store.DeleteSession(ctx, "user-1"))

	_, err := store.GetSession(ctx, "user-1")
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestSessionExpiry(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, testSession()))
	mr.FastForward(7*24*time.Hour + time.Second)

	_, err := store.GetSession(ctx, "user-1")
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestCodeRedeemIsSingleUse(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "code-1", testSession(), 5*time.Minute))

	got, err := store.RedeemCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, testSession(), got)

	_, err = store.RedeemCode(ctx, "code-1")
	assert.ErrorIs(t, err, cache.ErrCodeNotFound)
}

func TestCodeExpiry(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "code-1", testSession(), 5*time.Minute))
	mr.FastForward(5*time.Minute + time.Second)

	_, err := store.RedeemCode(ctx, "code-1")
	assert.ErrorIs(t, err, cache.ErrCodeNotFound)
}

func TestUnknownCode(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.RedeemCode(context.Background(), "never-issued")
	assert.ErrorIs(t, err, cache.ErrCodeNotFound)
}

func TestKeyPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewSessionStore(client, "authbridge", time.Hour)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, testSession()))
	assert.True(t, mr.Exists("authbridge:session:user-1"))

	require.NoError(t, store.PutCode(ctx, "code-1", testSession(), time.Minute))
	assert.True(t, mr.Exists("authbridge:auth_code:code-1"))
}
