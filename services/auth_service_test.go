package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authbridge-io/authbridge/cache"
	"github.com/authbridge-io/authbridge/domain"
	autherrors "github.com/authbridge-io/authbridge/errors"
	"github.com/authbridge-io/authbridge/internal/auth"
	"github.com/authbridge-io/authbridge/services"
	"github.com/authbridge-io/authbridge/token"
	"github.com/authbridge-io/authbridge/trust"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret123"

	firstPartyOrigin = "https://app.internal.example"
	thirdPartyOrigin = "https://third-party.example"
)

// MockUserRepository stubs the credential repository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type authFixture struct {
	svc   *services.AuthService
	users *MockUserRepository
	store *cache.MemorySessionStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	log.Logger = zerolog.Nop()

	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	codec := token.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	classifier := trust.NewClassifier("internal.example")
	store := cache.NewMemorySessionStore(7 * 24 * time.Hour)
	t.Cleanup(store.Stop)
	broker := services.NewCodeBroker(store, 5*time.Minute)

	users := &MockUserRepository{}
	svc := services.NewAuthService(users, hasher, codec, store, broker, classifier)

	return &authFixture{svc: svc, users: users, store: store}
}

func (f *authFixture) seedUser(t *testing.T) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		ID:           "user-1",
		Email:        testEmail,
		PasswordHash: string(hash),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Status:       domain.UserStatusActive,
	}
	f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(user, nil)
	return user
}

func requireAuthError(t *testing.T, err error, reason string, httpCode int) *autherrors.AuthError {
	t.Helper()

	var authErr *autherrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, reason, authErr.Reason)
	assert.Equal(t, httpCode, authErr.HTTPCode)
	return authErr
}

func TestLoginFirstParty(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)

	result, err := f.svc.Login(context.Background(), testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	assert.Equal(t, trust.FirstParty, result.Party)
	assert.Empty(t, result.AuthCode)
	assert.NotEmpty(t, result.Session.AccessToken)
	assert.NotEmpty(t, result.Session.RefreshToken)
	assert.NotEqual(t, result.Session.AccessToken, result.Session.RefreshToken)

	// The session is cached regardless of delivery channel.
	cached, err := f.store.GetSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, result.Session.AccessToken, cached.AccessToken)
}

func TestLoginThirdPartyIssuesAuthCode(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)

	result, err := f.svc.Login(context.Background(), testEmail, testPassword, thirdPartyOrigin)
	require.NoError(t, err)

	assert.Equal(t, trust.ThirdParty, result.Party)
	assert.Equal(t, 300, result.CodeExpiresIn)

	_, err = uuid.Parse(result.AuthCode)
	assert.NoError(t, err, "auth code should be a uuid")
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.users.On("GetUserByEmail", mock.Anything, "nobody@b.com").Return(nil, domain.ErrUserNotFound)

	_, err := f.svc.Login(context.Background(), "nobody@b.com", testPassword, firstPartyOrigin)
	authErr := requireAuthError(t, err, autherrors.ReasonInvalidCredentials, 401)
	assert.Equal(t, "Invalid credentials", authErr.Message)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)

	_, err := f.svc.Login(context.Background(), testEmail, "wrong-password", firstPartyOrigin)
	// Same generic message as unknown email, to avoid user enumeration.
	authErr := requireAuthError(t, err, autherrors.ReasonInvalidCredentials, 401)
	assert.Equal(t, "Invalid credentials", authErr.Message)
}

func TestLoginLockedAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t)
	user.Status = domain.UserStatusLocked

	_, err := f.svc.Login(context.Background(), testEmail, testPassword, firstPartyOrigin)
	requireAuthError(t, err, autherrors.ReasonInvalidCredentials, 401)
}

func TestVerifySessionAfterLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)

	result, err := f.svc.Login(context.Background(), testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	status, err := f.svc.VerifySession(context.Background(), result.Session.AccessToken)
	require.NoError(t, err)

	assert.True(t, status.Valid)
	assert.Equal(t, "user-1", status.UserID)
	assert.Equal(t, testEmail, status.Email)
	assert.Greater(t, status.ExpiresIn, 14*60)
	assert.Equal(t, result.Session.ExpiryAt, status.ExpiresAt)
}

func TestVerifySessionGarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.VerifySession(context.Background(), "not-a-token")
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Invalid or expired access token", authErr.Message)
}

func TestVerifySessionRevokedByLogout(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)

	result, err := f.svc.Login(context.Background(), testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), result.Session.AccessToken))

	// The token still has a valid signature, but the session is gone.
	_, err = f.svc.VerifySession(context.Background(), result.Session.AccessToken)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Session not found, possibly logged out", authErr.Message)
}

func TestSecondLoginInvalidatesFirst(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)
	require.NotEqual(t, first.Session.AccessToken, second.Session.AccessToken)

	_, err = f.svc.VerifySession(ctx, first.Session.AccessToken)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Token mismatch", authErr.Message)

	_, err = f.svc.VerifySession(ctx, second.Session.AccessToken)
	assert.NoError(t, err)
}

func TestVerifyAuthCodeEstablishesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, thirdPartyOrigin)
	require.NoError(t, err)

	exchange, err := f.svc.VerifyAuthCode(ctx, login.AuthCode, thirdPartyOrigin)
	require.NoError(t, err)
	assert.Equal(t, trust.ThirdParty, exchange.Party)
	assert.Equal(t, "user-1", exchange.Session.UserID)

	// The exchanged session behaves exactly like a direct login.
	status, err := f.svc.VerifySession(ctx, exchange.Session.AccessToken)
	require.NoError(t, err)
	assert.True(t, status.Valid)
}

func TestAuthCodeIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, thirdPartyOrigin)
	require.NoError(t, err)

	_, err = f.svc.VerifyAuthCode(ctx, login.AuthCode, thirdPartyOrigin)
	require.NoError(t, err)

	_, err = f.svc.VerifyAuthCode(ctx, login.AuthCode, thirdPartyOrigin)
	requireAuthError(t, err, autherrors.ReasonAuthCodeInvalid, 401)
}

func TestAuthCodeConcurrentExchangeSingleWinner(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, thirdPartyOrigin)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyAuthCode(ctx, login.AuthCode, thirdPartyOrigin)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else {
			requireAuthError(t, err, autherrors.ReasonAuthCodeInvalid, 401)
		}
	}
	assert.Equal(t, 1, success)
}

func TestUnknownAuthCode(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.VerifyAuthCode(context.Background(), uuid.NewString(), thirdPartyOrigin)
	requireAuthError(t, err, autherrors.ReasonAuthCodeInvalid, 401)
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	refreshed, err := f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.RefreshToken, firstPartyOrigin)
	require.NoError(t, err)

	assert.Equal(t, trust.FirstParty, refreshed.Party)
	assert.Equal(t, 15*60, refreshed.ExpiresIn)
	assert.NotEqual(t, login.Session.AccessToken, refreshed.Session.AccessToken)
	assert.NotEqual(t, login.Session.RefreshToken, refreshed.Session.RefreshToken)

	// Profile fields carried through rotation.
	assert.Equal(t, "Ada", refreshed.Session.FirstName)

	// The store reflects the rotated pair.
	cached, err := f.store.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, refreshed.Session.RefreshToken, cached.RefreshToken)
}

func TestRefreshRejectsReplayOfRotatedToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	refreshed, err := f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.RefreshToken, firstPartyOrigin)
	require.NoError(t, err)

	// The rotated-out refresh token is permanently unusable.
	_, err = f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.RefreshToken, firstPartyOrigin)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Token mismatch", authErr.Message)

	// The newly issued one succeeds exactly once per rotation.
	_, err = f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, refreshed.Session.RefreshToken, firstPartyOrigin)
	assert.NoError(t, err)
}

func TestRefreshInvalidatesOldAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	_, err = f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.RefreshToken, firstPartyOrigin)
	require.NoError(t, err)

	_, err = f.svc.VerifySession(ctx, login.Session.AccessToken)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Token mismatch", authErr.Message)
}

func TestRefreshUnsupportedGrantType(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	for _, grant := range []string{"", "password", "authorization_code"} {
		_, err := f.svc.RefreshToken(ctx, grant, login.Session.RefreshToken, firstPartyOrigin)
		requireAuthError(t, err, autherrors.ReasonUnsupportedGrantType, 400)
	}

	// The store is untouched; the original pair still works.
	cached, err := f.store.GetSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, login.Session.RefreshToken, cached.RefreshToken)
}

func TestRefreshMissingToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.RefreshToken(context.Background(), services.GrantTypeRefreshToken, "", firstPartyOrigin)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Missing refresh token", authErr.Message)
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	// An access token must not pass refresh verification.
	_, err = f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.AccessToken, firstPartyOrigin)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Invalid or expired refresh token", authErr.Message)
}

func TestRefreshAfterLogout(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, login.Session.AccessToken))

	_, err = f.svc.RefreshToken(ctx, services.GrantTypeRefreshToken, login.Session.RefreshToken, firstPartyOrigin)
	authErr := requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
	assert.Equal(t, "Session not found, possibly logged out", authErr.Message)
}

func TestLogoutRequiresLiveSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, testEmail, testPassword, firstPartyOrigin)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.Session.AccessToken))

	err = f.svc.Logout(ctx, login.Session.AccessToken)
	requireAuthError(t, err, autherrors.ReasonUnauthorized, 401)
}
