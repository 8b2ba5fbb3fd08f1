package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/authbridge-io/authbridge/cache"
	"github.com/authbridge-io/authbridge/domain"
	autherrors "github.com/authbridge-io/authbridge/errors"
	"github.com/authbridge-io/authbridge/token"
	"github.com/authbridge-io/authbridge/trust"
)

// GrantTypeRefreshToken is the only grant type the refresh endpoint accepts.
const GrantTypeRefreshToken = "refresh_token"

// AuthService drives the session lifecycle: login, auth-code exchange,
// session verification and token refresh. The session store is the only
// synchronization point; every operation reads session truth fresh from it.
type AuthService struct {
	users      domain.UserRepository
	hasher     PasswordHasher
	codec      *token.Codec
	store      cache.SessionStore
	broker     *CodeBroker
	classifier *trust.Classifier
}

// NewAuthService wires the orchestrator's collaborators.
func NewAuthService(
	users domain.UserRepository,
	hasher PasswordHasher,
	codec *token.Codec,
	store cache.SessionStore,
	broker *CodeBroker,
	classifier *trust.Classifier,
) *AuthService {
	return &AuthService{
		users:      users,
		hasher:     hasher,
		codec:      codec,
		store:      store,
		broker:     broker,
		classifier: classifier,
	}
}

// LoginResult carries the outcome of a successful login. AuthCode and
// CodeExpiresIn are populated only for third-party callers.
type LoginResult struct {
	User          *domain.User
	Session       *domain.Session
	Party         trust.Party
	AuthCode      string
	CodeExpiresIn int
}

// Login verifies credentials, mints a fresh session, caches it
// unconditionally, and decides the delivery channel from the caller's
// origin. Credential failures are terminal for the request and collapse to
// one generic error.
func (s *AuthService) Login(ctx context.Context, email, password, origin string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			log.Error().Err(err).Str("email", email).Msg("Login: user lookup failed")
		}
		return nil, autherrors.NewInvalidCredentials()
	}
	if user.Status == domain.UserStatusLocked {
		log.Warn().Str("userID", user.ID).Msg("Login: account locked")
		return nil, autherrors.NewInvalidCredentials()
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		log.Warn().Str("userID", user.ID).Msg("Login: incorrect password")
		return nil, autherrors.NewInvalidCredentials()
	}

	session, err := s.mintSession(ctx, user.ID, user, "")
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		User:    user,
		Session: session,
		Party:   s.classifier.Classify(origin),
	}

	if result.Party == trust.ThirdParty {
		code, err := s.broker.Issue(ctx, session)
		if err != nil {
			log.Error().Err(err).Str("userID", user.ID).Msg("Login: failed to issue auth code")
			return nil, autherrors.NewServerError("Failed to issue auth code")
		}
		result.AuthCode = code
		result.CodeExpiresIn = int(s.broker.TTL().Seconds())
	}

	log.Info().
		Str("userID", user.ID).
		Str("party", result.Party.String()).
		Msg("Login successful")

	return result, nil
}

// ExchangeResult carries the session recovered from a redeemed auth code.
type ExchangeResult struct {
	Session *domain.Session
	Party   trust.Party
}

// VerifyAuthCode redeems a one-time code and re-caches the bound session
// under its normal session key, so subsequent verify and refresh calls work
// exactly as if the holder had logged in directly.
func (s *AuthService) VerifyAuthCode(ctx context.Context, code, origin string) (*ExchangeResult, error) {
	session, err := s.broker.Redeem(ctx, code)
	if err != nil {
		if errors.Is(err, ErrAuthCodeInvalid) {
			return nil, autherrors.NewAuthCodeInvalid()
		}
		log.Error().Err(err).Msg("VerifyAuthCode: redeem failed")
		return nil, autherrors.NewServerError("Failed to redeem auth code")
	}

	if err := s.store.PutSession(ctx, session); err != nil {
		log.Error().Err(err).Str("userID", session.UserID).Msg("VerifyAuthCode: failed to cache session")
		return nil, autherrors.NewServerError("Failed to establish session")
	}

	return &ExchangeResult{
		Session: session,
		Party:   s.classifier.Classify(origin),
	}, nil
}

// Authenticate performs the dual revocation check as one operation:
// signature/expiry verification plus the session store match. Call sites
// never get to rely on signature-only validation.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Session, *token.Claims, error) {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, nil, autherrors.NewUnauthorized("Invalid or expired access token")
	}

	session, err := s.store.GetSession(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, nil, autherrors.NewUnauthorized("Session not found, possibly logged out")
		}
		log.Error().Err(err).Str("userID", claims.UserID).Msg("Authenticate: session lookup failed")
		return nil, nil, autherrors.NewServerError("Failed to load session")
	}

	// Rotation revokes the previous access token instance: only the token
	// currently recorded in the store is honored.
	if session.AccessToken != accessToken {
		log.Warn().Str("userID", claims.UserID).Msg("Authenticate: access token mismatch")
		return nil, nil, autherrors.NewUnauthorized("Token mismatch")
	}

	return session, claims, nil
}

// SessionStatus is the result of a successful session verification.
type SessionStatus struct {
	Valid     bool
	UserID    string
	Email     string
	ExpiresAt string
	ExpiresIn int // seconds until the access token expires
}

// VerifySession validates an access token against signature, expiry and the
// session store, and reports the remaining lifetime.
func (s *AuthService) VerifySession(ctx context.Context, accessToken string) (*SessionStatus, error) {
	session, claims, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	remaining := 0
	if claims.ExpiresAt != nil {
		remaining = int(time.Until(claims.ExpiresAt.Time).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	return &SessionStatus{
		Valid:     true,
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: session.ExpiryAt,
		ExpiresIn: remaining,
	}, nil
}

// RefreshResult carries the rotated session and the delivery decision.
type RefreshResult struct {
	Session   *domain.Session
	Party     trust.Party
	ExpiresIn int // access token lifetime in seconds
}

// RefreshToken rotates the token pair. The presented refresh token must both
// verify and match the one currently recorded for the user; a rotated-out
// token fails the match check, which is the anti-replay guarantee.
// Concurrent refreshes race last-write-wins on the store and self-heal: the
// loser's tokens simply mismatch on their next call.
func (s *AuthService) RefreshToken(ctx context.Context, grantType, refreshToken, origin string) (*RefreshResult, error) {
	if grantType != GrantTypeRefreshToken {
		return nil, autherrors.NewUnsupportedGrantType()
	}
	if refreshToken == "" {
		return nil, autherrors.NewUnauthorized("Missing refresh token")
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, autherrors.NewUnauthorized("Invalid or expired refresh token")
	}

	session, err := s.store.GetSession(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, autherrors.NewUnauthorized("Session not found, possibly logged out")
		}
		log.Error().Err(err).Str("userID", claims.UserID).Msg("RefreshToken: session lookup failed")
		return nil, autherrors.NewServerError("Failed to load session")
	}

	if session.RefreshToken != refreshToken {
		log.Warn().Str("userID", claims.UserID).Msg("RefreshToken: refresh token mismatch, possible replay")
		return nil, autherrors.NewUnauthorized("Token mismatch")
	}

	rotated, err := s.mintSession(ctx, claims.UserID, nil, session.Email)
	if err != nil {
		return nil, err
	}
	// Carry the profile fields forward; mintSession only re-issued tokens.
	rotated.FirstName = session.FirstName
	rotated.LastName = session.LastName
	rotated.PhoneNumber = session.PhoneNumber
	rotated.ProfileImage = session.ProfileImage

	if err := s.store.UpdateTokens(ctx, claims.UserID, rotated.AccessToken, rotated.RefreshToken, rotated.ExpiryAt); err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, autherrors.NewUnauthorized("Session not found, possibly logged out")
		}
		log.Error().Err(err).Str("userID", claims.UserID).Msg("RefreshToken: failed to rotate session")
		return nil, autherrors.NewServerError("Failed to rotate tokens")
	}

	log.Info().Str("userID", claims.UserID).Msg("Token pair rotated")

	return &RefreshResult{
		Session:   rotated,
		Party:     s.classifier.Classify(origin),
		ExpiresIn: int(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout authenticates the presented access token and deletes the session,
// revoking both tokens before their natural expiry.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	session, _, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, session.UserID); err != nil {
		log.Error().Err(err).Str("userID", session.UserID).Msg("Logout: failed to delete session")
		return autherrors.NewServerError("Failed to delete session")
	}
	log.Info().Str("userID", session.UserID).Msg("Session deleted")
	return nil
}

// mintSession signs a fresh token pair and assembles the session record.
// When user is nil (refresh path) the caller fills the profile fields; the
// claims are rebuilt from user ID and email either way, so no registered
// claim from a prior token survives.
func (s *AuthService) mintSession(ctx context.Context, userID string, user *domain.User, email string) (*domain.Session, error) {
	if user != nil {
		email = user.Email
	}

	accessToken, err := s.codec.SignAccess(userID, email)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to sign access token")
		return nil, autherrors.NewServerError("Failed to issue tokens")
	}
	refreshToken, err := s.codec.SignRefresh(userID, email)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to sign refresh token")
		return nil, autherrors.NewServerError("Failed to issue tokens")
	}

	expiryAt := time.Now().UTC().Add(s.codec.AccessTTL()).Format(time.RFC3339)

	var session *domain.Session
	if user != nil {
		session = domain.NewSession(user, accessToken, refreshToken, expiryAt)
		// Every login is cached regardless of delivery channel; this is what
		// makes verify and refresh work uniformly for both parties.
		if err := s.store.PutSession(ctx, session); err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("Failed to cache session")
			return nil, autherrors.NewServerError("Failed to establish session")
		}
	} else {
		session = &domain.Session{
			UserID:       userID,
			Email:        email,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiryAt:     expiryAt,
		}
	}

	return session, nil
}
