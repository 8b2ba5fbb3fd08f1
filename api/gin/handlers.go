// Package ginapi exposes the gateway's HTTP surface.
package ginapi

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/authbridge-io/authbridge/config"
	"github.com/authbridge-io/authbridge/domain"
	"github.com/authbridge-io/authbridge/errors"
	"github.com/authbridge-io/authbridge/services"
	"github.com/authbridge-io/authbridge/trust"
)

// StatusSuccess is the status value carried by every success response body.
const StatusSuccess = "SUCCESS"

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	expiryAtCookie     = "expiry_at"
)

// AuthAPI holds the handlers' dependencies.
type AuthAPI struct {
	auth  *services.AuthService
	users *services.UserService
	cfg   *config.Config
}

// NewAuthAPI initializes the auth API.
func NewAuthAPI(auth *services.AuthService, users *services.UserService, cfg *config.Config) *AuthAPI {
	return &AuthAPI{
		auth:  auth,
		users: users,
		cfg:   cfg,
	}
}

// RegisterRoutes registers the gateway routes.
func (a *AuthAPI) RegisterRoutes(e *gin.Engine) {
	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/verify-auth-code", a.VerifyAuthCodeHandler)
	e.GET("/auth/verify-session", a.VerifySessionHandler)
	e.POST("/auth/refresh-token", a.RefreshTokenHandler)
	e.POST("/auth/logout", a.LogoutHandler)
	e.POST("/users/register", a.RegisterHandler)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates credentials and delivers the session either as
// httpOnly cookies (first-party origin) or as a one-time auth code
// (third-party origin). The raw tokens are never sent to a third-party
// origin at login time.
func (a *AuthAPI) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("email and password are required"))
		return
	}

	result, err := a.auth.Login(c.Request.Context(), req.Email, req.Password, c.GetHeader("Origin"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if result.Party == trust.FirstParty {
		a.setSessionCookies(c, result.Session)
		c.JSON(http.StatusOK, gin.H{
			"status":    StatusSuccess,
			"user":      publicUser(result.User),
			"expiry_at": result.Session.ExpiryAt,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     StatusSuccess,
		"auth_code":  result.AuthCode,
		"expires_in": result.CodeExpiresIn,
	})
}

type verifyAuthCodeRequest struct {
	AuthCode string `json:"auth_code" binding:"required"`
}

// VerifyAuthCodeHandler exchanges a one-time auth code for the full token
// pair. The atomic redeem guarantees a code is honored at most once.
func (a *AuthAPI) VerifyAuthCodeHandler(c *gin.Context) {
	var req verifyAuthCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("auth_code is required"))
		return
	}

	result, err := a.auth.VerifyAuthCode(c.Request.Context(), req.AuthCode, c.GetHeader("Origin"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if result.Party == trust.FirstParty {
		a.setSessionCookies(c, result.Session)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        StatusSuccess,
		"user":          sessionUser(result.Session),
		"access_token":  result.Session.AccessToken,
		"refresh_token": result.Session.RefreshToken,
		"expiry_at":     result.Session.ExpiryAt,
	})
}

// VerifySessionHandler reports whether the presented access token still
// backs a live session. The cookie is checked before the Bearer header.
func (a *AuthAPI) VerifySessionHandler(c *gin.Context) {
	accessToken := a.tokenFromCookieOrHeader(c, accessTokenCookie)
	if accessToken == "" {
		c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("Missing access token"))
		return
	}

	status, err := a.auth.VerifySession(c.Request.Context(), accessToken)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      status.Valid,
		"userId":     status.UserID,
		"email":      status.Email,
		"expiresAt":  status.ExpiresAt,
		"expires_in": status.ExpiresIn,
	})
}

type refreshTokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenHandler rotates the token pair. grant_type must be exactly
// "refresh_token"; the refresh token is located cookie first, then Bearer
// header, then body.
func (a *AuthAPI) RefreshTokenHandler(c *gin.Context) {
	var req refreshTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
			return
		}
	}

	refreshToken := a.tokenFromCookieOrHeader(c, refreshTokenCookie)
	if refreshToken == "" {
		refreshToken = req.RefreshToken
	}

	result, err := a.auth.RefreshToken(c.Request.Context(), req.GrantType, refreshToken, c.GetHeader("Origin"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if result.Party == trust.FirstParty {
		a.setSessionCookies(c, result.Session)
		c.JSON(http.StatusOK, gin.H{
			"status":    StatusSuccess,
			"expiry_at": result.Session.ExpiryAt,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Session.AccessToken,
		"refresh_token": result.Session.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    result.ExpiresIn,
	})
}

// LogoutHandler deletes the server-side session, revoking the token pair,
// and clears the session cookies.
func (a *AuthAPI) LogoutHandler(c *gin.Context) {
	accessToken := a.tokenFromCookieOrHeader(c, accessTokenCookie)
	if accessToken == "" {
		c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("Missing access token"))
		return
	}

	if err := a.auth.Logout(c.Request.Context(), accessToken); err != nil {
		a.writeError(c, err)
		return
	}

	a.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": StatusSuccess})
}

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	ProfileImage string `json:"profile_image"`
}

// RegisterHandler creates a new account.
func (a *AuthAPI) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid registration payload"))
		return
	}

	user, err := a.users.Register(c.Request.Context(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		if stderrors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, errors.NewInvalidRequest("Email already registered"))
			return
		}
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": StatusSuccess,
		"user":   publicUser(user),
	})
}

// tokenFromCookieOrHeader extracts a token from the named cookie, falling
// back to the Authorization Bearer header.
func (a *AuthAPI) tokenFromCookieOrHeader(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// setSessionCookies attaches the token pair and expiry to the response as
// httpOnly SameSite=Lax cookies. The Secure flag and cookie Domain are
// applied only in production.
func (a *AuthAPI) setSessionCookies(c *gin.Context, session *domain.Session) {
	accessMaxAge := int(a.cfg.AccessTokenTTL().Seconds())
	refreshMaxAge := int(a.cfg.RefreshTokenTTL().Seconds())

	domainAttr := ""
	secure := false
	if a.cfg.IsProduction() {
		domainAttr = a.cfg.CookieDomain
		secure = true
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, session.AccessToken, accessMaxAge, "/", domainAttr, secure, true)
	c.SetCookie(refreshTokenCookie, session.RefreshToken, refreshMaxAge, "/", domainAttr, secure, true)
	c.SetCookie(expiryAtCookie, session.ExpiryAt, accessMaxAge, "/", domainAttr, secure, true)
}

func (a *AuthAPI) clearSessionCookies(c *gin.Context) {
	domainAttr := ""
	secure := false
	if a.cfg.IsProduction() {
		domainAttr = a.cfg.CookieDomain
		secure = true
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", domainAttr, secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", domainAttr, secure, true)
	c.SetCookie(expiryAtCookie, "", -1, "/", domainAttr, secure, true)
}

// writeError maps service errors to their HTTP responses.
func (a *AuthAPI) writeError(c *gin.Context, err error) {
	var authErr *errors.AuthError
	if stderrors.As(err, &authErr) {
		c.JSON(authErr.HTTPCode, authErr)
		return
	}

	log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled service error")
	c.JSON(http.StatusInternalServerError, errors.NewServerError("Internal server error"))
}

// publicUser is the profile shape returned to clients.
func publicUser(u *domain.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"phone_number":  u.PhoneNumber,
		"profile_image": u.ProfileImage,
		"email":         u.Email,
	}
}

// sessionUser rebuilds the profile shape from a session snapshot.
func sessionUser(s *domain.Session) gin.H {
	return gin.H{
		"id":            s.UserID,
		"first_name":    s.FirstName,
		"last_name":     s.LastName,
		"phone_number":  s.PhoneNumber,
		"profile_image": s.ProfileImage,
		"email":         s.Email,
	}
}
