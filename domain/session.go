package domain

// Session is the authoritative record of one authenticated principal's
// active login. It is cached server-side keyed by user ID; a signed token is
// only honored while it matches the tokens recorded here, which is what makes
// logout and rotation revoke access before natural expiry.
type Session struct {
	UserID       string `json:"user_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	ProfileImage string `json:"profile_image"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiryAt is the RFC 3339 timestamp at which the access token expires.
	ExpiryAt string `json:"expiry_at"`
}

// NewSession assembles a session record for a freshly authenticated user.
func NewSession(user *User, accessToken, refreshToken, expiryAt string) *Session {
	return &Session{
		UserID:       user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		PhoneNumber:  user.PhoneNumber,
		ProfileImage: user.ProfileImage,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiryAt:     expiryAt,
	}
}
