package errors

import (
	"fmt"
	"net/http"
)

// StatusFailed is the status value carried by every error response body.
const StatusFailed = "FAILED"

// Internal reason codes. All token/session failures collapse to 401 on the
// wire; the reason differentiates them in logs and in errors.Is-style checks.
const (
	ReasonInvalidCredentials   = "invalid_credentials"
	ReasonAuthCodeInvalid      = "auth_code_invalid"
	ReasonUnauthorized         = "unauthorized"
	ReasonUnsupportedGrantType = "unsupported_grant_type"
	ReasonInvalidRequest       = "invalid_request"
	ReasonServerError          = "server_error"
)

// AuthError is a request-scoped authentication failure. It marshals to the
// `{status, message}` body the gateway returns on every failure path.
type AuthError struct {
	Status  string `json:"status"`
	Message string `json:"message"`

	Reason   string `json:"-"`
	HTTPCode int    `json:"-"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// NewInvalidCredentials returns the generic bad-email-or-password error.
// The message is intentionally vague to avoid user enumeration.
func NewInvalidCredentials() *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  "Invalid credentials",
		Reason:   ReasonInvalidCredentials,
		HTTPCode: http.StatusUnauthorized,
	}
}

// NewAuthCodeInvalid covers missing, already consumed and expired codes;
// the caller cannot tell which.
func NewAuthCodeInvalid() *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  "Invalid or expired auth code",
		Reason:   ReasonAuthCodeInvalid,
		HTTPCode: http.StatusUnauthorized,
	}
}

// NewUnauthorized returns a 401 with a differentiated reason message
// (missing token, expired token, session not found, token mismatch).
func NewUnauthorized(message string) *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  message,
		Reason:   ReasonUnauthorized,
		HTTPCode: http.StatusUnauthorized,
	}
}

// NewUnsupportedGrantType rejects refresh requests whose grant_type is not
// exactly "refresh_token".
func NewUnsupportedGrantType() *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  "Unsupported grant_type, expected refresh_token",
		Reason:   ReasonUnsupportedGrantType,
		HTTPCode: http.StatusBadRequest,
	}
}

func NewInvalidRequest(message string) *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  message,
		Reason:   ReasonInvalidRequest,
		HTTPCode: http.StatusBadRequest,
	}
}

func NewServerError(message string) *AuthError {
	return &AuthError{
		Status:   StatusFailed,
		Message:  message,
		Reason:   ReasonServerError,
		HTTPCode: http.StatusInternalServerError,
	}
}
