package broker

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is the error family for broker and proxy failures. Each
// instance carries a stable type tag for clients, a human-readable
// message, and the HTTP status the API layer should answer with.
type AuthError struct {
	// Type is a stable machine-readable error tag.
	Type string `json:"type"`
	// Message describes the failure to a human.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

// Error returns a string representation of the error.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches two AuthErrors by type tag, so wrapped instances created
// with WithCause still compare equal to their sentinel.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Sentinel broker errors. Handlers answer with the embedded status code.
var (
	// ErrMissingCode means a callback arrived without an authorization code.
	ErrMissingCode = &AuthError{
		Type:    "missing_code",
		Message: "Authorization code not provided",
		Code:    http.StatusBadRequest,
	}

	// ErrMissingCodeOrState means a PKCE callback lacked the code or state.
	ErrMissingCodeOrState = &AuthError{
		Type:    "missing_code_or_state",
		Message: "Authorization code or state not provided",
		Code:    http.StatusBadRequest,
	}

	// ErrInvalidState means the callback's state matched no live PKCE
	// entry: unknown, expired, or already consumed.
	ErrInvalidState = &AuthError{
		Type:    "invalid_state",
		Message: "Invalid state or session expired",
		Code:    http.StatusBadRequest,
	}

	// ErrExchangeFailed means the provider rejected the code exchange.
	ErrExchangeFailed = &AuthError{
		Type:    "exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadGateway,
	}

	// ErrIdentityFetchFailed means the provider's user or identity lookup
	// failed after a successful exchange.
	ErrIdentityFetchFailed = &AuthError{
		Type:    "identity_fetch_failed",
		Message: "Failed to fetch authenticated identity",
		Code:    http.StatusBadGateway,
	}

	// ErrRefreshFailed means the refresh_token grant was rejected.
	ErrRefreshFailed = &AuthError{
		Type:    "refresh_failed",
		Message: "Failed to refresh access token",
		Code:    http.StatusBadGateway,
	}

	// ErrNoRefreshToken means a refresh was needed but the stored bundle
	// has no refresh token.
	ErrNoRefreshToken = &AuthError{
		Type:    "no_refresh_token",
		Message: "No refresh token available",
		Code:    http.StatusUnauthorized,
	}

	// ErrUserNotFound means no credential bundle exists for the session's
	// identity. The client must re-authenticate; the store is
	// memory-resident and a broker restart empties it.
	ErrUserNotFound = &AuthError{
		Type:    "user_not_found",
		Message: "User not found. Please login again.",
		Code:    http.StatusNotFound,
	}

	// ErrNoCredential means the bundle exists but lacks a usable token.
	ErrNoCredential = &AuthError{
		Type:    "no_credential",
		Message: "No AI token found. Please login.",
		Code:    http.StatusBadRequest,
	}

	// ErrUpstreamAI means the AI provider call itself failed. The
	// upstream's own message is preserved in Message so clients can tell
	// rate limits from auth failures.
	ErrUpstreamAI = &AuthError{
		Type:    "ai_request_failed",
		Message: "AI request failed",
		Code:    http.StatusBadGateway,
	}
)

// WithCause returns a copy of base carrying cause as the underlying error.
func WithCause(base *AuthError, cause error) *AuthError {
	return &AuthError{
		Type:    base.Type,
		Message: base.Message,
		Code:    base.Code,
		Cause:   cause,
	}
}

// WithMessage returns a copy of base with a specific message, keeping the
// type tag and status. Used to pass upstream error text through verbatim.
func WithMessage(base *AuthError, message string) *AuthError {
	return &AuthError{
		Type:    base.Type,
		Message: message,
		Code:    base.Code,
	}
}

// StatusFor returns the HTTP status for any error, defaulting to 500 for
// errors outside the AuthError family.
func StatusFor(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return http.StatusInternalServerError
}
