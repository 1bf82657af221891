package vk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vkcalls/vkcall/internal/vkapi"
)

// AuthenticationError represents authentication-related errors.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the cause.
func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches errors of the same Type, so errors.Is works against the base values below.
func (e *AuthenticationError) Is(target error) bool {
	var other *AuthenticationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type
}

// Common authentication error types.
var (
	// ErrSessionInit represents a failed or empty answer of the redirect service /start endpoint.
	ErrSessionInit = &AuthenticationError{
		Type:    "session_init_failed",
		Message: "Failed to initialize the authorization session",
		Code:    http.StatusBadGateway,
	}

	// ErrCodeExchangeFailed represents an error when exchanging authorization code for tokens fails.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	// ErrMissingRenewalData is returned when no refresh token or device id is stored.
	ErrMissingRenewalData = &AuthenticationError{
		Type:    "missing_renewal_data",
		Message: "Refresh token or device id is missing",
		Code:    http.StatusUnauthorized,
	}

	// ErrRefreshFailed represents a non-2xx answer of the token endpoint during renewal.
	ErrRefreshFailed = &AuthenticationError{
		Type:    "refresh_failed",
		Message: "Failed to refresh the access token",
		Code:    http.StatusUnauthorized,
	}

	// ErrAuthorizationTimeout is returned when the browser authorization did not come back in time.
	ErrAuthorizationTimeout = &AuthenticationError{
		Type:    "authorization_timeout",
		Message: "Timeout waiting for browser authorization",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// newStatusError copies baseErr with the HTTP status of a failed response.
func newStatusError(baseErr *AuthenticationError, resp *http.Response) *AuthenticationError {
	statusText := resp.Status
	if statusText == "" {
		statusText = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: fmt.Sprintf("%s: %s", baseErr.Message, statusText),
		Code:    resp.StatusCode,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	ok := errors.As(err, &authenticationError)
	return ok
}

// GetUserFriendlyMessage returns the short text shown to the user for err.
func GetUserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := vkapi.AsError(err); ok {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("VK API error %d", apiErr.Code)
	}

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		return err.Error()
	}
	switch authErr.Type {
	case ErrSessionInit.Type:
		return "Could not start the authorization session. Please try again."
	case ErrCodeExchangeFailed.Type:
		return "Could not complete authorization. Please try again."
	case ErrMissingRenewalData.Type:
		return "Saved credentials are incomplete. Please authorize again."
	case ErrRefreshFailed.Type:
		return authErr.Message
	case ErrAuthorizationTimeout.Type:
		return "Authorization timed out. Please try again."
	default:
		return "Authentication failed. Please try again."
	}
}
