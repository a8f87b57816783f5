// Package errors provides the structured error surface of the identity
// service. Every externally visible failure carries a stable machine-readable
// code, an HTTP status mapping, a human message, and a timestamp.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a stable machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// HTTPStatus is the HTTP status code this error maps to.
	HTTPStatus int `json:"-"`
	// Timestamp records when the error was created.
	Timestamp time.Time `json:"timestamp"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error. It is logged by the caller but never
	// serialized to clients.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now().UTC(),
	}
}

// --- Authentication ---

// InvalidCredentials covers both unknown email and wrong password so the
// response cannot be used to probe which accounts exist.
func InvalidCredentials() *AppError {
	return New(ErrCodeInvalidCredentials, "Invalid email or password.", http.StatusUnauthorized)
}

// EmailUnverified indicates login is blocked until the email is verified.
func EmailUnverified() *AppError {
	return New(ErrCodeEmailUnverified, "Email address has not been verified.", http.StatusUnauthorized)
}

// AccountBanned indicates the account is banned.
func AccountBanned() *AppError {
	return New(ErrCodeAccountBanned, "This account has been suspended.", http.StatusForbidden)
}

// TokenMissing indicates no bearer credential was presented.
func TokenMissing() *AppError {
	return New(ErrCodeTokenMissing, "Authentication required.", http.StatusUnauthorized)
}

// TokenInvalid indicates a presented token failed signature or structural
// checks. The message deliberately does not say which.
func TokenInvalid() *AppError {
	return New(ErrCodeTokenInvalid, "Invalid authentication token.", http.StatusUnauthorized)
}

// TokenExpired indicates a presented token is past its expiry.
func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "Your session has expired. Please log in again.", http.StatusUnauthorized)
}

// TokenReused indicates a superseded refresh token was presented again.
func TokenReused() *AppError {
	return New(ErrCodeTokenReused, "Refresh token has already been used. Please log in again.", http.StatusUnauthorized)
}

// RefreshMissing indicates a refresh request without a token.
func RefreshMissing() *AppError {
	return New(ErrCodeRefreshMissing, "Refresh token is required.", http.StatusBadRequest)
}

// Forbidden indicates an authenticated subject lacks the required
// role or permission.
func Forbidden() *AppError {
	return New(ErrCodeForbidden, "You don't have permission to perform this action.", http.StatusForbidden)
}

// --- Registration ---

// EmailTaken indicates the email is already registered.
func EmailTaken() *AppError {
	return New(ErrCodeEmailTaken, "An account with this email already exists.", http.StatusConflict)
}

// UsernameTaken indicates the username is already registered.
func UsernameTaken() *AppError {
	return New(ErrCodeUsernameTaken, "This username is already taken.", http.StatusConflict)
}

// PhoneTaken indicates the phone number is already registered.
func PhoneTaken() *AppError {
	return New(ErrCodePhoneTaken, "An account with this phone number already exists.", http.StatusConflict)
}

// --- Users ---

// UserNotFound indicates the user does not exist.
func UserNotFound(id string) *AppError {
	e := New(ErrCodeUserNotFound, "User not found.", http.StatusNotFound)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// AlreadyVerified indicates a verification attempt on a verified account.
func AlreadyVerified() *AppError {
	return New(ErrCodeAlreadyVerified, "This account is already verified.", http.StatusConflict)
}

// --- Roles and permissions ---

// RoleNotFound indicates the role does not exist.
func RoleNotFound(name string) *AppError {
	e := New(ErrCodeRoleNotFound, "Role not found.", http.StatusNotFound)
	if name != "" {
		e.WithDetail("role", name)
	}
	return e
}

// RoleExists indicates a role with that name already exists.
func RoleExists(name string) *AppError {
	return New(ErrCodeRoleExists, "A role with this name already exists.", http.StatusConflict).
		WithDetail("role", name)
}

// AdminRoleMissing indicates the configured admin role cannot be resolved.
func AdminRoleMissing(name string) *AppError {
	return New(ErrCodeAdminRoleMissing, "The configured admin role does not exist.", http.StatusInternalServerError).
		WithDetail("role", name)
}

// PermissionNotFound indicates the permission does not exist.
func PermissionNotFound(name string) *AppError {
	e := New(ErrCodePermissionNotFound, "Permission not found.", http.StatusNotFound)
	if name != "" {
		e.WithDetail("permission", name)
	}
	return e
}

// PermissionExists indicates a permission with that name already exists.
func PermissionExists(name string) *AppError {
	return New(ErrCodePermissionExists, "A permission with this name already exists.", http.StatusConflict).
		WithDetail("permission", name)
}

// --- Passwords ---

// PasswordInvalid indicates a new password failed policy checks.
func PasswordInvalid(reason string) *AppError {
	return New(ErrCodePasswordInvalid, reason, http.StatusBadRequest)
}

// PasswordResetFailed indicates a reset token was invalid, expired, or
// already consumed.
func PasswordResetFailed() *AppError {
	return New(ErrCodePasswordResetFailed, "Password reset failed. The link may have expired.", http.StatusBadRequest)
}

// HashingFailed indicates the hashing primitive itself failed.
func HashingFailed(cause error) *AppError {
	return New(ErrCodeHashingFailed, "Unable to process the password.", http.StatusInternalServerError).
		WithCause(cause)
}

// InvalidHash indicates a stored hash is malformed.
func InvalidHash(cause error) *AppError {
	return New(ErrCodeInvalidHash, "Stored credential is malformed.", http.StatusInternalServerError).
		WithCause(cause)
}

// --- Email ---

// EmailSendFailed indicates outbound mail delivery failed.
func EmailSendFailed(cause error) *AppError {
	return New(ErrCodeEmailSendFailed, "Failed to send email. Please try again later.", http.StatusBadGateway).
		WithCause(cause)
}

// --- OAuth ---

// ProviderUnknown indicates an unconfigured OAuth provider.
func ProviderUnknown(name string) *AppError {
	return New(ErrCodeProviderUnknown, "Unknown authentication provider.", http.StatusNotFound).
		WithDetail("provider", name)
}

// ExchangeFailed indicates the provider code/token exchange failed.
func ExchangeFailed(provider string, cause error) *AppError {
	return New(ErrCodeExchangeFailed, "Authentication with the provider failed.", http.StatusBadGateway).
		WithDetail("provider", provider).WithCause(cause)
}

// InvalidState indicates a CSRF state mismatch on an OAuth callback.
func InvalidState() *AppError {
	return New(ErrCodeInvalidState, "Invalid or expired authorization state.", http.StatusBadRequest)
}

// --- System ---

// Internal wraps an unexpected error. The cause is for logs only; clients
// receive the generic message.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred. Please try again.", http.StatusInternalServerError).
		WithCause(cause)
}

// Database wraps a persistence-layer failure.
func Database(cause error) *AppError {
	return New(ErrCodeDatabase, "A storage error occurred. Please try again.", http.StatusInternalServerError).
		WithCause(cause)
}

// Config indicates invalid or missing configuration.
func Config(reason string) *AppError {
	return New(ErrCodeConfig, reason, http.StatusInternalServerError)
}

// InvalidInput indicates a malformed request body or parameter.
func InvalidInput(reason string) *AppError {
	return New(ErrCodeInvalidInput, reason, http.StatusBadRequest)
}

// NotFound indicates a generic missing resource.
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("The requested %s was not found.", resource), http.StatusNotFound)
}
