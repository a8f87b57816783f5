package errors

// ErrorCode is a stable machine-readable error code. Codes are grouped by
// domain and form part of the client contract: existing values must never
// change meaning across versions.
type ErrorCode string

// Authentication errors
const (
	// ErrCodeInvalidCredentials indicates a bad email/password combination.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrCodeInvalidCredentials ErrorCode = "AUTH_INVALID_CREDENTIALS"
	// ErrCodeEmailUnverified indicates login before email verification.
	ErrCodeEmailUnverified ErrorCode = "AUTH_EMAIL_UNVERIFIED"
	// ErrCodeAccountBanned indicates the account is banned.
	ErrCodeAccountBanned ErrorCode = "AUTH_ACCOUNT_BANNED"
	// ErrCodeTokenMissing indicates no bearer credential was presented.
	ErrCodeTokenMissing ErrorCode = "AUTH_TOKEN_MISSING"
	// ErrCodeTokenInvalid indicates a presented token failed verification.
	ErrCodeTokenInvalid ErrorCode = "AUTH_TOKEN_INVALID"
	// ErrCodeTokenExpired indicates a presented token is past its expiry.
	ErrCodeTokenExpired ErrorCode = "AUTH_TOKEN_EXPIRED"
	// ErrCodeTokenReused indicates a refresh token whose rotation marker
	// was already superseded, a replay or theft signal.
	ErrCodeTokenReused ErrorCode = "AUTH_TOKEN_REUSED"
	// ErrCodeRefreshMissing indicates a refresh request without a token.
	ErrCodeRefreshMissing ErrorCode = "AUTH_REFRESH_MISSING"
	// ErrCodeForbidden indicates an authenticated subject lacks the
	// required role or permission.
	ErrCodeForbidden ErrorCode = "AUTH_FORBIDDEN"
)

// Registration errors
const (
	// ErrCodeEmailTaken indicates the email is already registered.
	ErrCodeEmailTaken ErrorCode = "REG_EMAIL_TAKEN"
	// ErrCodeUsernameTaken indicates the username is already registered.
	ErrCodeUsernameTaken ErrorCode = "REG_USERNAME_TAKEN"
	// ErrCodePhoneTaken indicates the phone number is already registered.
	ErrCodePhoneTaken ErrorCode = "REG_PHONE_TAKEN"
)

// User management errors
const (
	// ErrCodeUserNotFound indicates the user does not exist.
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"
	// ErrCodeAlreadyVerified indicates a verification attempt on an
	// already verified account.
	ErrCodeAlreadyVerified ErrorCode = "USER_ALREADY_VERIFIED"
)

// Role and permission errors
const (
	// ErrCodeRoleNotFound indicates the role does not exist.
	ErrCodeRoleNotFound ErrorCode = "ROLE_NOT_FOUND"
	// ErrCodeRoleExists indicates a role with that name already exists.
	ErrCodeRoleExists ErrorCode = "ROLE_EXISTS"
	// ErrCodeAdminRoleMissing indicates the configured admin role cannot
	// be resolved. Authorization cannot proceed without it, so this is a
	// fatal configuration error.
	ErrCodeAdminRoleMissing ErrorCode = "ROLE_ADMIN_MISSING"
	// ErrCodePermissionNotFound indicates the permission does not exist.
	ErrCodePermissionNotFound ErrorCode = "PERMISSION_NOT_FOUND"
	// ErrCodePermissionExists indicates a permission with that name
	// already exists.
	ErrCodePermissionExists ErrorCode = "PERMISSION_EXISTS"
)

// Password errors
const (
	// ErrCodePasswordInvalid indicates a new password failed policy checks.
	ErrCodePasswordInvalid ErrorCode = "PASSWORD_INVALID"
	// ErrCodePasswordResetFailed indicates a reset token was invalid,
	// expired, or already consumed.
	ErrCodePasswordResetFailed ErrorCode = "PASSWORD_RESET_FAILED"
	// ErrCodeHashingFailed indicates the hashing primitive itself failed.
	ErrCodeHashingFailed ErrorCode = "PASSWORD_HASHING_FAILED"
	// ErrCodeInvalidHash indicates a stored hash is malformed.
	ErrCodeInvalidHash ErrorCode = "PASSWORD_INVALID_HASH"
)

// Email delivery errors
const (
	// ErrCodeEmailSendFailed indicates outbound mail delivery failed.
	// Non-fatal to the enclosing request but always reported.
	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
)

// OAuth / federation errors
const (
	// ErrCodeProviderUnknown indicates an unconfigured OAuth provider.
	ErrCodeProviderUnknown ErrorCode = "OAUTH_PROVIDER_UNKNOWN"
	// ErrCodeExchangeFailed indicates the provider code/token exchange failed.
	ErrCodeExchangeFailed ErrorCode = "OAUTH_EXCHANGE_FAILED"
	// ErrCodeInvalidState indicates a CSRF state mismatch on callback.
	ErrCodeInvalidState ErrorCode = "OAUTH_INVALID_STATE"
)

// System errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "SYSTEM_INTERNAL"
	// ErrCodeDatabase indicates a persistence-layer failure.
	ErrCodeDatabase ErrorCode = "SYSTEM_DATABASE"
	// ErrCodeConfig indicates invalid or missing configuration.
	ErrCodeConfig ErrorCode = "SYSTEM_CONFIG"
	// ErrCodeInvalidInput indicates a malformed request body or parameter.
	ErrCodeInvalidInput ErrorCode = "SYSTEM_INVALID_INPUT"
	// ErrCodeNotFound indicates a generic missing resource.
	ErrCodeNotFound ErrorCode = "SYSTEM_NOT_FOUND"
)
