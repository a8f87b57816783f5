package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DuplicateField identifies which uniqueness constraint a create violated.
type DuplicateField string

const (
	DupEmail          DuplicateField = "email"
	DupUsername       DuplicateField = "username"
	DupPhone          DuplicateField = "phone"
	DupRoleName       DuplicateField = "role_name"
	DupPermissionName DuplicateField = "permission_name"
	DupIdentity       DuplicateField = "external_identity"
)

// DuplicateError reports a uniqueness violation on create, identifying the
// conflicting field so callers can map it to a field-specific error code.
type DuplicateError struct {
	Field DuplicateField
	Cause error
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("store: duplicate %s", e.Field)
}

// Unwrap returns the underlying driver error.
func (e *DuplicateError) Unwrap() error { return e.Cause }

// IsDuplicate reports whether err is a uniqueness violation and, if so,
// which field conflicted.
func IsDuplicate(err error) (DuplicateField, bool) {
	var dup *DuplicateError
	if stderrors.As(err, &dup) {
		return dup.Field, true
	}
	return "", false
}

// RotateOutcome describes the result of a conditional rotation attempt.
type RotateOutcome int

const (
	// RotateOK means the marker matched and was advanced.
	RotateOK RotateOutcome = iota
	// RotateStale means the chain exists but the presented marker was
	// already superseded, a reuse signal.
	RotateStale
	// RotateMissing means no session exists for the chain (revoked or
	// never issued).
	RotateMissing
)

// UserStore is the user portion of the persistence contract. Lookups return
// (nil, nil) when nothing matches; only infrastructure failures are errors.
// Read operations never populate PasswordHash except the dedicated
// credential lookup.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByEmailWithCredential includes the password hash. It exists
	// only for credential verification.
	FindUserByEmailWithCredential(ctx context.Context, email string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindUserByIDWithRolesAndPermissions resolves the user's roles and
	// each role's permissions (two levels) using batched lookups.
	FindUserByIDWithRolesAndPermissions(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	// UserRoleIDs returns the user's role-id set without resolving roles.
	UserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	SetUserVerified(ctx context.Context, userID uuid.UUID, verified bool) error
	SetUserBanned(ctx context.Context, userID uuid.UUID, banned bool) error
	SetUserPassword(ctx context.Context, userID uuid.UUID, hash string) error
}

// RoleStore is the role portion of the persistence contract.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindRoleByID(ctx context.Context, id uuid.UUID) (*Role, error)
	// FindRolesByIDs resolves permissions for each returned role. Unknown
	// ids are silently omitted.
	FindRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	// ListRoles returns all roles with permissions resolved.
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, r *Role) error
	// UpdateRolePermissions replaces the role's permission set.
	UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	DeleteRole(ctx context.Context, id uuid.UUID) error
}

// PermissionStore is the permission portion of the persistence contract.
type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	FindPermissionByID(ctx context.Context, id uuid.UUID) (*Permission, error)
	FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id uuid.UUID) error
}

// IdentityStore is the external-identity portion of the persistence contract.
type IdentityStore interface {
	CreateExternalIdentity(ctx context.Context, e *ExternalIdentity) error
	FindExternalIdentity(ctx context.Context, provider, subject string) (*ExternalIdentity, error)
	ListUserIdentities(ctx context.Context, userID uuid.UUID) ([]ExternalIdentity, error)
}

// SessionStore tracks refresh-token rotation markers.
type SessionStore interface {
	CreateRefreshSession(ctx context.Context, s *RefreshSession) error
	// RotateRefreshSession atomically advances the rotation marker iff the
	// presented one is current.
	RotateRefreshSession(ctx context.Context, chainID, oldRotationID, newRotationID uuid.UUID, expiresAt time.Time) (RotateOutcome, error)
	DeleteRefreshChain(ctx context.Context, chainID uuid.UUID) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
}

// ActionTokenStore persists single-use action-token digests.
type ActionTokenStore interface {
	SaveActionToken(ctx context.Context, t *ActionToken) error
	// ConsumeActionToken atomically deletes and returns the token if it
	// exists, matches the purpose, and has not expired; (nil, nil) otherwise.
	ConsumeActionToken(ctx context.Context, digest, purpose string) (*ActionToken, error)
}

// Store is the full persistence contract consumed by the identity core.
type Store interface {
	UserStore
	RoleStore
	PermissionStore
	IdentityStore
	SessionStore
	ActionTokenStore
}
