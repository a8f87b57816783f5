// Package rbac implements the authorization model: role→permission
// resolution, the permitted/denied decision function, and administrative
// management of roles and permissions.
package rbac

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/store"
)

// RoleSource is the slice of the store contract the authorizer consumes.
type RoleSource interface {
	FindRoleByName(ctx context.Context, name string) (*store.Role, error)
	FindRoleByID(ctx context.Context, id uuid.UUID) (*store.Role, error)
	FindRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]store.Role, error)
}

// DefaultAdminCacheTTL bounds how long a cached admin-role id is trusted
// without re-confirming it still exists. A repurposed or deleted role id
// must stop granting admin rights within this window even if no explicit
// invalidation fired.
const DefaultAdminCacheTTL = 30 * time.Second

// Authorizer answers "is this subject permitted". It holds the only piece
// of shared mutable state in the core: the admin-role-id cache.
type Authorizer struct {
	roles     RoleSource
	adminName string
	ttl       time.Duration
	log       *logger.Logger

	mu        sync.RWMutex
	adminID   uuid.UUID
	fetchedAt time.Time
}

// AuthorizerOption configures the Authorizer.
type AuthorizerOption func(*Authorizer)

// WithAdminCacheTTL overrides the admin-role cache TTL.
func WithAdminCacheTTL(ttl time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// NewAuthorizer creates an Authorizer. adminRoleName is the configured name
// of the admin role; it is resolved to an id on first use and referenced by
// id from then on.
func NewAuthorizer(roles RoleSource, adminRoleName string, log *logger.Logger, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		roles:     roles,
		adminName: adminRoleName,
		ttl:       DefaultAdminCacheTTL,
		log:       log.WithComponent("rbac"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AdminRoleID returns the identifier of the configured admin role, fetching
// it once and reusing the cached value until the TTL lapses or an explicit
// invalidation. Concurrent cache misses collapse into a single store
// lookup: the first miss fetches under the write lock, the rest re-check
// and find the fresh value.
func (a *Authorizer) AdminRoleID(ctx context.Context) (uuid.UUID, error) {
	a.mu.RLock()
	if a.fresh() {
		id := a.adminID
		a.mu.RUnlock()
		return id, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fresh() {
		return a.adminID, nil
	}

	role, err := a.roles.FindRoleByName(ctx, a.adminName)
	if err != nil {
		return uuid.Nil, err
	}
	if role == nil {
		return uuid.Nil, errors.AdminRoleMissing(a.adminName)
	}
	a.adminID = role.ID
	a.fetchedAt = time.Now()
	return a.adminID, nil
}

// fresh reports whether the cached admin id can be trusted. Callers must
// hold at least the read lock.
func (a *Authorizer) fresh() bool {
	return a.adminID != uuid.Nil && time.Since(a.fetchedAt) < a.ttl
}

// InvalidateAdminRole forces the next AdminRoleID call to re-fetch. Called
// whenever a role is deleted or created so a recreated admin role cannot be
// shadowed by a stale id, and a repurposed id cannot keep admin rights.
func (a *Authorizer) InvalidateAdminRole() {
	a.mu.Lock()
	a.adminID = uuid.Nil
	a.fetchedAt = time.Time{}
	a.mu.Unlock()
}

// Verify resolves the configured admin role eagerly. Called at startup so a
// missing admin role fails fast instead of surfacing on the first request.
func (a *Authorizer) Verify(ctx context.Context) error {
	_, err := a.AdminRoleID(ctx)
	return err
}

// HasPermission reports whether any of the subject's roles carries the
// required permission. Roles referencing deleted entities resolve to
// nothing; a subject with zero resolvable roles is never authorized.
func (a *Authorizer) HasPermission(ctx context.Context, roleIDs []uuid.UUID, permission string) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	roles, err := a.roles.FindRolesByIDs(ctx, roleIDs)
	if err != nil {
		return false, err
	}
	for i := range roles {
		if roles[i].HasPermission(permission) {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the required role id is in the subject's role-id
// set. No hierarchy: permissions are the only transitive mechanism.
func (a *Authorizer) HasRole(roleIDs []uuid.UUID, required uuid.UUID) bool {
	for _, id := range roleIDs {
		if id == required {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the subject holds the configured admin role.
func (a *Authorizer) IsAdmin(ctx context.Context, roleIDs []uuid.UUID) (bool, error) {
	adminID, err := a.AdminRoleID(ctx)
	if err != nil {
		return false, err
	}
	return a.HasRole(roleIDs, adminID), nil
}
