package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/store"
)

// ManagerStore is the slice of the store contract the manager consumes.
type ManagerStore interface {
	store.RoleStore
	store.PermissionStore
	UserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// Manager performs administrative mutations of the role/permission model.
// Every mutation that can move the admin role invalidates the authorizer's
// cached admin id.
type Manager struct {
	store ManagerStore
	authz *Authorizer
	log   *logger.Logger
}

// NewManager creates a Manager bound to the given store and authorizer.
func NewManager(s ManagerStore, authz *Authorizer, log *logger.Logger) *Manager {
	return &Manager{store: s, authz: authz, log: log.WithComponent("rbac-manager")}
}

// --- roles ---

// CreateRole creates a role with the given permission set. Every referenced
// permission must exist.
func (m *Manager) CreateRole(ctx context.Context, name, description string, permissionIDs []uuid.UUID) (*store.Role, error) {
	perms, err := m.resolvePermissionIDs(ctx, permissionIDs)
	if err != nil {
		return nil, err
	}

	role := &store.Role{Name: name, Description: description}
	if err := m.store.CreateRole(ctx, role); err != nil {
		if _, ok := store.IsDuplicate(err); ok {
			return nil, errors.RoleExists(name)
		}
		return nil, err
	}
	if len(permissionIDs) > 0 {
		if err := m.store.UpdateRolePermissions(ctx, role.ID, permissionIDs); err != nil {
			return nil, err
		}
	}
	role.Permissions = perms

	// A recreated admin role must not be shadowed by a stale cached id.
	m.authz.InvalidateAdminRole()
	m.log.Info("role created", logger.Fields(logger.FieldRoleID, role.ID.String(), "name", name))
	return role, nil
}

// GetRole returns the role with permissions resolved.
func (m *Manager) GetRole(ctx context.Context, id uuid.UUID) (*store.Role, error) {
	role, err := m.store.FindRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, errors.RoleNotFound(id.String())
	}
	return role, nil
}

// ListRoles returns all roles with permissions resolved.
func (m *Manager) ListRoles(ctx context.Context) ([]store.Role, error) {
	return m.store.ListRoles(ctx)
}

// UpdateRole renames or re-describes a role. Identity follows the id, so a
// rename never moves privileges between subjects.
func (m *Manager) UpdateRole(ctx context.Context, id uuid.UUID, name, description string) (*store.Role, error) {
	role, err := m.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Name = name
	role.Description = description
	if err := m.store.UpdateRole(ctx, role); err != nil {
		if _, ok := store.IsDuplicate(err); ok {
			return nil, errors.RoleExists(name)
		}
		return nil, err
	}
	// A rename may take or release the configured admin name.
	m.authz.InvalidateAdminRole()
	return role, nil
}

// SetRolePermissions replaces the role's permission set. Every referenced
// permission must exist.
func (m *Manager) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) (*store.Role, error) {
	role, err := m.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := m.resolvePermissionIDs(ctx, permissionIDs)
	if err != nil {
		return nil, err
	}
	if err := m.store.UpdateRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return nil, err
	}
	role.Permissions = perms
	return role, nil
}

// DeleteRole removes a role together with its user assignments and
// permission links. Users keep their other roles.
func (m *Manager) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := m.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	m.authz.InvalidateAdminRole()
	m.log.Info("role deleted", logger.Fields(logger.FieldRoleID, id.String(), "name", role.Name))
	return nil
}

// --- permissions ---

// CreatePermission creates a permission.
func (m *Manager) CreatePermission(ctx context.Context, name, description string) (*store.Permission, error) {
	p := &store.Permission{Name: name, Description: description}
	if err := m.store.CreatePermission(ctx, p); err != nil {
		if _, ok := store.IsDuplicate(err); ok {
			return nil, errors.PermissionExists(name)
		}
		return nil, err
	}
	return p, nil
}

// GetPermission returns the permission by id.
func (m *Manager) GetPermission(ctx context.Context, id uuid.UUID) (*store.Permission, error) {
	p, err := m.store.FindPermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.PermissionNotFound(id.String())
	}
	return p, nil
}

// ListPermissions returns all permissions.
func (m *Manager) ListPermissions(ctx context.Context) ([]store.Permission, error) {
	return m.store.ListPermissions(ctx)
}

// UpdatePermission renames or re-describes a permission. Roles reference it
// by id, so the new name takes effect everywhere at once.
func (m *Manager) UpdatePermission(ctx context.Context, id uuid.UUID, name, description string) (*store.Permission, error) {
	p, err := m.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.Description = description
	if err := m.store.UpdatePermission(ctx, p); err != nil {
		if _, ok := store.IsDuplicate(err); ok {
			return nil, errors.PermissionExists(name)
		}
		return nil, err
	}
	return p, nil
}

// DeletePermission removes a permission and detaches it from every role.
func (m *Manager) DeletePermission(ctx context.Context, id uuid.UUID) error {
	if _, err := m.GetPermission(ctx, id); err != nil {
		return err
	}
	return m.store.DeletePermission(ctx, id)
}

// --- user role assignment ---

// AssignUserRoles replaces the user's role set. Every referenced role must
// exist.
func (m *Manager) AssignUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	user, err := m.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.UserNotFound(userID.String())
	}
	roles, err := m.store.FindRolesByIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	if missing := missingIDs(roleIDs, roles); missing != uuid.Nil {
		return errors.RoleNotFound(missing.String())
	}
	if err := m.store.SetUserRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	m.log.Info("user roles updated", logger.Fields(logger.FieldUserID, userID.String(), "roles", len(roleIDs)))
	return nil
}

// resolvePermissionIDs loads the referenced permissions, failing if any id
// is unknown.
func (m *Manager) resolvePermissionIDs(ctx context.Context, ids []uuid.UUID) ([]store.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	perms, err := m.store.FindPermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]struct{}, len(perms))
	for i := range perms {
		found[perms[i].ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, errors.PermissionNotFound(id.String())
		}
	}
	return perms, nil
}

// missingIDs returns the first requested role id absent from the resolved
// set, or uuid.Nil when all were found.
func missingIDs(ids []uuid.UUID, roles []store.Role) uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(roles))
	for i := range roles {
		found[roles[i].ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return uuid.Nil
}
