package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillsenselab/identity/errors"
)

// CreateRole inserts the role. Permission assignments go through
// UpdateRolePermissions.
func (g *Gorm) CreateRole(ctx context.Context, r *Role) error {
	if err := g.conn(ctx).Create(r).Error; err != nil {
		if isDuplicateErr(err) {
			return duplicate(err, DupRoleName, nil)
		}
		return errors.Database(err)
	}
	return nil
}

// FindRoleByName returns the role with permissions resolved, or (nil, nil).
func (g *Gorm) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	return g.findRole(ctx, "name = ?", name)
}

// FindRoleByID returns the role with permissions resolved, or (nil, nil).
func (g *Gorm) FindRoleByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	return g.findRole(ctx, "id = ?", id)
}

func (g *Gorm) findRole(ctx context.Context, query string, arg any) (*Role, error) {
	var r Role
	if err := g.conn(ctx).Where(query, arg).First(&r).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errors.Database(err)
	}
	roles := []Role{r}
	if err := g.resolvePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

// FindRolesByIDs returns the existing roles among ids with permissions
// resolved. Unknown ids are silently omitted so callers can fail closed on
// an empty result.
func (g *Gorm) FindRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []Role
	if err := g.conn(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, errors.Database(err)
	}
	if err := g.resolvePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ListRoles returns all roles with permissions resolved.
func (g *Gorm) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := g.conn(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, errors.Database(err)
	}
	if err := g.resolvePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UpdateRole updates name and description.
func (g *Gorm) UpdateRole(ctx context.Context, r *Role) error {
	res := g.conn(ctx).Model(&Role{}).Where("id = ?", r.ID).
		Updates(map[string]any{"name": r.Name, "description": r.Description})
	if res.Error != nil {
		if isDuplicateErr(res.Error) {
			return duplicate(res.Error, DupRoleName, nil)
		}
		return errors.Database(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.RoleNotFound(r.ID.String())
	}
	return nil
}

// UpdateRolePermissions replaces the role's permission set.
func (g *Gorm) UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		links := make([]rolePermission, len(permissionIDs))
		for i, pid := range permissionIDs {
			links[i] = rolePermission{RoleID: roleID, PermissionID: pid}
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		return errors.Database(err)
	}
	return nil
}

// DeleteRole removes the role, its permission links, and its user
// assignments. Deleting an absent role is a no-op.
func (g *Gorm) DeleteRole(ctx context.Context, id uuid.UUID) error {
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&userRole{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Role{}).Error
	})
	if err != nil {
		return errors.Database(err)
	}
	return nil
}

// resolvePermissions attaches each role's permission set using two batched
// queries regardless of role count.
func (g *Gorm) resolvePermissions(ctx context.Context, roles []Role) error {
	if len(roles) == 0 {
		return nil
	}
	roleIDs := make([]uuid.UUID, len(roles))
	for i := range roles {
		roleIDs[i] = roles[i].ID
	}

	var links []rolePermission
	if err := g.conn(ctx).Where("role_id IN ?", roleIDs).Find(&links).Error; err != nil {
		return errors.Database(err)
	}
	if len(links) == 0 {
		return nil
	}

	permIDs := make([]uuid.UUID, 0, len(links))
	seen := make(map[uuid.UUID]bool, len(links))
	for _, l := range links {
		if !seen[l.PermissionID] {
			seen[l.PermissionID] = true
			permIDs = append(permIDs, l.PermissionID)
		}
	}

	var perms []Permission
	if err := g.conn(ctx).Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
		return errors.Database(err)
	}
	byID := make(map[uuid.UUID]Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}

	byRole := make(map[uuid.UUID][]Permission, len(roles))
	for _, l := range links {
		if p, ok := byID[l.PermissionID]; ok {
			byRole[l.RoleID] = append(byRole[l.RoleID], p)
		}
	}
	for i := range roles {
		roles[i].Permissions = byRole[roles[i].ID]
	}
	return nil
}

// --- permissions ---

// CreatePermission inserts the permission.
func (g *Gorm) CreatePermission(ctx context.Context, p *Permission) error {
	if err := g.conn(ctx).Create(p).Error; err != nil {
		if isDuplicateErr(err) {
			return duplicate(err, DupPermissionName, nil)
		}
		return errors.Database(err)
	}
	return nil
}

// FindPermissionByName returns the permission or (nil, nil).
func (g *Gorm) FindPermissionByName(ctx context.Context, name string) (*Permission, error) {
	return g.findPermission(ctx, "name = ?", name)
}

// FindPermissionByID returns the permission or (nil, nil).
func (g *Gorm) FindPermissionByID(ctx context.Context, id uuid.UUID) (*Permission, error) {
	return g.findPermission(ctx, "id = ?", id)
}

func (g *Gorm) findPermission(ctx context.Context, query string, arg any) (*Permission, error) {
	var p Permission
	if err := g.conn(ctx).Where(query, arg).First(&p).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errors.Database(err)
	}
	return &p, nil
}

// FindPermissionsByIDs returns the existing permissions among ids.
func (g *Gorm) FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var perms []Permission
	if err := g.conn(ctx).Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, errors.Database(err)
	}
	return perms, nil
}

// ListPermissions returns all permissions.
func (g *Gorm) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := g.conn(ctx).Order("name").Find(&perms).Error; err != nil {
		return nil, errors.Database(err)
	}
	return perms, nil
}

// UpdatePermission updates name and description.
func (g *Gorm) UpdatePermission(ctx context.Context, p *Permission) error {
	res := g.conn(ctx).Model(&Permission{}).Where("id = ?", p.ID).
		Updates(map[string]any{"name": p.Name, "description": p.Description})
	if res.Error != nil {
		if isDuplicateErr(res.Error) {
			return duplicate(res.Error, DupPermissionName, nil)
		}
		return errors.Database(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.PermissionNotFound(p.ID.String())
	}
	return nil
}

// DeletePermission removes the permission and its role links. Roles keep
// their other permissions untouched.
func (g *Gorm) DeletePermission(ctx context.Context, id uuid.UUID) error {
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Permission{}).Error
	})
	if err != nil {
		return errors.Database(err)
	}
	return nil
}
