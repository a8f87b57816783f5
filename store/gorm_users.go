package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillsenselab/identity/errors"
)

// publicUserColumns excludes password_hash so ordinary reads can never leak
// credentials. Only FindUserByEmailWithCredential selects the full row.
var publicUserColumns = []string{
	"id", "email", "username", "phone", "verified", "banned",
	"created_at", "updated_at",
}

// CreateUser inserts the user and its role assignments.
func (g *Gorm) CreateUser(ctx context.Context, u *User) error {
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return replaceUserRoles(tx, u.ID, u.RoleIDs)
	})
	if err != nil {
		if isDuplicateErr(err) {
			return duplicate(err, DupEmail, userColumns)
		}
		return errors.Database(err)
	}
	return nil
}

// FindUserByEmail returns the user without the password hash, or (nil, nil).
func (g *Gorm) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return g.findUser(ctx, "email = ?", email)
}

// FindUserByEmailWithCredential returns the user including the password
// hash. It exists only for credential verification.
func (g *Gorm) FindUserByEmailWithCredential(ctx context.Context, email string) (*User, error) {
	var u User
	if err := g.conn(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errors.Database(err)
	}
	if err := g.populateRoleIDs(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByUsername returns the user or (nil, nil).
func (g *Gorm) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	return g.findUser(ctx, "username = ?", username)
}

// FindUserByPhone returns the user or (nil, nil).
func (g *Gorm) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	return g.findUser(ctx, "phone = ?", phone)
}

// FindUserByID returns the user or (nil, nil).
func (g *Gorm) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return g.findUser(ctx, "id = ?", id)
}

func (g *Gorm) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := g.conn(ctx).Select(publicUserColumns).Where(query, arg).First(&u).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errors.Database(err)
	}
	if err := g.populateRoleIDs(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByIDWithRolesAndPermissions resolves the user's roles and each
// role's permissions with batched lookups (two levels, no per-row queries).
func (g *Gorm) FindUserByIDWithRolesAndPermissions(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := g.FindUserByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	roles, err := g.FindRolesByIDs(ctx, u.RoleIDs)
	if err != nil {
		return nil, err
	}
	u.Roles = roles

	identities, err := g.ListUserIdentities(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Identities = identities
	return u, nil
}

// ListUsers returns users matching the filter, role ids resolved in one
// batched query.
func (g *Gorm) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	q := g.conn(ctx).Select(publicUserColumns).Model(&User{})
	if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	}
	if filter.Username != "" {
		q = q.Where("username = ?", filter.Username)
	}
	if filter.Verified != nil {
		q = q.Where("verified = ?", *filter.Verified)
	}
	if filter.Banned != nil {
		q = q.Where("banned = ?", *filter.Banned)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var users []User
	if err := q.Order("created_at").Find(&users).Error; err != nil {
		return nil, errors.Database(err)
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	var links []userRole
	if err := g.conn(ctx).Where("user_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, errors.Database(err)
	}
	byUser := make(map[uuid.UUID][]uuid.UUID, len(users))
	for _, l := range links {
		byUser[l.UserID] = append(byUser[l.UserID], l.RoleID)
	}
	for i := range users {
		users[i].RoleIDs = byUser[users[i].ID]
	}
	return users, nil
}

// UserRoleIDs returns the user's role-id set without resolving roles.
func (g *Gorm) UserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var links []userRole
	if err := g.conn(ctx).Where("user_id = ?", userID).Find(&links).Error; err != nil {
		return nil, errors.Database(err)
	}
	ids := make([]uuid.UUID, len(links))
	for i, l := range links {
		ids[i] = l.RoleID
	}
	return ids, nil
}

// SetUserRoles replaces the user's role set.
func (g *Gorm) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceUserRoles(tx, userID, roleIDs)
	})
	if err != nil {
		return errors.Database(err)
	}
	return nil
}

// SetUserVerified updates the verification flag.
func (g *Gorm) SetUserVerified(ctx context.Context, userID uuid.UUID, verified bool) error {
	return g.updateUserField(ctx, userID, "verified", verified)
}

// SetUserBanned updates the ban flag.
func (g *Gorm) SetUserBanned(ctx context.Context, userID uuid.UUID, banned bool) error {
	return g.updateUserField(ctx, userID, "banned", banned)
}

// SetUserPassword replaces the stored password hash.
func (g *Gorm) SetUserPassword(ctx context.Context, userID uuid.UUID, hash string) error {
	return g.updateUserField(ctx, userID, "password_hash", hash)
}

func (g *Gorm) updateUserField(ctx context.Context, userID uuid.UUID, column string, value any) error {
	res := g.conn(ctx).Model(&User{}).Where("id = ?", userID).Update(column, value)
	if res.Error != nil {
		return errors.Database(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.UserNotFound(userID.String())
	}
	return nil
}

func (g *Gorm) populateRoleIDs(ctx context.Context, u *User) error {
	ids, err := g.UserRoleIDs(ctx, u.ID)
	if err != nil {
		return err
	}
	u.RoleIDs = ids
	return nil
}

func replaceUserRoles(tx *gorm.DB, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if err := tx.Where("user_id = ?", userID).Delete(&userRole{}).Error; err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	links := make([]userRole, len(roleIDs))
	for i, rid := range roleIDs {
		links[i] = userRole{UserID: userID, RoleID: rid}
	}
	return tx.Create(&links).Error
}
