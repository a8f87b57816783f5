// Package store defines the persistence contract consumed by the identity
// core, together with a GORM-backed implementation. Any storage technology
// satisfying the Store interface is interchangeable.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a local account. OAuth-only accounts have an empty PasswordHash.
// Users are never hard-deleted; banning is the terminal state.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Phone     *string   `gorm:"uniqueIndex" json:"phone,omitempty"`
	// PasswordHash is populated only by FindUserByEmailWithCredential and
	// never serialized.
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	Banned       bool      `gorm:"not null;default:false" json:"banned"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// RoleIDs and Roles are resolved by batched lookups, not ORM relations.
	RoleIDs []uuid.UUID `gorm:"-" json:"role_ids"`
	Roles   []Role      `gorm:"-" json:"roles,omitempty"`

	Identities []ExternalIdentity `gorm:"-" json:"identities,omitempty"`
}

// BeforeCreate generates a UUID if not already set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Role groups permissions under a unique name. The admin role is designated
// by configuration and referenced by ID everywhere after startup so that a
// rename cannot shift privileges.
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Permissions are resolved by batched lookups.
	Permissions []Permission `gorm:"-" json:"permissions,omitempty"`
}

// BeforeCreate generates a UUID if not already set.
func (r *Role) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// HasPermission reports whether the resolved permission set contains name.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Permission is an independent entity referenced by roles, never embedded
// by value, so renaming one does not rewrite roles. Names follow the
// resource:action convention.
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate generates a UUID if not already set.
func (p *Permission) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ExternalIdentity links a federated provider identity to a local user.
// The (provider, subject) pair is globally unique.
type ExternalIdentity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Provider  string    `gorm:"uniqueIndex:idx_provider_subject;not null" json:"provider"`
	Subject   string    `gorm:"uniqueIndex:idx_provider_subject;not null" json:"subject"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate generates a UUID if not already set.
func (e *ExternalIdentity) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RefreshSession tracks the rotation marker for one refresh-token chain.
// Access tokens are stateless and never persisted.
type RefreshSession struct {
	ChainID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"chain_id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	RotationID uuid.UUID `gorm:"type:uuid;not null" json:"rotation_id"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActionToken is the stored digest of a single-use email-verification or
// password-reset token. The raw token is mailed once and never persisted.
type ActionToken struct {
	Digest    string    `gorm:"primaryKey" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Purpose   string    `gorm:"not null" json:"purpose"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Action token purposes.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

// userRole is the user→role join row.
type userRole struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// rolePermission is the role→permission join row.
type rolePermission struct {
	RoleID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PermissionID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// UserFilter narrows ListUsers results. Zero values mean "any".
type UserFilter struct {
	Email    string
	Username string
	Verified *bool
	Banned   *bool
	Limit    int
	Offset   int
}
