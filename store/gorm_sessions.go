package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillsenselab/identity/errors"
)

// --- external identities ---

// CreateExternalIdentity links a federated identity to a user. The
// (provider, subject) pair is unique; a conflict means another request
// created the link first.
func (g *Gorm) CreateExternalIdentity(ctx context.Context, e *ExternalIdentity) error {
	if err := g.conn(ctx).Create(e).Error; err != nil {
		if isDuplicateErr(err) {
			return duplicate(err, DupIdentity, nil)
		}
		return errors.Database(err)
	}
	return nil
}

// FindExternalIdentity returns the identity or (nil, nil).
func (g *Gorm) FindExternalIdentity(ctx context.Context, provider, subject string) (*ExternalIdentity, error) {
	var e ExternalIdentity
	err := g.conn(ctx).Where("provider = ? AND subject = ?", provider, subject).First(&e).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errors.Database(err)
	}
	return &e, nil
}

// ListUserIdentities returns all federated identities linked to the user.
func (g *Gorm) ListUserIdentities(ctx context.Context, userID uuid.UUID) ([]ExternalIdentity, error) {
	var identities []ExternalIdentity
	if err := g.conn(ctx).Where("user_id = ?", userID).Order("provider").Find(&identities).Error; err != nil {
		return nil, errors.Database(err)
	}
	return identities, nil
}

// --- refresh sessions ---

// CreateRefreshSession records the rotation marker for a new chain.
func (g *Gorm) CreateRefreshSession(ctx context.Context, s *RefreshSession) error {
	if err := g.conn(ctx).Create(s).Error; err != nil {
		return errors.Database(err)
	}
	return nil
}

// RotateRefreshSession advances the rotation marker with a conditional
// update: the row changes only when the presented marker is still current.
// Zero rows affected distinguishes a superseded marker (reuse) from a
// missing chain (revoked).
func (g *Gorm) RotateRefreshSession(ctx context.Context, chainID, oldRotationID, newRotationID uuid.UUID, expiresAt time.Time) (RotateOutcome, error) {
	outcome := RotateOK
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&RefreshSession{}).
			Where("chain_id = ? AND rotation_id = ?", chainID, oldRotationID).
			Updates(map[string]any{"rotation_id": newRotationID, "expires_at": expiresAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			outcome = RotateOK
			return nil
		}
		var count int64
		if err := tx.Model(&RefreshSession{}).Where("chain_id = ?", chainID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			outcome = RotateStale
		} else {
			outcome = RotateMissing
		}
		return nil
	})
	if err != nil {
		return RotateMissing, errors.Database(err)
	}
	return outcome, nil
}

// DeleteRefreshChain revokes a single rotation chain.
func (g *Gorm) DeleteRefreshChain(ctx context.Context, chainID uuid.UUID) error {
	if err := g.conn(ctx).Where("chain_id = ?", chainID).Delete(&RefreshSession{}).Error; err != nil {
		return errors.Database(err)
	}
	return nil
}

// DeleteUserSessions revokes every rotation chain for the user.
func (g *Gorm) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if err := g.conn(ctx).Where("user_id = ?", userID).Delete(&RefreshSession{}).Error; err != nil {
		return errors.Database(err)
	}
	return nil
}

// --- action tokens ---

// SaveActionToken stores a single-use token digest.
func (g *Gorm) SaveActionToken(ctx context.Context, t *ActionToken) error {
	if err := g.conn(ctx).Create(t).Error; err != nil {
		return errors.Database(err)
	}
	return nil
}

// ConsumeActionToken deletes and returns the token if it exists, matches
// the purpose, and has not expired; (nil, nil) otherwise. Expired tokens
// are deleted on sight.
func (g *Gorm) ConsumeActionToken(ctx context.Context, digest, purpose string) (*ActionToken, error) {
	var token *ActionToken
	err := g.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var t ActionToken
		err := tx.Where("digest = ? AND purpose = ?", digest, purpose).First(&t).Error
		if err != nil {
			if notFound(err) {
				return nil
			}
			return err
		}
		if err := tx.Where("digest = ?", digest).Delete(&ActionToken{}).Error; err != nil {
			return err
		}
		if time.Now().After(t.ExpiresAt) {
			return nil
		}
		token = &t
		return nil
	})
	if err != nil {
		return nil, errors.Database(err)
	}
	return token, nil
}
