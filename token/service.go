// Package token issues and verifies the access/refresh token pair and runs
// the refresh-rotation protocol, including reuse detection.
package token

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/store"
)

// RoleSource supplies the current role-id set of a user. Refresh re-reads
// roles so privilege changes propagate within one access-token lifetime.
type RoleSource interface {
	UserRoleIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Service signs, verifies, and rotates tokens.
type Service struct {
	cfg      Config
	method   jwt.SigningMethod
	key      []byte
	sessions store.SessionStore
	roles    RoleSource
	log      *logger.Logger
}

// NewService creates a token Service. The signing method must be an HMAC
// variant; asymmetric methods would need key-pair plumbing this service
// does not carry.
func NewService(cfg Config, sessions store.SessionStore, roles RoleSource, log *logger.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method := jwt.GetSigningMethod(cfg.Method)
	if method == nil {
		return nil, fmt.Errorf("token: unknown signing method %q", cfg.Method)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token: signing method %q is not an HMAC variant", cfg.Method)
	}
	return &Service{
		cfg:      cfg,
		method:   method,
		key:      []byte(cfg.Secret),
		sessions: sessions,
		roles:    roles,
		log:      log.WithComponent("token"),
	}, nil
}

// Issue starts a new rotation chain for the user and returns the first
// token pair. Called on every successful login; concurrent logins get
// independent chains.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (*Pair, error) {
	now := time.Now()
	chainID := uuid.New()
	rotationID := uuid.New()
	refreshExpiry := now.Add(s.cfg.RefreshTTL)

	session := &store.RefreshSession{
		ChainID:    chainID,
		UserID:     userID,
		RotationID: rotationID,
		ExpiresAt:  refreshExpiry,
	}
	if err := s.sessions.CreateRefreshSession(ctx, session); err != nil {
		return nil, err
	}
	return s.signPair(userID, roleIDs, chainID, rotationID, now, refreshExpiry)
}

// VerifyAccess validates an access token and returns the subject. Expired
// and otherwise-invalid tokens map to distinct codes; no further detail
// leaks to the caller.
func (s *Service) VerifyAccess(tokenString string) (*Subject, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{s.cfg.Method}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithLeeway(s.cfg.Leeway),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}
	if claims.Type != typeAccess {
		return nil, errors.TokenInvalid()
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.TokenInvalid()
	}
	roleIDs := make([]uuid.UUID, 0, len(claims.RoleIDs))
	for _, raw := range claims.RoleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.TokenInvalid()
		}
		roleIDs = append(roleIDs, id)
	}
	return &Subject{UserID: userID, RoleIDs: roleIDs}, nil
}

// Refresh rotates the chain and returns a fresh pair. Presenting a
// superseded rotation marker is treated as theft evidence: the configured
// revocation scope is applied and the caller gets a reuse error.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, chainID, rotationID, err := refreshIDs(claims)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRotationID := uuid.New()
	refreshExpiry := now.Add(s.cfg.RefreshTTL)

	outcome, err := s.sessions.RotateRefreshSession(ctx, chainID, rotationID, newRotationID, refreshExpiry)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case store.RotateOK:
		// Roles are re-read here so a promotion or demotion takes effect
		// without waiting for chain expiry.
		roleIDs, err := s.roles.UserRoleIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.signPair(userID, roleIDs, chainID, newRotationID, now, refreshExpiry)
	case store.RotateStale:
		s.log.Warn("refresh token reuse detected", logger.Fields(
			logger.FieldUserID, userID.String(),
			"chain_id", chainID.String(),
			"revoke_scope", s.cfg.RevokeScope,
		))
		if revokeErr := s.revokeForReuse(ctx, userID, chainID); revokeErr != nil {
			return nil, revokeErr
		}
		return nil, errors.TokenReused()
	default:
		return nil, errors.RefreshMissing()
	}
}

// Revoke ends the rotation chain a refresh token belongs to. An expired
// token still identifies its chain and is accepted; a token with a bad
// signature is not.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil && !errors.HasCode(err, errors.ErrCodeTokenExpired) {
		return err
	}
	if claims == nil {
		return errors.TokenInvalid()
	}
	chainID, err := uuid.Parse(claims.ChainID)
	if err != nil {
		return errors.TokenInvalid()
	}
	return s.sessions.DeleteRefreshChain(ctx, chainID)
}

// RevokeAll ends every rotation chain of the user. Used on ban and on
// password reset.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.DeleteUserSessions(ctx, userID)
}

func (s *Service) revokeForReuse(ctx context.Context, userID, chainID uuid.UUID) error {
	if s.cfg.RevokeScope == RevokeScopeAll {
		return s.sessions.DeleteUserSessions(ctx, userID)
	}
	return s.sessions.DeleteRefreshChain(ctx, chainID)
}

// parseRefresh validates a refresh token's signature and claims. On pure
// expiry the parsed claims are returned alongside the error so revocation
// can still locate the chain.
func (s *Service) parseRefresh(tokenString string) (*RefreshClaims, error) {
	var claims RefreshClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{s.cfg.Method}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithLeeway(s.cfg.Leeway),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) && claims.Type == typeRefresh {
			return &claims, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}
	if claims.Type != typeRefresh {
		return nil, errors.TokenInvalid()
	}
	return &claims, nil
}

func refreshIDs(claims *RefreshClaims) (userID, chainID, rotationID uuid.UUID, err error) {
	if userID, err = uuid.Parse(claims.Subject); err != nil {
		return userID, chainID, rotationID, errors.TokenInvalid()
	}
	if chainID, err = uuid.Parse(claims.ChainID); err != nil {
		return userID, chainID, rotationID, errors.TokenInvalid()
	}
	if rotationID, err = uuid.Parse(claims.RotationID); err != nil {
		return userID, chainID, rotationID, errors.TokenInvalid()
	}
	return userID, chainID, rotationID, nil
}

func (s *Service) keyFunc(_ *jwt.Token) (interface{}, error) {
	return s.key, nil
}

func (s *Service) signPair(userID uuid.UUID, roleIDs []uuid.UUID, chainID, rotationID uuid.UUID, now, refreshExpiry time.Time) (*Pair, error) {
	accessExpiry := now.Add(s.cfg.AccessTTL)

	roles := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		roles[i] = id.String()
	}
	access := jwt.NewWithClaims(s.method, AccessClaims{
		Type:    typeAccess,
		RoleIDs: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			ID:        uuid.NewString(),
		},
	})
	accessToken, err := access.SignedString(s.key)
	if err != nil {
		return nil, errors.Internal(err)
	}

	refresh := jwt.NewWithClaims(s.method, RefreshClaims{
		Type:       typeRefresh,
		ChainID:    chainID.String(),
		RotationID: rotationID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			ID:        uuid.NewString(),
		},
	})
	refreshToken, err := refresh.SignedString(s.key)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &Pair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExpiry.Unix(),
		RefreshExpiresAt: refreshExpiry.Unix(),
	}, nil
}
