// Package account orchestrates the account lifecycle: registration, local
// and federated login, token refresh, email verification, password reset,
// and moderation.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/federation"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/password"
	"github.com/skillsenselab/identity/store"
	"github.com/skillsenselab/identity/token"
)

// actionTokenLen is the byte length of raw action tokens.
const actionTokenLen = 32

// Service implements the account lifecycle.
type Service struct {
	cfg      Config
	store    store.Store
	hasher   password.Hasher
	tokens   *token.Service
	linker   *federation.Linker
	registry *federation.Registry
	mailer   Mailer
	log      *logger.Logger
}

// NewService creates the account Service. registry may be nil when no
// federated provider is configured.
func NewService(cfg Config, s store.Store, hasher password.Hasher, tokens *token.Service, registry *federation.Registry, mailer Mailer, log *logger.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		store:    s,
		hasher:   hasher,
		tokens:   tokens,
		linker:   federation.NewLinker(s, log),
		registry: registry,
		mailer:   mailer,
		log:      log.WithComponent("account"),
	}, nil
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
}

// Register creates a local account, assigns the default role, and sends
// the verification mail. Mail delivery failure does not fail the
// registration; the token can be re-requested.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     in.Username,
		Phone:        in.Phone,
		PasswordHash: hash,
	}
	if roleID, err := s.defaultRoleID(ctx); err != nil {
		return nil, err
	} else if roleID != uuid.Nil {
		user.RoleIDs = []uuid.UUID{roleID}
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, translateDuplicate(err)
	}
	s.log.Info("account registered", logger.Fields(logger.FieldUserID, user.ID.String(), logger.FieldEmail, user.Email))

	if err := s.sendActionToken(ctx, user, store.PurposeVerifyEmail); err != nil {
		s.log.Warn("verification mail failed", logger.ErrorFields("register", err))
	}
	return user, nil
}

// Login verifies credentials and starts a session. All credential failures
// collapse into one error so probing cannot distinguish an unknown address
// from a wrong password or a passwordless account.
func (s *Service) Login(ctx context.Context, email, pass string) (*store.User, *token.Pair, error) {
	user, err := s.store.FindUserByEmailWithCredential(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, errors.InvalidCredentials()
	}
	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.InvalidCredentials()
	}
	if user.Banned {
		return nil, nil, errors.AccountBanned()
	}
	if s.cfg.RequireVerifiedEmail && !user.Verified {
		return nil, nil, errors.EmailUnverified()
	}

	user.PasswordHash = ""
	pair, err := s.issue(ctx, user)
	return user, pair, err
}

// AuthURL returns the provider's authorization redirect with a fresh CSRF
// state.
func (s *Service) AuthURL(provider string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	state, err := s.registry.States().Issue()
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// FederatedLogin completes the OAuth callback: verifies the state, redeems
// the code, resolves the identity to a local account, and starts a
// session.
func (s *Service) FederatedLogin(ctx context.Context, provider, code, state string) (*store.User, *token.Pair, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, nil, err
	}
	if err := s.registry.States().Verify(state); err != nil {
		return nil, nil, err
	}
	identity, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	user, created, err := s.linker.Resolve(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	if created {
		if roleID, err := s.defaultRoleID(ctx); err != nil {
			return nil, nil, err
		} else if roleID != uuid.Nil {
			if err := s.store.SetUserRoles(ctx, user.ID, []uuid.UUID{roleID}); err != nil {
				return nil, nil, err
			}
		}
		if !user.Verified {
			if err := s.sendActionToken(ctx, user, store.PurposeVerifyEmail); err != nil {
				s.log.Warn("verification mail failed", logger.ErrorFields("federated_login", err))
			}
		}
	}
	if s.cfg.RequireVerifiedEmail && !user.Verified {
		return nil, nil, errors.EmailUnverified()
	}

	pair, err := s.issue(ctx, user)
	return user, pair, err
}

// Refresh rotates the refresh token and returns a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout ends the rotation chain the refresh token belongs to.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// RequestEmailVerification re-sends the verification mail. An unknown
// address is reported as success so the endpoint cannot be used to probe
// for accounts.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if user.Verified {
		return errors.AlreadyVerified()
	}
	return s.sendActionToken(ctx, user, store.PurposeVerifyEmail)
}

// VerifyEmail consumes a verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	consumed, err := s.store.ConsumeActionToken(ctx, password.HashSHA256(rawToken), store.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if consumed == nil {
		return errors.TokenInvalid()
	}
	if err := s.store.SetUserVerified(ctx, consumed.UserID, true); err != nil {
		return err
	}
	s.log.Info("email verified", logger.Fields(logger.FieldUserID, consumed.UserID.String()))
	return nil
}

// RequestPasswordReset mails a reset token. Unknown addresses are reported
// as success.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	return s.sendActionToken(ctx, user, store.PurposeResetPassword)
}

// ResetPassword consumes a reset token, replaces the credential, and
// revokes every session of the account.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	consumed, err := s.store.ConsumeActionToken(ctx, password.HashSHA256(rawToken), store.PurposeResetPassword)
	if err != nil {
		return err
	}
	if consumed == nil {
		return errors.PasswordResetFailed()
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetUserPassword(ctx, consumed.UserID, hash); err != nil {
		return err
	}
	// A reset usually means the old credential is suspect.
	if err := s.tokens.RevokeAll(ctx, consumed.UserID); err != nil {
		return err
	}
	s.log.Info("password reset", logger.Fields(logger.FieldUserID, consumed.UserID.String()))
	return nil
}

// Profile returns the user with roles, permissions, and linked identities
// resolved.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	user, err := s.store.FindUserByIDWithRolesAndPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.UserNotFound(userID.String())
	}
	return user, nil
}

// ListUsers returns accounts matching the filter.
func (s *Service) ListUsers(ctx context.Context, filter store.UserFilter) ([]store.User, error) {
	return s.store.ListUsers(ctx, filter)
}

// Ban marks the account banned and revokes all of its sessions. Access
// tokens issued before the ban stay valid until they expire; refresh
// does not survive it.
func (s *Service) Ban(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.SetUserBanned(ctx, userID, true); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.log.Warn("account banned", logger.Fields(logger.FieldUserID, userID.String()))
	return nil
}

// Unban lifts a ban. Sessions are not restored; the user logs in again.
func (s *Service) Unban(ctx context.Context, userID uuid.UUID) error {
	return s.store.SetUserBanned(ctx, userID, false)
}

// Providers returns the names of the configured federation providers.
func (s *Service) Providers() []string {
	if s.registry == nil {
		return nil
	}
	return s.registry.Names()
}

func (s *Service) provider(name string) (federation.Provider, error) {
	if s.registry == nil {
		return nil, errors.ProviderUnknown(name)
	}
	return s.registry.Get(name)
}

func (s *Service) issue(ctx context.Context, user *store.User) (*token.Pair, error) {
	roleIDs, err := s.store.UserRoleIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.RoleIDs = roleIDs
	return s.tokens.Issue(ctx, user.ID, roleIDs)
}

func (s *Service) defaultRoleID(ctx context.Context) (uuid.UUID, error) {
	if s.cfg.DefaultRole == "" {
		return uuid.Nil, nil
	}
	role, err := s.store.FindRoleByName(ctx, s.cfg.DefaultRole)
	if err != nil {
		return uuid.Nil, err
	}
	if role == nil {
		// Tolerated: a deployment may not seed a default role.
		return uuid.Nil, nil
	}
	return role.ID, nil
}

func (s *Service) sendActionToken(ctx context.Context, user *store.User, purpose string) error {
	raw, err := password.GenerateToken(actionTokenLen)
	if err != nil {
		return err
	}
	ttl := s.cfg.VerifyTokenTTL
	if purpose == store.PurposeResetPassword {
		ttl = s.cfg.ResetTokenTTL
	}
	if err := s.store.SaveActionToken(ctx, &store.ActionToken{
		Digest:    password.HashSHA256(raw),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}); err != nil {
		return err
	}

	var sendErr error
	switch purpose {
	case store.PurposeResetPassword:
		sendErr = s.mailer.SendPasswordReset(ctx, user.Email, raw)
	default:
		sendErr = s.mailer.SendVerification(ctx, user.Email, raw)
	}
	if sendErr != nil {
		return errors.EmailSendFailed(sendErr)
	}
	return nil
}

func translateDuplicate(err error) error {
	field, ok := store.IsDuplicate(err)
	if !ok {
		return err
	}
	switch field {
	case store.DupEmail:
		return errors.EmailTaken()
	case store.DupUsername:
		return errors.UsernameTaken()
	case store.DupPhone:
		return errors.PhoneTaken()
	default:
		return errors.Database(err)
	}
}

func validateRegistration(in RegisterInput) error {
	email := strings.TrimSpace(in.Email)
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return errors.InvalidInput("email address is malformed")
	}
	if l := len(in.Username); l < 3 || l > 32 {
		return errors.InvalidInput("username must be 3-32 characters")
	}
	for _, r := range in.Username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return errors.InvalidInput("username contains invalid characters")
		}
	}
	return validatePassword(in.Password)
}

func validatePassword(pass string) error {
	if len(pass) < 8 {
		return errors.PasswordInvalid("must be at least 8 characters")
	}
	if len(pass) > 72 {
		return errors.PasswordInvalid("must be at most 72 characters")
	}
	return nil
}
