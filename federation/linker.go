package federation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/store"
)

// LinkerStore is the slice of the store contract the linker consumes.
type LinkerStore interface {
	store.IdentityStore
	CreateUser(ctx context.Context, u *store.User) error
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// Linker resolves a federated identity to a local user, creating the link
// or the account on first contact. Resolution is idempotent: racing
// callbacks for the same identity converge on one user.
type Linker struct {
	store LinkerStore
	log   *logger.Logger
}

// NewLinker creates a Linker.
func NewLinker(s LinkerStore, log *logger.Logger) *Linker {
	return &Linker{store: s, log: log.WithComponent("federation-linker")}
}

// Resolve maps the identity to a local user. Order of precedence:
//
//  1. an existing (provider, subject) link wins;
//  2. an existing account with the same verified email gets the identity
//     linked to it;
//  3. otherwise a new passwordless account is created.
//
// An unverified provider email never links to an existing account, so a
// provider-side address claim cannot take over a local one. created
// reports whether a new account was made.
func (l *Linker) Resolve(ctx context.Context, identity *Identity) (user *store.User, created bool, err error) {
	existing, err := l.store.FindExternalIdentity(ctx, identity.Provider, identity.Subject)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		user, err := l.userByID(ctx, existing.UserID)
		return user, false, err
	}

	if identity.Email != "" && identity.EmailVerified {
		owner, err := l.store.FindUserByEmail(ctx, identity.Email)
		if err != nil {
			return nil, false, err
		}
		if owner != nil {
			if err := l.link(ctx, identity, owner.ID); err != nil {
				return nil, false, err
			}
			return l.checkBanned(owner)
		}
	}

	user, err = l.createUser(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if err := l.link(ctx, identity, user.ID); err != nil {
		return nil, false, err
	}
	l.log.Info("federated account created", logger.Fields(
		logger.FieldProvider, identity.Provider,
		logger.FieldUserID, user.ID.String(),
	))
	return user, true, nil
}

// link creates the (provider, subject) row. Losing the uniqueness race
// means another request linked first; the winner's link stands and this
// call is a no-op.
func (l *Linker) link(ctx context.Context, identity *Identity, userID uuid.UUID) error {
	err := l.store.CreateExternalIdentity(ctx, &store.ExternalIdentity{
		Provider: identity.Provider,
		Subject:  identity.Subject,
		UserID:   userID,
	})
	if err != nil {
		if _, ok := store.IsDuplicate(err); ok {
			return nil
		}
		return err
	}
	return nil
}

func (l *Linker) createUser(ctx context.Context, identity *Identity) (*store.User, error) {
	if identity.Email == "" {
		return nil, errors.InvalidInput("provider returned no email address")
	}
	user := &store.User{
		Email:    identity.Email,
		Username: usernameFromEmail(identity.Email),
		Verified: identity.EmailVerified,
	}
	for attempt := 0; ; attempt++ {
		err := l.store.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		field, ok := store.IsDuplicate(err)
		if !ok {
			return nil, err
		}
		switch field {
		case store.DupEmail:
			// Adopting the existing account is only safe when the provider
			// vouches for the address; otherwise this is a takeover attempt,
			// not a lost race.
			if !identity.EmailVerified {
				return nil, errors.EmailTaken()
			}
			winner, findErr := l.store.FindUserByEmail(ctx, identity.Email)
			if findErr != nil {
				return nil, findErr
			}
			if winner == nil {
				return nil, errors.Database(err)
			}
			return winner, nil
		case store.DupUsername:
			if attempt >= 3 {
				return nil, errors.Database(err)
			}
			user.Username = usernameFromEmail(identity.Email) + "-" + uuid.NewString()[:8]
		default:
			return nil, errors.Database(err)
		}
	}
}

func (l *Linker) userByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	user, err := l.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.UserNotFound(id.String())
	}
	user, _, err = l.checkBanned(user)
	return user, err
}

func (l *Linker) checkBanned(user *store.User) (*store.User, bool, error) {
	if user.Banned {
		return nil, false, errors.AccountBanned()
	}
	return user, false, nil
}

// usernameFromEmail derives a username from the address's local part,
// keeping only characters valid in usernames.
func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user-" + uuid.NewString()[:8]
	}
	return b.String()
}
