// Package password implements the credential manager: one-way password
// hashing and verification, plus random action tokens for email
// verification and password reset flows.
package password

import (
	stderrors "errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillsenselab/identity/errors"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	// Hash returns a salted one-way hash of the password. The cost factor
	// is embedded in the output, so retuning the cost never invalidates
	// previously issued hashes.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the stored hash.
	// A mismatch is (false, nil); an error is returned only when the
	// stored hash itself is malformed.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// Option configures the bcrypt hasher.
type Option func(*BcryptHasher)

// WithCost sets the bcrypt cost parameter. Out-of-range values are ignored
// and the default kept.
func WithCost(cost int) Option {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// NewBcryptHasher creates a bcrypt-based password hasher. The default cost
// of 12 puts a single hash in the ~100ms range on commodity hardware.
func NewBcryptHasher(opts ...Option) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DefaultCost is the default bcrypt cost factor.
const DefaultCost = 12

// Hash returns a salted bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > 72 {
		// bcrypt silently truncates beyond 72 bytes
		return "", errors.PasswordInvalid("Password must be at most 72 characters.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.HashingFailed(err)
	}
	return string(hash), nil
}

// Verify compares the password against the stored hash in constant time.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, errors.InvalidHash(err)
	}
}
