package password

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/skillsenselab/identity/errors"
)

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, returned as a hex-encoded string. Used for email
// verification and password reset links.
func GenerateToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", errors.HashingFailed(err)
	}
	return hex.EncodeToString(b), nil
}

// HashSHA256 returns the SHA-256 hex digest of the input. Action tokens are
// stored as digests: the raw token is mailed once and never persisted.
func HashSHA256(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}
