package federation

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/skillsenselab/identity/errors"
)

// DefaultStateTTL bounds how long an authorization redirect may stay
// pending before the callback is rejected.
const DefaultStateTTL = 10 * time.Minute

// States issues and verifies the CSRF state parameter carried through the
// OAuth redirect. States are stateless: a random nonce and expiry signed
// with an HMAC, so no server-side storage is needed and any replica can
// verify a state another replica issued.
type States struct {
	secret []byte
	ttl    time.Duration
}

// NewStates creates a state codec. A zero ttl selects the default.
func NewStates(secret string, ttl time.Duration) *States {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	return &States{secret: []byte(secret), ttl: ttl}
}

const stateNonceLen = 16

// Issue mints a fresh state value.
func (s *States) Issue() (string, error) {
	payload := make([]byte, stateNonceLen+8)
	if _, err := rand.Read(payload[:stateNonceLen]); err != nil {
		return "", errors.Internal(err)
	}
	expiry := time.Now().Add(s.ttl).Unix()
	binary.BigEndian.PutUint64(payload[stateNonceLen:], uint64(expiry))
	return base64.RawURLEncoding.EncodeToString(append(payload, s.sign(payload)...)), nil
}

// Verify checks a state value returned on the callback.
func (s *States) Verify(state string) error {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil || len(raw) != stateNonceLen+8+sha256.Size {
		return errors.InvalidState()
	}
	payload, sig := raw[:stateNonceLen+8], raw[stateNonceLen+8:]
	if !hmac.Equal(sig, s.sign(payload)) {
		return errors.InvalidState()
	}
	expiry := int64(binary.BigEndian.Uint64(payload[stateNonceLen:]))
	if time.Now().Unix() > expiry {
		return errors.InvalidState()
	}
	return nil
}

func (s *States) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
