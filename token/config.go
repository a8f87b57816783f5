package token

import (
	"fmt"
	"time"
)

// Revocation scopes applied when token reuse is detected.
const (
	// RevokeScopeChain revokes only the rotation chain the reused token
	// belongs to.
	RevokeScopeChain = "chain"
	// RevokeScopeAll revokes every session of the affected user.
	RevokeScopeAll = "all"
)

// Config holds token-service settings.
type Config struct {
	// Secret is the HMAC signing key. Required.
	Secret string `mapstructure:"secret"`
	// Method is the JWT signing method name.
	Method string `mapstructure:"method"`
	// Issuer is stamped into and required from every token.
	Issuer string `mapstructure:"issuer"`
	// AccessTTL bounds how long a stolen access token stays usable.
	AccessTTL time.Duration `mapstructure:"access_ttl"`
	// RefreshTTL is the sliding lifetime of a rotation chain.
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	// Leeway absorbs clock skew during expiry validation.
	Leeway time.Duration `mapstructure:"leeway"`
	// RevokeScope selects the blast radius on reuse detection:
	// "chain" or "all".
	RevokeScope string `mapstructure:"revoke_scope"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = "HS256"
	}
	if c.Issuer == "" {
		c.Issuer = "identity"
	}
	if c.AccessTTL == 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Leeway == 0 {
		c.Leeway = 5 * time.Second
	}
	if c.RevokeScope == "" {
		c.RevokeScope = RevokeScopeChain
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("token: secret is required")
	}
	if len(c.Secret) < 32 {
		return fmt.Errorf("token: secret must be at least 32 bytes")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token: TTLs must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("token: access TTL must be shorter than refresh TTL")
	}
	if c.RevokeScope != RevokeScopeChain && c.RevokeScope != RevokeScopeAll {
		return fmt.Errorf("token: revoke_scope must be %q or %q", RevokeScopeChain, RevokeScopeAll)
	}
	return nil
}
