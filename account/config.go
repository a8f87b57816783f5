package account

import (
	"fmt"
	"time"
)

// Config holds account-service settings.
type Config struct {
	// DefaultRole is assigned to every newly registered account. Empty
	// disables default role assignment.
	DefaultRole string `mapstructure:"default_role"`
	// AdminRole is the role name that grants administrative access.
	AdminRole string `mapstructure:"admin_role"`
	// RequireVerifiedEmail gates login on a verified address.
	RequireVerifiedEmail bool `mapstructure:"require_verified_email"`
	// VerifyTokenTTL is the lifetime of email-verification tokens.
	VerifyTokenTTL time.Duration `mapstructure:"verify_token_ttl"`
	// ResetTokenTTL is the lifetime of password-reset tokens.
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultRole == "" {
		c.DefaultRole = "user"
	}
	if c.AdminRole == "" {
		c.AdminRole = "admin"
	}
	if c.VerifyTokenTTL == 0 {
		c.VerifyTokenTTL = 24 * time.Hour
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = time.Hour
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.AdminRole == "" {
		return fmt.Errorf("account: admin_role is required")
	}
	if c.VerifyTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("account: token TTLs must be positive")
	}
	return nil
}
