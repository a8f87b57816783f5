// Package federation implements login via external OAuth identity
// providers and the linking of federated identities to local accounts.
package federation

import (
	"context"
	"fmt"
)

// Identity is the provider-agnostic result of a completed OAuth exchange.
// Subject is the provider's stable user identifier; it never changes even
// when the email does.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider abstracts one external identity provider.
type Provider interface {
	// Name is the stable provider key stored with linked identities.
	Name() string
	// AuthURL builds the authorization redirect for the given state.
	AuthURL(state string) string
	// Exchange redeems the authorization code and fetches the remote
	// profile.
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ProviderConfig holds the OAuth client settings for one provider. A
// provider with an empty ClientID is treated as not configured.
type ProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// enabled reports whether the provider has credentials configured.
func (c ProviderConfig) enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// validate checks that an enabled provider is fully configured.
func (c ProviderConfig) validate(name string) error {
	if c.ClientSecret == "" {
		return fmt.Errorf("federation: %s: client_secret is required", name)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("federation: %s: redirect_url is required", name)
	}
	return nil
}
