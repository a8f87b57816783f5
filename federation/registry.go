package federation

import (
	"sort"
	"time"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
)

// Config holds federation settings for all supported providers.
type Config struct {
	Google ProviderConfig `mapstructure:"google"`
	GitHub ProviderConfig `mapstructure:"github"`
	// StateSecret signs the CSRF state parameter. Required when any
	// provider is enabled.
	StateSecret string `mapstructure:"state_secret"`
	// StateTTL bounds how long an authorization redirect stays valid.
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

// Validate checks the configuration of every enabled provider.
func (c *Config) Validate() error {
	if c.Google.enabled() {
		if err := c.Google.validate("google"); err != nil {
			return err
		}
	}
	if c.GitHub.enabled() {
		if err := c.GitHub.validate("github"); err != nil {
			return err
		}
	}
	if (c.Google.enabled() || c.GitHub.enabled()) && c.StateSecret == "" {
		return errors.Config("federation: state_secret is required when a provider is enabled")
	}
	return nil
}

// Registry holds the configured providers, keyed by name. It is built once
// at startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
	states    *States
}

// NewRegistry builds a registry from configuration. Providers without
// credentials are skipped, so a deployment enables exactly the providers
// it has registered OAuth apps for.
func NewRegistry(cfg Config, log *logger.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		providers: make(map[string]Provider),
		states:    NewStates(cfg.StateSecret, cfg.StateTTL),
	}
	if cfg.Google.enabled() {
		r.register(NewGoogle(cfg.Google))
	}
	if cfg.GitHub.enabled() {
		r.register(NewGitHub(cfg.GitHub))
	}
	log.WithComponent("federation").Info("providers configured", logger.Fields("providers", r.Names()))
	return r, nil
}

func (r *Registry) register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.ProviderUnknown(name)
	}
	return p, nil
}

// Names returns the enabled provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// States returns the CSRF state codec shared by all providers.
func (r *Registry) States() *States {
	return r.states
}
