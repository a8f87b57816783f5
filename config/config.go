// Package config loads service configuration from a YAML file and the
// environment. Environment variables use the IDENTITY_ prefix with
// underscores, e.g. IDENTITY_TOKEN_SECRET overrides token.secret.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/federation"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/token"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Port)
	}
	if c.Mode != "debug" && c.Mode != "release" && c.Mode != "test" {
		return fmt.Errorf("server: mode must be debug, release, or test")
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the primary store settings.
type DatabaseConfig struct {
	// DSN is the SQLite data source name; ":memory:" for tests.
	DSN string `mapstructure:"dsn"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *DatabaseConfig) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "identity.db"
	}
}

// RedisConfig holds optional Redis session-store settings. When disabled,
// refresh sessions live in the primary store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Logger     logger.Config     `mapstructure:"logger"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Token      token.Config      `mapstructure:"token"`
	Account    account.Config    `mapstructure:"account"`
	Federation federation.Config `mapstructure:"federation"`
}

// ApplyDefaults fills in default values across all sections.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Logger.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Token.ApplyDefaults()
	c.Account.ApplyDefaults()
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Token.Validate(); err != nil {
		return err
	}
	if err := c.Account.Validate(); err != nil {
		return err
	}
	return c.Federation.Validate()
}

// Load reads configuration from the given file (optional), a .env file
// (optional), and the environment, then applies defaults and validates.
func Load(path string) (*Config, error) {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("IDENTITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKeys(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// No config file at all is acceptable: everything has a
			// default or comes from the environment.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindKeys registers every known key so AutomaticEnv can see variables
// that appear only in the environment.
func bindKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.mode",
		"server.read_timeout", "server.write_timeout", "server.shutdown_timeout",
		"logger.level", "logger.format", "logger.output", "logger.service",
		"database.dsn",
		"redis.enabled", "redis.addr", "redis.password", "redis.db",
		"token.secret", "token.method", "token.issuer",
		"token.access_ttl", "token.refresh_ttl", "token.leeway", "token.revoke_scope",
		"account.default_role", "account.admin_role", "account.require_verified_email",
		"account.verify_token_ttl", "account.reset_token_ttl",
		"federation.state_secret", "federation.state_ttl",
		"federation.google.client_id", "federation.google.client_secret", "federation.google.redirect_url",
		"federation.github.client_id", "federation.github.client_secret", "federation.github.redirect_url",
	} {
		_ = v.BindEnv(key)
	}
}
