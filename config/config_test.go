package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: test
token:
  secret: "`+testSecret+`"
  access_ttl: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
	if cfg.Token.AccessTTL != 5*time.Minute {
		t.Errorf("access ttl = %v, want 5m", cfg.Token.AccessTTL)
	}
	// Untouched sections pick up defaults.
	if cfg.Token.RevokeScope != "chain" {
		t.Errorf("revoke scope = %s, want chain", cfg.Token.RevokeScope)
	}
	if cfg.Account.DefaultRole != "user" || cfg.Account.AdminRole != "admin" {
		t.Errorf("account defaults = %+v", cfg.Account)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("logger level = %s, want info", cfg.Logger.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  mode: test
token:
  secret: "`+testSecret+`"
`)
	t.Setenv("IDENTITY_SERVER_PORT", "7070")
	t.Setenv("IDENTITY_TOKEN_REVOKE_SCOPE", "all")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Token.RevokeScope != "all" {
		t.Errorf("revoke scope = %s, want all", cfg.Token.RevokeScope)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing token secret", "server:\n  mode: test\n"},
		{"bad mode", "server:\n  mode: turbo\ntoken:\n  secret: \"" + testSecret + "\"\n"},
		{"bad revoke scope", "server:\n  mode: test\ntoken:\n  secret: \"" + testSecret + "\"\n  revoke_scope: user\n"},
		{"federated without state secret", `
server:
  mode: test
token:
  secret: "` + testSecret + `"
federation:
  google:
    client_id: cid
    client_secret: cs
    redirect_url: http://localhost/cb
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("explicit path must exist")
	}
}
