package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file must fall back to defaults: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("default addr: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("default driver: %q", cfg.Storage.Driver)
	}
	if cfg.JWT.Issuer != "ssohub" {
		t.Fatalf("default issuer: %q", cfg.JWT.Issuer)
	}
	if cfg.LoginWindow() != time.Minute {
		t.Fatalf("default login window: %v", cfg.LoginWindow())
	}
}

func TestLoadFileWithExpansion(t *testing.T) {
	t.Setenv("TEST_DSN", "postgres://u:p@localhost/sso")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9090"
storage:
  driver: postgres
  dsn: ${TEST_DSN}
rate:
  enabled: true
  login:
    limit: 5
    window: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr: %q", cfg.Server.Addr)
	}
	if cfg.Storage.DSN != "postgres://u:p@localhost/sso" {
		t.Fatalf("dsn not expanded: %q", cfg.Storage.DSN)
	}
	if !cfg.Rate.Enabled || cfg.Rate.Login.Limit != 5 || cfg.LoginWindow() != 30*time.Second {
		t.Fatalf("rate block: %+v", cfg.Rate)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("SSOHUB_ADDR", ":7777")
	t.Setenv("SSOHUB_STORAGE_DRIVER", "memory")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Fatalf("env must override file: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("driver override: %q", cfg.Storage.Driver)
	}
}
