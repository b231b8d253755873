package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/issues.json")
	if cfg.Storage.Path != "/tmp/issues.json" {
		t.Fatalf("unexpected storage path %q", cfg.Storage.Path)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Server.Port != 8080 || cfg.Server.PortRetries != 10 {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Dir != "/tmp" {
		t.Fatalf("unexpected audit defaults %+v", cfg.Audit)
	}
	if cfg.Identity.DefaultActor != "anonymous" {
		t.Fatalf("unexpected default actor %q", cfg.Identity.DefaultActor)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/issues.json")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != defaults.Storage.Path {
		t.Fatalf("expected default storage path, got %q", cfg.Storage.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 9090
port_retries = 3

[storage]
backend = "sqlite"
path = "/custom/issues.db"

[audit]
enabled = false

[identity]
default_actor = "ops"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/issues.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.Path != "/custom/issues.db" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Server.Port != 9090 || cfg.Server.PortRetries != 3 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Audit.Enabled {
		t.Fatal("expected audit disabled from config override")
	}
	if cfg.Identity.DefaultActor != "ops" {
		t.Fatalf("unexpected default actor %q", cfg.Identity.DefaultActor)
	}
	if cfg.Server.WSEndpoint != "/ws" {
		t.Fatalf("expected default ws endpoint to survive override, got %q", cfg.Server.WSEndpoint)
	}
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
backend = "parchment"
path = "/custom/issues.db"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path, Default("/tmp/issues.json")); err == nil {
		t.Fatal("expected error for invalid storage backend")
	}
}

func TestValidateRejectsBadPortAndLevel(t *testing.T) {
	cfg := Default("/tmp/issues.json")
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for port 0")
	}

	cfg = Default("/tmp/issues.json")
	cfg.Logging.Level = "shout"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown logging level")
	}

	cfg = Default("/tmp/issues.json")
	cfg.Audit.Dir = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled audit without dir")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
