package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	serveradapter "github.com/hylla/issuewire/internal/adapters/server"
	"github.com/hylla/issuewire/internal/config"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("ISSUEWIRE_DEV_MODE", "false")
	os.Exit(m.Run())
}

// stubServeRunner replaces the serve flow and records the resolved config.
func stubServeRunner(t *testing.T) *serveradapter.Config {
	t.Helper()
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	captured := &serveradapter.Config{}
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		*captured = cfg
		if deps.Tracker == nil || deps.Hub == nil || deps.Logger == nil {
			t.Error("expected tracker, hub, and logger dependencies")
		}
		return nil
	}
	return captured
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--version"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "issuewire") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunServeWiresJSONBackend verifies behavior for the covered scenario.
func TestRunServeWiresJSONBackend(t *testing.T) {
	captured := stubServeRunner(t)

	tmp := t.TempDir()
	dataPath := filepath.Join(tmp, "issues.json")
	err := run(context.Background(), []string{"--data", dataPath, "--port", "9191", "serve"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if captured.Port != 9191 {
		t.Fatalf("expected port override 9191, got %d", captured.Port)
	}
	if captured.WSEndpoint != "/ws" || captured.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %+v", captured)
	}
}

// TestRunServeWiresSQLiteBackend verifies behavior for the covered scenario.
func TestRunServeWiresSQLiteBackend(t *testing.T) {
	stubServeRunner(t)

	tmp := t.TempDir()
	dataPath := filepath.Join(tmp, "issues.db")
	err := run(context.Background(), []string{"--data", dataPath, "--backend", "sqlite", "serve"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(serve sqlite) error = %v", err)
	}
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("expected sqlite database created, stat error %v", err)
	}
}

// TestRunConfigAndDataEnvOverrides verifies behavior for the covered scenario.
func TestRunConfigAndDataEnvOverrides(t *testing.T) {
	captured := stubServeRunner(t)

	tmp := t.TempDir()
	dataPath := filepath.Join(tmp, "env-issues.json")
	cfgPath := filepath.Join(tmp, "env.toml")
	cfgContent := "[server]\nport = 9393\n\n[storage]\npath = \"/tmp/ignore-me.json\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("ISSUEWIRE_CONFIG", cfgPath)
	t.Setenv("ISSUEWIRE_DATA_PATH", dataPath)

	err := run(context.Background(), []string{"serve"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(serve with env paths) error = %v", err)
	}
	if captured.Port != 9393 {
		t.Fatalf("expected config port 9393, got %d", captured.Port)
	}
}

// TestRunInvalidFlag verifies behavior for the covered scenario.
func TestRunInvalidFlag(t *testing.T) {
	err := run(context.Background(), []string{"--definitely-not-a-flag"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected flag parse error")
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"levitate"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "wirex", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "app: wirex") {
		t.Fatalf("expected app name in paths output, got %q", output)
	}
	if !strings.Contains(output, "dev_mode: true") {
		t.Fatalf("expected dev mode in paths output, got %q", output)
	}
	if !strings.Contains(output, "document:") {
		t.Fatalf("expected document path in paths output, got %q", output)
	}
}

// TestRunRejectsInvalidBackendOverride verifies behavior for the covered scenario.
func TestRunRejectsInvalidBackendOverride(t *testing.T) {
	stubServeRunner(t)

	dataPath := filepath.Join(t.TempDir(), "issues.json")
	err := run(context.Background(), []string{"--data", dataPath, "--backend", "parchment", "serve"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Fatalf("expected backend validation error, got %v", err)
	}
}

// TestParseBoolEnv verifies behavior for the covered scenario.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("ISSUEWIRE_BOOL_TEST", "true")
	got, ok := parseBoolEnv("ISSUEWIRE_BOOL_TEST")
	if !ok || !got {
		t.Fatalf("expected true bool env parse, got value=%t ok=%t", got, ok)
	}

	t.Setenv("ISSUEWIRE_BOOL_TEST", "not-bool")
	_, ok = parseBoolEnv("ISSUEWIRE_BOOL_TEST")
	if ok {
		t.Fatal("expected invalid bool env to return ok=false")
	}
}

// TestNewRuntimeLoggerWritesDevLogFile verifies behavior for the covered scenario.
func TestNewRuntimeLoggerWritesDevLogFile(t *testing.T) {
	devLogPath := filepath.Join(t.TempDir(), "logs", "issuewire.log")
	logger, closeSink, err := newRuntimeLogger(io.Discard, "issuewire", config.LoggingConfig{
		Level:      "debug",
		DevLogFile: devLogPath,
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("hello from test", "key", "value")
	if err := closeSink(); err != nil {
		t.Fatalf("closeSink() error = %v", err)
	}
	content, err := os.ReadFile(devLogPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected log line in dev file, got %q", string(content))
	}
}

// TestNewRuntimeLoggerRejectsUnknownLevel verifies behavior for the covered scenario.
func TestNewRuntimeLoggerRejectsUnknownLevel(t *testing.T) {
	_, _, err := newRuntimeLogger(io.Discard, "issuewire", config.LoggingConfig{Level: "shout"})
	if err == nil {
		t.Fatal("expected error for unknown logging level")
	}
}
