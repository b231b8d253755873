package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type StorageBackend string

const (
	BackendJSON   StorageBackend = "json"
	BackendSQLite StorageBackend = "sqlite"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Audit    AuditConfig    `toml:"audit"`
	Logging  LoggingConfig  `toml:"logging"`
	Identity IdentityConfig `toml:"identity"`
}

type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	PortRetries int    `toml:"port_retries"`
	APIEndpoint string `toml:"api_endpoint"`
	WSEndpoint  string `toml:"ws_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type StorageConfig struct {
	Backend StorageBackend `toml:"backend"`
	Path    string         `toml:"path"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	DevLogFile string `toml:"dev_log_file"`
}

type IdentityConfig struct {
	DefaultActor string `toml:"default_actor"`
}

func Default(documentPath string) Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			PortRetries: 10,
			APIEndpoint: "/api/v1",
			WSEndpoint:  "/ws",
			MCPEndpoint: "/mcp",
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
			Path:    documentPath,
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     filepath.Dir(documentPath),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Identity: IdentityConfig{
			DefaultActor: "anonymous",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage path is required")
	}

	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.PortRetries < 0 {
		return fmt.Errorf("server.port_retries must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Audit.Enabled && strings.TrimSpace(c.Audit.Dir) == "" {
		return errors.New("audit.dir is required when audit is enabled")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
