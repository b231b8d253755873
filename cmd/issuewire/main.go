// Command issuewire runs the collaborative issue tracker server: websocket
// sessions and MCP tools feed one mutation queue, snapshots land on disk, and
// every applied change is mirrored into a git audit trail.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/issuewire/internal/adapters/audit/gitaudit"
	serveradapter "github.com/hylla/issuewire/internal/adapters/server"
	"github.com/hylla/issuewire/internal/adapters/server/wsapi"
	"github.com/hylla/issuewire/internal/adapters/storage/jsonfile"
	"github.com/hylla/issuewire/internal/adapters/storage/sqlite"
	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/config"
	"github.com/hylla/issuewire/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// serveCommandRunner starts the composed transport flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("issuewire", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dataPath   string
		backend    string
		host       string
		port       int
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("ISSUEWIRE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("ISSUEWIRE_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "issuewire"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dataPath, "data", "", "path to the issue document (json file or sqlite database)")
	fs.StringVar(&backend, "backend", "", "storage backend override (json or sqlite)")
	fs.StringVar(&host, "host", "", "listen host override")
	fs.IntVar(&port, "port", 0, "listen port override")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "issuewire %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "document: %s\n", paths.DocumentPath)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "", "serve":
		// Continue.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("ISSUEWIRE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dataOverridden := strings.TrimSpace(dataPath) != ""
	if !dataOverridden {
		if envPath := strings.TrimSpace(os.Getenv("ISSUEWIRE_DATA_PATH")); envPath != "" {
			dataPath = envPath
			dataOverridden = true
		} else {
			dataPath = paths.DocumentPath
		}
	}

	defaultCfg := config.Default(dataPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dataOverridden {
		cfg.Storage.Path = dataPath
		cfg.Audit.Dir = filepath.Dir(dataPath)
	}
	if backend != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.TrimSpace(strings.ToLower(backend)))
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, closeLogger, err := newRuntimeLogger(stderr, appName, cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", appName, "dev_mode", devMode, "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir)

	var store app.SnapshotStore
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(cfg.Storage.Path, logger)
		if err != nil {
			logger.Error("sqlite open failed", "path", cfg.Storage.Path, "err", err)
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.Warn("sqlite close failed", "path", cfg.Storage.Path, "err", closeErr)
			}
		}()
		store = repo
	default:
		fileStore, err := jsonfile.New(cfg.Storage.Path, logger)
		if err != nil {
			logger.Error("json store open failed", "path", cfg.Storage.Path, "err", err)
			return fmt.Errorf("open json store: %w", err)
		}
		store = fileStore
	}

	var audit app.AuditSink
	if cfg.Audit.Enabled && cfg.Storage.Backend == config.BackendJSON {
		auditFile, relErr := filepath.Rel(cfg.Audit.Dir, cfg.Storage.Path)
		if relErr != nil || strings.HasPrefix(auditFile, "..") {
			auditFile = filepath.Base(cfg.Storage.Path)
		}
		sink, err := gitaudit.New(cfg.Audit.Dir, auditFile, logger)
		if err != nil {
			return fmt.Errorf("configure git audit sink: %w", err)
		}
		audit = sink
		logger.Info("git audit sink enabled", "dir", cfg.Audit.Dir, "file", auditFile)
	} else {
		logger.Info("git audit sink disabled", "enabled", cfg.Audit.Enabled, "backend", cfg.Storage.Backend)
	}

	hub := wsapi.NewHub(logger)
	tracker, err := app.NewTracker(store, audit, hub, time.Now, logger)
	if err != nil {
		logger.Error("tracker startup failed", "err", err)
		return fmt.Errorf("start tracker: %w", err)
	}

	trackerCtx, cancelTracker := context.WithCancel(context.Background())
	defer cancelTracker()
	go tracker.Run(trackerCtx)

	logger.Info("command flow start", "command", "serve")
	err = serveCommandRunner(ctx, serveradapter.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		PortRetries:   cfg.Server.PortRetries,
		APIEndpoint:   cfg.Server.APIEndpoint,
		WSEndpoint:    cfg.Server.WSEndpoint,
		MCPEndpoint:   cfg.Server.MCPEndpoint,
		ServerName:    appName,
		ServerVersion: version,
	}, serveradapter.Dependencies{
		Tracker: tracker,
		Hub:     hub,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	logger.Info("command flow complete", "command", "serve")
	return nil
}

// newRuntimeLogger configures the runtime log sink from CLI/config state.
// With a dev log file configured the sink tees into it using logfmt so the
// file stays parseable.
func newRuntimeLogger(stderr io.Writer, appName string, cfg config.LoggingConfig) (*charmLog.Logger, func() error, error) {
	levelValue := strings.TrimSpace(cfg.Level)
	if levelValue == "" {
		levelValue = "info"
	}
	level, err := charmLog.ParseLevel(levelValue)
	if err != nil {
		return nil, nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	writer := stderr
	formatter := charmLog.TextFormatter
	closeSink := func() error { return nil }
	if devLogPath := strings.TrimSpace(cfg.DevLogFile); devLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create dev log dir: %w", err)
		}
		logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open dev log file: %w", err)
		}
		writer = io.MultiWriter(stderr, logFile)
		formatter = charmLog.LogfmtFormatter
		closeSink = logFile.Close
	}

	logger := charmLog.NewWithOptions(writer, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
	return logger, closeSink, nil
}

// firstArg handles first arg.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
