// Package server composes the HTTP API, websocket, and MCP transports into
// one process listener with port-retry startup and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/hylla/issuewire/internal/adapters/server/httpapi"
	"github.com/hylla/issuewire/internal/adapters/server/mcpapi"
	"github.com/hylla/issuewire/internal/adapters/server/wsapi"
)

// defaultHost defines the localhost-first serve default.
const defaultHost = "127.0.0.1"

// defaultPort is the first port tried during startup.
const defaultPort = 8080

// defaultPortRetries bounds how many successive ports are tried after the
// configured one is unavailable.
const defaultPortRetries = 10

// defaultShutdownTimeout bounds graceful shutdown time once context cancellation starts.
const defaultShutdownTimeout = 5 * time.Second

// Config defines serve-mode endpoint configuration.
type Config struct {
	Host          string
	Port          int
	PortRetries   int
	APIEndpoint   string
	WSEndpoint    string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Tracker mcpapi.Service
	Hub     *wsapi.Hub
	Logger  *charmLog.Logger
}

// NewHandler composes one root router containing health, REST, websocket, and
// MCP endpoints.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	normalizedCfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Tracker == nil {
		return nil, Config{}, fmt.Errorf("tracker dependency is required")
	}
	if deps.Hub == nil {
		return nil, Config{}, fmt.Errorf("hub dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = charmLog.Default()
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    normalizedCfg.ServerName,
			ServerVersion: normalizedCfg.ServerVersion,
			EndpointPath:  normalizedCfg.MCPEndpoint,
		},
		deps.Tracker,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	apiHandler := httpapi.NewHandler(deps.Tracker)
	wsHandler := wsapi.NewHandler(deps.Hub, deps.Tracker, logger)

	router := mux.NewRouter()
	router.Use(requestLogging(logger))
	router.HandleFunc("/healthz", writeHealthStatus)
	router.HandleFunc("/readyz", writeHealthStatus)
	router.Handle(normalizedCfg.WSEndpoint, wsHandler)
	router.PathPrefix(normalizedCfg.MCPEndpoint).Handler(mcpHandler)
	router.PathPrefix(normalizedCfg.APIEndpoint).Handler(
		http.StripPrefix(normalizedCfg.APIEndpoint, apiHandler),
	)
	return router, normalizedCfg, nil
}

// Run starts the composed HTTP server and blocks until shutdown or startup failure.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, normalizedCfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = charmLog.Default()
	}

	listener, err := listen(normalizedCfg, logger)
	if err != nil {
		return err
	}
	logger.Info("listening", "addr", listener.Addr().String())

	httpServer := &http.Server{Handler: handler}
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		serveErr := <-serveErrCh
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
			return fmt.Errorf("shutdown server: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve after shutdown: %w", serveErr)
		}
		return nil
	}
}

// listen binds the configured port, walking successive higher ports when one
// is taken, and fails once the retry attempts run out.
func listen(cfg Config, logger *charmLog.Logger) (net.Listener, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.PortRetries; attempt++ {
		port := cfg.Port + attempt
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return listener, nil
		}
		lastErr = err
		logger.Warn("address unavailable, trying next port", "addr", addr, "error", err)
	}
	return nil, fmt.Errorf("bind ports %d-%d on %s: %w", cfg.Port, cfg.Port+cfg.PortRetries, cfg.Host, lastErr)
}

// requestLogging wraps every route with response metrics logging. httpsnoop
// preserves http.Hijacker so websocket upgrades pass through unchanged.
func requestLogging(logger *charmLog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Debug("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", m.Code,
				"duration", m.Duration,
			)
		})
	}
}

// normalizeConfig applies defaults and validates endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.PortRetries < 0 {
		return Config{}, fmt.Errorf("port retries must not be negative")
	}
	if cfg.PortRetries == 0 {
		cfg.PortRetries = defaultPortRetries
	}

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, "/api/v1")
	cfg.WSEndpoint = normalizeEndpoint(cfg.WSEndpoint, "/ws")
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, "/mcp")
	if cfg.APIEndpoint == cfg.MCPEndpoint || cfg.APIEndpoint == cfg.WSEndpoint || cfg.WSEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api, ws, and mcp endpoints must differ")
	}

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "issuewire"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// normalizeEndpoint normalizes one endpoint path and applies fallback defaults.
func normalizeEndpoint(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return fallback
	}
	return path
}

// writeHealthStatus responds with a deterministic readiness payload.
func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
