package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/issuewire/internal/adapters/server/wsapi"
	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
)

// stubTracker provides a deterministic tracker surface for routing tests.
type stubTracker struct {
	snapshot domain.Document
}

// Snapshot returns one fixture document.
func (s *stubTracker) Snapshot() domain.Document {
	return s.snapshot.Clone()
}

// CreateIssue returns one empty fixture event.
func (s *stubTracker) CreateIssue(context.Context, app.CreateIssueInput) (app.Event, error) {
	return app.Event{Type: app.EventIssueAdded}, nil
}

// UpdateStatus returns one empty fixture event.
func (s *stubTracker) UpdateStatus(context.Context, app.UpdateStatusInput) (app.Event, error) {
	return app.Event{Type: app.EventIssueUpdated}, nil
}

// AddComment returns one empty fixture event.
func (s *stubTracker) AddComment(context.Context, app.AddCommentInput) (app.Event, error) {
	return app.Event{Type: app.EventCommentAdded}, nil
}

// testDependencies builds the dependency set used across handler tests.
func testDependencies() Dependencies {
	logger := charmLog.New(io.Discard)
	return Dependencies{
		Tracker: &stubTracker{snapshot: domain.NewDocument()},
		Hub:     wsapi.NewHub(logger),
		Logger:  logger,
	}
}

// TestNormalizeConfig verifies defaults and endpoint collision detection.
func TestNormalizeConfig(t *testing.T) {
	got, err := normalizeConfig(Config{})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	want := Config{
		Host:          "127.0.0.1",
		Port:          8080,
		PortRetries:   10,
		APIEndpoint:   "/api/v1",
		WSEndpoint:    "/ws",
		MCPEndpoint:   "/mcp",
		ServerName:    "issuewire",
		ServerVersion: "dev",
	}
	if got != want {
		t.Fatalf("normalizeConfig() = %#v, want %#v", got, want)
	}

	if _, err := normalizeConfig(Config{APIEndpoint: "/mcp"}); err == nil {
		t.Fatalf("normalizeConfig() error = nil for colliding endpoints, want non-nil")
	}
	if _, err := normalizeConfig(Config{PortRetries: -1}); err == nil {
		t.Fatalf("normalizeConfig() error = nil for negative retries, want non-nil")
	}
}

// TestNewHandlerRequiresDependencies verifies tracker and hub enforcement.
func TestNewHandlerRequiresDependencies(t *testing.T) {
	deps := testDependencies()

	missingTracker := deps
	missingTracker.Tracker = nil
	if _, _, err := NewHandler(Config{}, missingTracker); err == nil {
		t.Fatalf("NewHandler() error = nil without tracker, want non-nil")
	}

	missingHub := deps
	missingHub.Hub = nil
	if _, _, err := NewHandler(Config{}, missingHub); err == nil {
		t.Fatalf("NewHandler() error = nil without hub, want non-nil")
	}
}

// TestHandlerRoutesHealthAndSnapshot verifies the composed router endpoints.
func TestHandlerRoutesHealthAndSnapshot(t *testing.T) {
	handler, _, err := NewHandler(Config{}, testDependencies())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := server.Client().Get(server.URL + path)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
		if err := resp.Body.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	resp, err := server.Client().Get(server.URL + "/api/v1/document")
	if err != nil {
		t.Fatalf("Get(document) error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.LastID != 0 || len(doc.Issues) != 0 {
		t.Fatalf("document = %#v, want empty", doc)
	}
}

// TestListenRetriesOccupiedPort verifies startup walks to the next free port.
func TestListenRetriesOccupiedPort(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	listener, err := listen(Config{Host: "127.0.0.1", Port: port, PortRetries: 3}, charmLog.New(io.Discard))
	if err != nil {
		t.Fatalf("listen() error = %v", err)
	}
	defer listener.Close()

	boundPort := listener.Addr().(*net.TCPAddr).Port
	if boundPort == port {
		t.Fatalf("bound port = %d, want different from occupied %d", boundPort, port)
	}
	if boundPort < port || boundPort > port+3 {
		t.Fatalf("bound port = %d, want within retry window %d-%d", boundPort, port, port+3)
	}
}

// TestListenFailsWhenRetriesExhausted verifies startup gives up after the last attempt.
func TestListenFailsWhenRetriesExhausted(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	if _, err := listen(Config{Host: "127.0.0.1", Port: port, PortRetries: 0}, charmLog.New(io.Discard)); err == nil {
		t.Fatalf("listen() error = nil with exhausted retries, want non-nil")
	}
}

// TestRunShutsDownOnContextCancel verifies graceful shutdown returns nil.
func TestRunShutsDownOnContextCancel(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := probe.Addr().(*net.TCPAddr).Port
	if err := probe.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- Run(ctx, Config{Host: "127.0.0.1", Port: port, PortRetries: 5}, testDependencies())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, dialErr := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 100*time.Millisecond)
		if dialErr == nil {
			_ = conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-runErrCh:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run() did not return after cancellation")
	}
}
