package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
	"github.com/hylla/issuewire/internal/tui"
)

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// fakeWatchClient satisfies the watcher client surface without a server.
type fakeWatchClient struct {
	incoming chan tui.Incoming
}

func (f *fakeWatchClient) Snapshot(context.Context) (domain.Document, error) {
	return domain.NewDocument(), nil
}

func (f *fakeWatchClient) Incoming() <-chan tui.Incoming { return f.incoming }

func (f *fakeWatchClient) CreateIssue(context.Context, string, string) error { return nil }

func (f *fakeWatchClient) UpdateStatus(context.Context, int, domain.Status) error { return nil }

func (f *fakeWatchClient) AddComment(context.Context, int, string) error { return nil }

// stubFactories replaces the program and client factories for run() tests.
func stubFactories(t *testing.T) {
	t.Helper()
	origProgram := programFactory
	origClient := clientFactory
	t.Cleanup(func() {
		programFactory = origProgram
		clientFactory = origClient
	})
	programFactory = func(_ tea.Model) program {
		return fakeProgram{}
	}
	clientFactory = func(_ context.Context, _, _, _, _ string) (tui.Client, func() error, error) {
		return &fakeWatchClient{incoming: make(chan tui.Incoming)}, func() error { return nil }, nil
	}
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--version"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "wirewatch") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunStartsProgram verifies behavior for the covered scenario.
func TestRunStartsProgram(t *testing.T) {
	stubFactories(t)
	err := run(context.Background(), nil, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestRunRejectsExtraArguments verifies behavior for the covered scenario.
func TestRunRejectsExtraArguments(t *testing.T) {
	stubFactories(t)
	err := run(context.Background(), []string{"watch", "harder"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unexpected arguments") {
		t.Fatalf("expected argument error, got %v", err)
	}
}

// TestWebsocketURL verifies behavior for the covered scenario.
func TestWebsocketURL(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		ws      string
		want    string
		wantErr bool
	}{
		{name: "http", base: "http://127.0.0.1:8080", ws: "/ws", want: "ws://127.0.0.1:8080/ws"},
		{name: "https", base: "https://issues.example.com/", ws: "ws", want: "wss://issues.example.com/ws"},
		{name: "bare host", base: "issues.example.com", ws: "/ws", wantErr: true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := websocketURL(tt.base, tt.ws)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("websocketURL(%q) error = nil, want non-nil", tt.base)
				}
				return
			}
			if err != nil {
				t.Fatalf("websocketURL(%q) error = %v", tt.base, err)
			}
			if got != tt.want {
				t.Fatalf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}

// TestDecodeFrame verifies stream frame mapping for every frame type.
func TestDecodeFrame(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	issue := domain.Issue{ID: 1, Title: "Login fails", Status: domain.StatusOpen, CreatedBy: "alice", CreatedAt: now, Comments: []domain.Comment{}}
	addedRaw, err := json.Marshal(app.Event{
		Type:  app.EventIssueAdded,
		Issue: &issue,
		Meta:  app.EventMeta{CommitMessage: "Issue #1 created by alice: Login fails"},
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	item, ok := decodeFrame(addedRaw)
	if !ok || item.Event == nil {
		t.Fatalf("decodeFrame(added) = %#v ok=%t, want event", item, ok)
	}
	if item.Event.Type != app.EventIssueAdded || item.Event.Issue.ID != 1 {
		t.Fatalf("unexpected event %#v", item.Event)
	}
	if item.Event.Meta.CommitMessage != "Issue #1 created by alice: Login fails" {
		t.Fatalf("unexpected meta %#v", item.Event.Meta)
	}

	comment := domain.Comment{Text: "confirmed", By: "bob", At: now}
	commentRaw, err := json.Marshal(app.Event{
		Type:    app.EventCommentAdded,
		IssueID: 1,
		Comment: &comment,
		Meta:    app.EventMeta{CommitMessage: "Comment on Issue #1 by bob: confirmed"},
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	item, ok = decodeFrame(commentRaw)
	if !ok || item.Event == nil || item.Event.IssueID != 1 || item.Event.Comment.Text != "confirmed" {
		t.Fatalf("decodeFrame(comment) = %#v ok=%t", item, ok)
	}

	item, ok = decodeFrame([]byte(`{"type":"error","message":"Issue 9 not found"}`))
	if !ok || item.Notice != "Issue 9 not found" {
		t.Fatalf("decodeFrame(error) = %#v ok=%t", item, ok)
	}

	if _, ok := decodeFrame([]byte(`{"type":"hello","message":"connected"}`)); ok {
		t.Fatal("expected hello frame to be dropped")
	}
	if _, ok := decodeFrame([]byte(`not json`)); ok {
		t.Fatal("expected malformed frame to be dropped")
	}
}

// TestDefaultActorEnvOverride verifies behavior for the covered scenario.
func TestDefaultActorEnvOverride(t *testing.T) {
	t.Setenv("ISSUEWIRE_ACTOR", "watcher-7")
	if got := defaultActor(); got != "watcher-7" {
		t.Fatalf("defaultActor() = %q, want watcher-7", got)
	}
}
