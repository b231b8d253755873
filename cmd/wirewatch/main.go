// Command wirewatch opens a live terminal view onto a running issuewire
// server: the issue list follows broadcast events and mutations are sent
// back over the same websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/issuewire/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// clientFactory stores a package-level helper value.
var clientFactory = func(ctx context.Context, httpBase, apiEndpoint, wsEndpoint, actor string) (tui.Client, func() error, error) {
	client, err := dialClient(ctx, httpBase, apiEndpoint, wsEndpoint, actor)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
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

	fs := flag.NewFlagSet("wirewatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		serverURL   string
		apiEndpoint string
		wsEndpoint  string
		actor       string
		showVer     bool
	)
	fs.StringVar(&serverURL, "url", "http://127.0.0.1:8080", "issuewire server base URL")
	fs.StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	fs.StringVar(&wsEndpoint, "ws-endpoint", "/ws", "websocket endpoint")
	fs.StringVar(&actor, "actor", defaultActor(), "actor label attached to submitted changes")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "wirewatch %s\n", version)
		return nil
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if envURL := strings.TrimSpace(os.Getenv("ISSUEWIRE_URL")); envURL != "" && serverURL == "http://127.0.0.1:8080" {
		serverURL = envURL
	}

	client, closeClient, err := clientFactory(ctx, serverURL, apiEndpoint, wsEndpoint, actor)
	if err != nil {
		return fmt.Errorf("connect to server: %w", err)
	}
	defer func() {
		if closeErr := closeClient(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close connection: %v\n", closeErr)
		}
	}()

	m := tui.NewModel(client)
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run watcher program: %w", err)
	}
	return nil
}

// defaultActor resolves the actor label from the environment.
func defaultActor() string {
	if v := strings.TrimSpace(os.Getenv("ISSUEWIRE_ACTOR")); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return "anonymous"
}
