// Package gitaudit records each persisted snapshot as a git commit, giving
// a human-readable trail of who changed what and when. The sink is strictly
// best-effort: running outside a git work tree is a normal, silently
// skipped condition, and commit failures are reported to the caller to log
// and discard.
package gitaudit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/issuewire/internal/domain"
)

// runner executes one git invocation inside a directory. Injectable for
// tests.
type runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Sink implements app.AuditSink by committing the document file.
type Sink struct {
	dir    string
	file   string
	logger *charmLog.Logger
	run    runner
}

// New builds a sink that commits file inside the work tree rooted at dir.
func New(dir, file string, logger *charmLog.Logger) (*Sink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("audit dir is required")
	}
	if strings.TrimSpace(file) == "" {
		return nil, errors.New("audit file is required")
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Sink{dir: dir, file: file, logger: logger, run: gitRun}, nil
}

// Record stages and commits the already-written document file. The snapshot
// argument is unused here: the durable bytes are on disk before Record runs.
func (s *Sink) Record(ctx context.Context, _ domain.Document, message, actor string) error {
	if !s.insideWorkTree(ctx) {
		s.logger.Debug("not a git work tree, skipping audit commit", "dir", s.dir)
		return nil
	}

	if out, err := s.run(ctx, s.dir, "add", "--", s.file); err != nil {
		return fmt.Errorf("git add: %v: %s", err, strings.TrimSpace(string(out)))
	}

	out, err := s.run(ctx, s.dir,
		"-c", "user.name=issuewire",
		"-c", "user.email=issuewire@localhost",
		"commit",
		"-m", message,
		"--author", authorFor(actor),
		"--", s.file,
	)
	if err != nil {
		// Replaying an identical snapshot leaves nothing staged; that is
		// not an audit failure.
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// insideWorkTree reports whether the sink directory is part of a git work
// tree.
func (s *Sink) insideWorkTree(ctx context.Context) bool {
	out, err := s.run(ctx, s.dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// authorFor attributes the commit to the client-supplied actor label.
func authorFor(actor string) string {
	actor = strings.TrimSpace(actor)
	actor = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == '\n' {
			return -1
		}
		return r
	}, actor)
	if actor == "" {
		actor = "anonymous"
	}
	slug := strings.ToLower(strings.ReplaceAll(actor, " ", "-"))
	return fmt.Sprintf("%s <%s@issuewire.local>", actor, slug)
}

// gitRun shells out to git inside dir.
func gitRun(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
