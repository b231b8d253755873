// Package sqlite persists the issue document as a single-row snapshot in a
// sqlite database. Each save replaces the whole serialized document in one
// statement, so readers always see a complete snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/issuewire/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// snapshotRowID pins the snapshot table to one row.
const snapshotRowID = 1

// Store implements app.SnapshotStore on a sqlite database.
type Store struct {
	db     *sql.DB
	logger *charmLog.Logger
}

// Open opens the requested database path and ensures the snapshot table.
func Open(path string, logger *charmLog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newStore(db, logger)
}

// OpenInMemory opens an in-memory database for tests.
func OpenInMemory(logger *charmLog.Logger) (*Store, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newStore(db, logger)
}

// newStore wraps a database handle and runs migration.
func newStore(db *sql.DB, logger *charmLog.Logger) (*Store, error) {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	store := &Store{db: db, logger: logger}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate handles migrate.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS document_snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		content TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Load reads the last snapshot row. A missing or unparsable row starts the
// tracker with an empty document instead of failing startup.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM document_snapshot WHERE id = ?`, snapshotRowID,
	).Scan(&content)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("read snapshot row, starting empty", "err", err)
		}
		return domain.NewDocument(), nil
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		s.logger.Warn("decode snapshot row, starting empty", "err", err)
		return domain.NewDocument(), nil
	}
	if doc.Issues == nil {
		doc.Issues = []domain.Issue{}
	}
	return doc, nil
}

// Save replaces the snapshot row with the full serialized document.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_snapshot (id, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		snapshotRowID, string(content), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write snapshot row: %w", err)
	}
	return nil
}
