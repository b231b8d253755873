// Package jsonfile persists the issue document as one JSON file on disk.
// Every save writes the full snapshot to a temp file and renames it into
// place, so a reader never observes a half-written document. The same file
// is what the git audit sink commits.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/issuewire/internal/domain"
)

// Store implements app.SnapshotStore on a single JSON document file.
type Store struct {
	path   string
	logger *charmLog.Logger
}

// New prepares a store for the given document path, creating parent
// directories as needed.
func New(path string, logger *charmLog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the document file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the last snapshot. A missing or unparsable file starts the
// tracker with an empty document instead of failing startup.
func (s *Store) Load(_ context.Context) (domain.Document, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read document, starting empty", "path", s.path, "err", err)
		}
		return domain.NewDocument(), nil
	}

	var doc domain.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		s.logger.Warn("decode document, starting empty", "path", s.path, "err", err)
		return domain.NewDocument(), nil
	}
	return normalize(doc), nil
}

// Save writes the full snapshot atomically via temp-file rename.
func (s *Store) Save(_ context.Context, doc domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".issues-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// normalize repairs snapshots edited outside the tracker: the issue list is
// never nil and the id counter never trails the highest issue id, otherwise
// a later create could reuse an id.
func normalize(doc domain.Document) domain.Document {
	if doc.Issues == nil {
		doc.Issues = []domain.Issue{}
	}
	for i := range doc.Issues {
		if doc.Issues[i].Comments == nil {
			doc.Issues[i].Comments = []domain.Comment{}
		}
		if doc.Issues[i].ID > doc.LastID {
			doc.LastID = doc.Issues[i].ID
		}
	}
	return doc
}
