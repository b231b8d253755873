package app

import (
	"context"

	"github.com/hylla/issuewire/internal/domain"
)

// SnapshotStore persists and restores the full document. Save replaces the
// previous snapshot wholesale; a concurrent reader must never observe a
// partially written document. Load recovers the last snapshot, or an empty
// document when none is readable.
type SnapshotStore interface {
	Load(context.Context) (domain.Document, error)
	Save(context.Context, domain.Document) error
}

// AuditSink records a human-readable audit entry for a snapshot that has
// already been durably written. Callers log and discard the returned error:
// the audit trail is best-effort commentary, never a source of truth.
type AuditSink interface {
	Record(ctx context.Context, doc domain.Document, message, actor string) error
}

// Broadcaster fans one outcome event out to every connected listener.
// Delivery is best-effort per listener; a stalled listener never blocks
// the caller.
type Broadcaster interface {
	Publish(Event)
}
