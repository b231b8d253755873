// Package app owns mutation sequencing for the shared issue document. All
// writes funnel through one worker goroutine so no two mutations can
// interleave between validate, apply, persist, audit, and broadcast.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/issuewire/internal/domain"
)

// requestQueueDepth bounds how many accepted mutations may wait behind the
// one being applied.
const requestQueueDepth = 64

// commitCommentLimit truncates comment text inside audit messages.
const commitCommentLimit = 80

// Clock returns the current time.
type Clock func() time.Time

// CreateIssueInput holds input values for issue creation.
type CreateIssueInput struct {
	Title       string
	Description string
	By          string
}

// UpdateStatusInput holds input values for a status change.
type UpdateStatusInput struct {
	ID     int
	Status domain.Status
	By     string
}

// AddCommentInput holds input values for appending a comment.
type AddCommentInput struct {
	ID   int
	Text string
	By   string
}

// applyFunc applies one validated mutation to the working copy and returns
// the outcome event to broadcast on success.
type applyFunc func(doc *domain.Document, now time.Time) (Event, error)

// applyResult answers one queued request.
type applyResult struct {
	event Event
	err   error
}

// request is one mutation waiting in the serializer queue.
type request struct {
	actor string
	apply applyFunc
	reply chan applyResult
}

// Tracker is the single sequencing point for every document mutation. The
// worker goroutine started by Run owns the document exclusively; everything
// else only ever reads cloned snapshots.
type Tracker struct {
	store       SnapshotStore
	audit       AuditSink
	broadcaster Broadcaster
	clock       Clock
	logger      *charmLog.Logger

	requests chan request

	mu  sync.RWMutex
	doc domain.Document
}

// NewTracker restores the last snapshot from the store and prepares the
// mutation queue. Run must be started before Create/Update/Comment calls
// are answered.
func NewTracker(store SnapshotStore, audit AuditSink, broadcaster Broadcaster, clock Clock, logger *charmLog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	doc, err := store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return &Tracker{
		store:       store,
		audit:       audit,
		broadcaster: broadcaster,
		clock:       clock,
		logger:      logger,
		requests:    make(chan request, requestQueueDepth),
		doc:         doc,
	}, nil
}

// Run consumes queued mutations one at a time until the context ends.
// Requests still queued at shutdown are dropped unanswered.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.requests:
			req.reply <- t.process(ctx, req)
		}
	}
}

// Snapshot returns the latest fully applied document.
func (t *Tracker) Snapshot() domain.Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.Clone()
}

// CreateIssue appends a new open issue. It never rejects: empty titles fall
// back to the placeholder title.
func (t *Tracker) CreateIssue(ctx context.Context, in CreateIssueInput) (Event, error) {
	return t.enqueue(ctx, in.By, func(doc *domain.Document, now time.Time) (Event, error) {
		issue := doc.CreateIssue(in.Title, in.Description, in.By, now)
		return Event{
			Type:  EventIssueAdded,
			Issue: &issue,
			Meta: EventMeta{
				CommitMessage: fmt.Sprintf("Issue #%d created by %s: %s", issue.ID, in.By, issue.Title),
			},
		}, nil
	})
}

// UpdateStatus replaces one issue's status. Unknown ids reject with
// domain.ErrIssueNotFound and leave the document untouched.
func (t *Tracker) UpdateStatus(ctx context.Context, in UpdateStatusInput) (Event, error) {
	return t.enqueue(ctx, in.By, func(doc *domain.Document, now time.Time) (Event, error) {
		issue, previous, err := doc.UpdateStatus(in.ID, in.Status, now)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:  EventIssueUpdated,
			Issue: &issue,
			Meta: EventMeta{
				CommitMessage: fmt.Sprintf("Issue #%d status changed from %s to %s by %s", issue.ID, previous, issue.Status, in.By),
			},
		}, nil
	})
}

// AddComment appends one comment to an issue. Unknown ids reject with
// domain.ErrIssueNotFound.
func (t *Tracker) AddComment(ctx context.Context, in AddCommentInput) (Event, error) {
	return t.enqueue(ctx, in.By, func(doc *domain.Document, now time.Time) (Event, error) {
		issue, comment, err := doc.AddComment(in.ID, in.Text, in.By, now)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:    EventCommentAdded,
			IssueID: issue.ID,
			Comment: &comment,
			Meta: EventMeta{
				CommitMessage: fmt.Sprintf("Comment on Issue #%d by %s: %s", issue.ID, in.By, truncate(comment.Text, commitCommentLimit)),
			},
		}, nil
	})
}

// enqueue hands one mutation to the worker and waits for its answer. Once a
// request is accepted into the queue it is always answered; cancellation
// only applies while waiting for queue space.
func (t *Tracker) enqueue(ctx context.Context, actor string, apply applyFunc) (Event, error) {
	req := request{actor: actor, apply: apply, reply: make(chan applyResult, 1)}
	select {
	case t.requests <- req:
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
	res := <-req.reply
	return res.event, res.err
}

// process applies one mutation end to end: validate and apply to a working
// copy, persist the new snapshot, record the audit entry, then broadcast.
// The document only advances once the snapshot is durably written.
func (t *Tracker) process(ctx context.Context, req request) applyResult {
	now := t.clock()

	work := t.doc.Clone()
	event, err := req.apply(&work, now)
	if err != nil {
		return applyResult{err: err}
	}

	if err := t.store.Save(ctx, work); err != nil {
		t.logger.Error("persist snapshot", "err", err)
		return applyResult{err: fmt.Errorf("save document: %w", errors.Join(ErrPersistenceFailure, err))}
	}

	t.mu.Lock()
	t.doc = work
	t.mu.Unlock()

	if t.audit != nil {
		if err := t.audit.Record(ctx, work.Clone(), event.Meta.CommitMessage, req.actor); err != nil {
			// Audit failures never reverse the write or block the outcome.
			t.logger.Warn("record audit entry", "err", err)
		}
	}

	if t.broadcaster != nil {
		t.broadcaster.Publish(event)
	}
	return applyResult{event: event}
}

// truncate shortens text to limit runes.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
