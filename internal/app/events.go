package app

import "github.com/hylla/issuewire/internal/domain"

// EventType identifies the broadcastable outcome of a successful mutation.
type EventType string

// Outcome event types sent to every connected listener.
const (
	EventIssueAdded   EventType = "issue_added"
	EventIssueUpdated EventType = "issue_updated"
	EventCommentAdded EventType = "comment_added"
)

// EventMeta carries the audit commit message alongside an outcome.
type EventMeta struct {
	CommitMessage string `json:"commitMessage"`
}

// Event is the broadcast payload for one applied mutation. Issue is set for
// issue_added and issue_updated; IssueID and Comment are set for
// comment_added.
type Event struct {
	Type    EventType       `json:"type"`
	Issue   *domain.Issue   `json:"issue,omitempty"`
	IssueID int             `json:"id,omitempty"`
	Comment *domain.Comment `json:"comment,omitempty"`
	Meta    EventMeta       `json:"meta"`
}
