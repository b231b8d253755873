// Package domain holds the tracker's pure data model: the document
// aggregate, its issues, and their comments. Nothing in this package
// performs I/O; mutation ordering is the app layer's concern.
package domain

import (
	"strings"
	"time"
)

// DefaultTitle replaces an empty title at issue creation.
const DefaultTitle = "Untitled"

// Document is the single root aggregate: the id counter plus every issue
// in insertion order. LastID is monotone and never falls below the highest
// issue id present.
type Document struct {
	LastID int     `json:"lastId"`
	Issues []Issue `json:"issues"`
}

// NewDocument returns an empty document ready for its first issue.
func NewDocument() Document {
	return Document{Issues: []Issue{}}
}

// Clone deep-copies the document so a snapshot handed to readers can never
// alias the copy the mutation worker keeps mutating.
func (d Document) Clone() Document {
	out := Document{LastID: d.LastID, Issues: make([]Issue, 0, len(d.Issues))}
	for _, issue := range d.Issues {
		out.Issues = append(out.Issues, issue.Clone())
	}
	return out
}

// CreateIssue allocates the next id, appends a new open issue, and advances
// LastID. It cannot fail: an empty title becomes DefaultTitle.
func (d *Document) CreateIssue(title, description, by string, now time.Time) Issue {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	id := d.LastID + 1
	issue := Issue{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      StatusOpen,
		CreatedBy:   by,
		CreatedAt:   now.UTC(),
		Comments:    []Comment{},
	}
	d.Issues = append(d.Issues, issue)
	d.LastID = id
	return issue.Clone()
}

// UpdateStatus replaces the status of one issue and stamps UpdatedAt.
// The previous status is returned for audit messages.
func (d *Document) UpdateStatus(id int, status Status, now time.Time) (Issue, Status, error) {
	idx := d.indexOf(id)
	if idx < 0 {
		return Issue{}, "", ErrIssueNotFound
	}
	issue := &d.Issues[idx]
	previous := issue.Status
	issue.Status = status
	ts := now.UTC()
	issue.UpdatedAt = &ts
	return issue.Clone(), previous, nil
}

// AddComment appends one comment to an issue and stamps UpdatedAt with the
// comment timestamp.
func (d *Document) AddComment(id int, text, by string, now time.Time) (Issue, Comment, error) {
	idx := d.indexOf(id)
	if idx < 0 {
		return Issue{}, Comment{}, ErrIssueNotFound
	}
	issue := &d.Issues[idx]
	comment := Comment{Text: text, By: by, At: now.UTC()}
	issue.Comments = append(issue.Comments, comment)
	ts := comment.At
	issue.UpdatedAt = &ts
	return issue.Clone(), comment, nil
}

// Issue looks up one issue by id.
func (d Document) Issue(id int) (Issue, bool) {
	idx := d.indexOf(id)
	if idx < 0 {
		return Issue{}, false
	}
	return d.Issues[idx].Clone(), true
}

// indexOf returns the position of an issue id, or -1.
func (d Document) indexOf(id int) int {
	for i := range d.Issues {
		if d.Issues[i].ID == id {
			return i
		}
	}
	return -1
}
