package domain

import "time"

// Status classifies where an issue sits in its lifecycle.
//
// The constants below are the statuses the UI offers. The field itself is
// permissive: a status update stores whatever label the client supplied,
// with no transition graph between values.
type Status string

// Known status values.
const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
)

// Comment stores one attributed note on an issue. Comments are append-only
// and immutable once recorded.
type Comment struct {
	Text string    `json:"text"`
	By   string    `json:"by"`
	At   time.Time `json:"at"`
}

// Issue represents one tracked issue. Title, description, creator, and id
// never change after creation; status and the comment list are the only
// mutable parts.
type Issue struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Comments    []Comment  `json:"comments"`
}

// Clone deep-copies the issue so callers can hold it without aliasing the
// document's comment slice.
func (i Issue) Clone() Issue {
	out := i
	out.Comments = append([]Comment(nil), i.Comments...)
	if i.UpdatedAt != nil {
		ts := *i.UpdatedAt
		out.UpdatedAt = &ts
	}
	return out
}
