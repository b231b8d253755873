// Package tui renders a live terminal view of the shared issue document,
// following broadcast events as other sessions mutate it.
package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
)

// submitTimeout bounds one mutation round trip to the server.
const submitTimeout = 5 * time.Second

// Client is the server surface the watcher renders and mutates through.
type Client interface {
	Snapshot(context.Context) (domain.Document, error)
	Incoming() <-chan Incoming
	CreateIssue(ctx context.Context, title, description string) error
	UpdateStatus(ctx context.Context, id int, status domain.Status) error
	AddComment(ctx context.Context, id int, text string) error
}

// Incoming is one frame from the live stream: a broadcast event or a server
// notice addressed to this session.
type Incoming struct {
	Event  *app.Event
	Notice string
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeIssueInfo
	modeAddTitle
	modeAddDescription
	modeComment
)

// loadedMsg carries one snapshot fetch result.
type loadedMsg struct {
	doc domain.Document
	err error
}

// incomingMsg carries one stream frame; ok is false once the stream closes.
type incomingMsg struct {
	item Incoming
	ok   bool
}

// submitResultMsg carries one mutation submission result.
type submitResultMsg struct {
	action string
	err    error
}

// Model represents model data used by this package.
type Model struct {
	client Client

	keys     keyMap
	help     help.Model
	markdown markdownRenderer

	doc         domain.Document
	selected    int
	mode        inputMode
	infoIssueID int

	titleInput   textinput.Model
	descInput    textinput.Model
	commentInput textinput.Model
	pendingTitle string

	status string
	ready  bool
	width  int
	height int
	err    error
}

// NewModel constructs a new value for this package.
func NewModel(client Client) Model {
	h := help.New()
	h.ShowAll = false
	titleInput := textinput.New()
	titleInput.Prompt = "title: "
	titleInput.Placeholder = "what is wrong?"
	titleInput.CharLimit = 200
	descInput := textinput.New()
	descInput.Prompt = "description: "
	descInput.Placeholder = "optional details (markdown)"
	descInput.CharLimit = 2000
	commentInput := textinput.New()
	commentInput.Prompt = "comment: "
	commentInput.Placeholder = "what did you find?"
	commentInput.CharLimit = 2000
	return Model{
		client:       client,
		keys:         newKeyMap(),
		help:         h,
		doc:          domain.NewDocument(),
		status:       "loading...",
		titleInput:   titleInput,
		descInput:    descInput,
		commentInput: commentInput,
	}
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot, m.waitForIncoming)
}

// loadSnapshot fetches the full document from the server.
func (m Model) loadSnapshot() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	doc, err := m.client.Snapshot(ctx)
	return loadedMsg{doc: doc, err: err}
}

// waitForIncoming blocks on the next stream frame.
func (m Model) waitForIncoming() tea.Msg {
	item, ok := <-m.client.Incoming()
	return incomingMsg{item: item, ok: ok}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.doc = msg.doc
		m.clampSelection()
		m.status = fmt.Sprintf("ready (%d issues)", len(m.doc.Issues))
		return m, nil

	case incomingMsg:
		if !msg.ok {
			m.status = "stream closed, press r to reload or q to quit"
			return m, nil
		}
		if msg.item.Notice != "" {
			m.status = msg.item.Notice
			return m, m.waitForIncoming
		}
		if msg.item.Event != nil {
			m.applyEvent(*msg.item.Event)
		}
		return m, m.waitForIncoming

	case submitResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// applyEvent folds one broadcast event into the local document copy.
func (m *Model) applyEvent(event app.Event) {
	switch event.Type {
	case app.EventIssueAdded:
		if event.Issue == nil {
			return
		}
		m.doc.Issues = append(m.doc.Issues, event.Issue.Clone())
		if event.Issue.ID > m.doc.LastID {
			m.doc.LastID = event.Issue.ID
		}
	case app.EventIssueUpdated:
		if event.Issue == nil {
			return
		}
		for idx := range m.doc.Issues {
			if m.doc.Issues[idx].ID == event.Issue.ID {
				m.doc.Issues[idx] = event.Issue.Clone()
				break
			}
		}
	case app.EventCommentAdded:
		if event.Comment == nil {
			return
		}
		for idx := range m.doc.Issues {
			if m.doc.Issues[idx].ID == event.IssueID {
				m.doc.Issues[idx].Comments = append(m.doc.Issues[idx].Comments, *event.Comment)
				break
			}
		}
	}
	if event.Meta.CommitMessage != "" {
		m.status = event.Meta.CommitMessage
	}
	m.clampSelection()
}

// handleNormalModeKey handles normal mode key.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadSnapshot
	case key.Matches(msg, m.keys.moveDown):
		if m.selected < len(m.doc.Issues)-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keys.addIssue):
		m.mode = modeAddTitle
		m.pendingTitle = ""
		m.titleInput.Reset()
		m.descInput.Reset()
		return m, m.titleInput.Focus()
	case key.Matches(msg, m.keys.issueInfo):
		issue, ok := m.selectedIssue()
		if !ok {
			m.status = "no issue selected"
			return m, nil
		}
		m.mode = modeIssueInfo
		m.infoIssueID = issue.ID
		return m, nil
	case key.Matches(msg, m.keys.comment):
		if _, ok := m.selectedIssue(); !ok {
			m.status = "no issue selected"
			return m, nil
		}
		m.mode = modeComment
		m.commentInput.Reset()
		return m, m.commentInput.Focus()
	case key.Matches(msg, m.keys.cycle):
		issue, ok := m.selectedIssue()
		if !ok {
			m.status = "no issue selected"
			return m, nil
		}
		next := nextStatus(issue.Status)
		m.status = fmt.Sprintf("setting issue #%d to %s...", issue.ID, next)
		return m, m.submitStatus(issue.ID, next)
	default:
		return m, nil
	}
}

// handleInputModeKey handles input mode key.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeIssueInfo {
		switch {
		case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.issueInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.infoIssueID = 0
			return m, nil
		case key.Matches(msg, m.keys.comment):
			m.mode = modeComment
			m.commentInput.Reset()
			return m, m.commentInput.Focus()
		case key.Matches(msg, m.keys.cycle):
			if issue, ok := m.doc.Issue(m.infoIssueID); ok {
				next := nextStatus(issue.Status)
				m.status = fmt.Sprintf("setting issue #%d to %s...", issue.ID, next)
				return m, m.submitStatus(issue.ID, next)
			}
			return m, nil
		default:
			return m, nil
		}
	}

	if key.Matches(msg, m.keys.back) {
		if m.mode == modeComment && m.infoIssueID != 0 {
			m.mode = modeIssueInfo
			return m, nil
		}
		m.mode = modeNone
		m.pendingTitle = ""
		m.status = "ready"
		return m, nil
	}

	if msg.String() == "enter" {
		switch m.mode {
		case modeAddTitle:
			m.pendingTitle = strings.TrimSpace(m.titleInput.Value())
			m.mode = modeAddDescription
			return m, m.descInput.Focus()
		case modeAddDescription:
			title := m.pendingTitle
			description := strings.TrimSpace(m.descInput.Value())
			m.mode = modeNone
			m.pendingTitle = ""
			m.status = "adding issue..."
			return m, m.submitCreate(title, description)
		case modeComment:
			text := strings.TrimSpace(m.commentInput.Value())
			if text == "" {
				m.status = "empty comment discarded"
				if m.infoIssueID != 0 {
					m.mode = modeIssueInfo
				} else {
					m.mode = modeNone
				}
				return m, nil
			}
			issueID := m.targetIssueID()
			if m.infoIssueID != 0 {
				m.mode = modeIssueInfo
			} else {
				m.mode = modeNone
			}
			m.status = fmt.Sprintf("commenting on issue #%d...", issueID)
			return m, m.submitComment(issueID, text)
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeAddTitle:
		m.titleInput, cmd = m.titleInput.Update(msg)
	case modeAddDescription:
		m.descInput, cmd = m.descInput.Update(msg)
	case modeComment:
		m.commentInput, cmd = m.commentInput.Update(msg)
	}
	return m, cmd
}

// targetIssueID picks the issue a comment applies to: the open info view wins
// over the list selection.
func (m Model) targetIssueID() int {
	if m.infoIssueID != 0 {
		return m.infoIssueID
	}
	if issue, ok := m.selectedIssue(); ok {
		return issue.ID
	}
	return 0
}

// submitCreate sends one issue creation to the server.
func (m Model) submitCreate(title, description string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitResultMsg{action: "add issue", err: client.CreateIssue(ctx, title, description)}
	}
}

// submitStatus sends one status change to the server.
func (m Model) submitStatus(id int, status domain.Status) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitResultMsg{action: "update status", err: client.UpdateStatus(ctx, id, status)}
	}
}

// submitComment sends one comment to the server.
func (m Model) submitComment(id int, text string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitResultMsg{action: "add comment", err: client.AddComment(ctx, id, text)}
	}
}

// selectedIssue returns the issue under the cursor.
func (m Model) selectedIssue() (domain.Issue, bool) {
	if m.selected < 0 || m.selected >= len(m.doc.Issues) {
		return domain.Issue{}, false
	}
	return m.doc.Issues[m.selected], true
}

// clampSelection keeps the cursor inside the issue list.
func (m *Model) clampSelection() {
	if m.selected >= len(m.doc.Issues) {
		m.selected = len(m.doc.Issues) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// nextStatus cycles through the well-known statuses. Anything else restarts
// the cycle at Open.
func nextStatus(status domain.Status) domain.Status {
	switch status {
	case domain.StatusOpen:
		return domain.StatusInProgress
	case domain.StatusInProgress:
		return domain.StatusClosed
	default:
		return domain.StatusOpen
	}
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.AltScreen = true
		return v
	}
	if !m.ready {
		v := tea.NewView("loading...")
		v.AltScreen = true
		return v
	}

	var content string
	if m.mode == modeIssueInfo {
		content = m.renderIssueInfo()
	} else {
		content = m.renderList()
	}

	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

// renderList renders the issue list with the live status line.
func (m Model) renderList() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("issuewire"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d issues", len(m.doc.Issues))))
	b.WriteString("\n\n")

	if len(m.doc.Issues) == 0 {
		b.WriteString(dimStyle.Render("No issues yet. Press n to add the first one."))
		b.WriteString("\n")
	}
	for idx, issue := range m.doc.Issues {
		prefix := "  "
		line := fmt.Sprintf("#%d %s %s", issue.ID, issue.Title, renderStatusBadge(issue.Status))
		if len(issue.Comments) > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (%d comments)", len(issue.Comments)))
		}
		if idx == m.selected {
			prefix = cursorStyle.Render("> ")
			line = cursorStyle.Render(fmt.Sprintf("#%d %s", issue.ID, issue.Title)) + " " + renderStatusBadge(issue.Status)
			if len(issue.Comments) > 0 {
				line += dimStyle.Render(fmt.Sprintf(" (%d comments)", len(issue.Comments)))
			}
		}
		b.WriteString(prefix + line + "\n")
	}

	b.WriteString("\n")
	switch m.mode {
	case modeAddTitle:
		b.WriteString(m.titleInput.View() + "\n")
	case modeAddDescription:
		b.WriteString(m.descInput.View() + "\n")
	case modeComment:
		b.WriteString(m.commentInput.View() + "\n")
	}
	b.WriteString(dimStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderIssueInfo renders the detail view for the opened issue.
func (m Model) renderIssueInfo() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	issue, ok := m.doc.Issue(m.infoIssueID)
	if !ok {
		return dimStyle.Render("issue no longer exists, press esc to go back") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", issue.ID, issue.Title)))
	b.WriteString("  " + renderStatusBadge(issue.Status) + "\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("created by %s at %s", issue.CreatedBy, issue.CreatedAt.Format(time.RFC3339))))
	b.WriteString("\n")
	if issue.UpdatedAt != nil {
		b.WriteString(labelStyle.Render("updated at " + issue.UpdatedAt.Format(time.RFC3339)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	width := m.width
	if width <= 0 {
		width = 80
	}
	if rendered := m.markdown.render(issue.Description, width-4); rendered != "" {
		b.WriteString(rendered + "\n\n")
	}

	if len(issue.Comments) == 0 {
		b.WriteString(dimStyle.Render("no comments yet") + "\n")
	}
	for _, comment := range issue.Comments {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%s at %s", comment.By, comment.At.Format(time.RFC3339))))
		b.WriteString("\n  " + comment.Text + "\n")
	}

	b.WriteString("\n")
	if m.mode == modeComment {
		b.WriteString(m.commentInput.View() + "\n")
	}
	b.WriteString(dimStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("esc back • c comment • s cycle status"))
	return b.String()
}

// renderStatusBadge renders one colored status label.
func renderStatusBadge(status domain.Status) string {
	var statusColor color.Color
	switch status {
	case domain.StatusOpen:
		statusColor = lipgloss.Color("42")
	case domain.StatusInProgress:
		statusColor = lipgloss.Color("214")
	case domain.StatusClosed:
		statusColor = lipgloss.Color("241")
	default:
		statusColor = lipgloss.Color("135")
	}
	return lipgloss.NewStyle().Foreground(statusColor).Render("[" + string(status) + "]")
}
