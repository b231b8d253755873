package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
)

// sendQueueDepth bounds the per-session write queue; a listener that falls
// further behind starts losing events rather than blocking the hub.
const sendQueueDepth = 16

// inboundEnvelope frames one client request.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// addPayload carries an issue-creation request.
type addPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	By          string `json:"by"`
}

// updatePayload carries a status-change request.
type updatePayload struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	By     string `json:"by"`
}

// commentPayload carries a comment-append request.
type commentPayload struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	By   string `json:"by"`
}

// serverMessage is the shape of hello and error frames sent to one client.
type serverMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// session is one open connection: a read loop decoding requests plus a
// write pump draining the send queue.
type session struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	mutator Mutator
	logger  *charmLog.Logger
}

// newSession wraps an upgraded connection.
func newSession(conn *websocket.Conn, mutator Mutator, logger *charmLog.Logger) *session {
	return &session{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendQueueDepth),
		done:    make(chan struct{}),
		mutator: mutator,
		logger:  logger,
	}
}

// writePump drains the send queue onto the connection until the session
// ends or a write fails.
func (s *session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("session write failed", "session", s.id, "err", err)
				return
			}
		}
	}
}

// readPump decodes inbound frames until the connection closes.
func (s *session) readPump(ctx context.Context) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("session closed", "session", s.id, "err", err)
			return
		}
		s.handle(ctx, raw)
	}
}

// handle routes one inbound frame. Every failure here is scoped to this
// session: rejections and malformed requests answer the originator only.
func (s *session) handle(ctx context.Context, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError("invalid json")
		return
	}

	switch env.Type {
	case "add":
		var p addPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError("invalid json")
			return
		}
		_, err := s.mutator.CreateIssue(ctx, app.CreateIssueInput{
			Title:       p.Title,
			Description: p.Description,
			By:          p.By,
		})
		s.answerMutation(err, 0)
	case "update":
		var p updatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError("invalid json")
			return
		}
		_, err := s.mutator.UpdateStatus(ctx, app.UpdateStatusInput{
			ID:     p.ID,
			Status: domain.Status(p.Status),
			By:     p.By,
		})
		s.answerMutation(err, p.ID)
	case "comment":
		var p commentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError("invalid json")
			return
		}
		_, err := s.mutator.AddComment(ctx, app.AddCommentInput{
			ID:   p.ID,
			Text: p.Text,
			By:   p.By,
		})
		s.answerMutation(err, p.ID)
	default:
		s.sendError("unknown message type")
	}
}

// answerMutation reports a mutation failure to the originating session.
// Successful outcomes arrive through the hub broadcast instead.
func (s *session) answerMutation(err error, id int) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIssueNotFound):
		s.sendError(fmt.Sprintf("Issue %d not found", id))
	default:
		s.sendError("server error")
	}
}

// sendHello greets a freshly attached session.
func (s *session) sendHello() {
	s.sendMessage(serverMessage{Type: "hello", Message: "connected"})
}

// sendError reports one failure to this session only.
func (s *session) sendError(message string) {
	s.sendMessage(serverMessage{Type: "error", Message: message})
}

// sendMessage queues one personal frame.
func (s *session) sendMessage(msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encode session message", "session", s.id, "err", err)
		return
	}
	if !s.trySend(payload) {
		s.logger.Warn("session queue full, dropping message", "session", s.id)
	}
}

// trySend offers one frame without blocking.
func (s *session) trySend(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// close stops the write pump and closes the connection.
func (s *session) close() {
	close(s.done)
	_ = s.conn.Close()
}
