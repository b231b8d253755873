package wsapi

import (
	"context"
	"io"
	"net/http"

	charmLog "github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/hylla/issuewire/internal/app"
)

// Mutator is the app-facing surface sessions route mutation requests
// through.
type Mutator interface {
	CreateIssue(context.Context, app.CreateIssueInput) (app.Event, error)
	UpdateStatus(context.Context, app.UpdateStatusInput) (app.Event, error)
	AddComment(context.Context, app.AddCommentInput) (app.Event, error)
}

// Handler upgrades HTTP requests into tracked sessions.
type Handler struct {
	hub      *Hub
	mutator  Mutator
	logger   *charmLog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint handler.
func NewHandler(hub *Hub, mutator Mutator, logger *charmLog.Logger) *Handler {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Handler{
		hub:     hub,
		mutator: mutator,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Actor identity is client-supplied anyway; cross-origin pages
			// get no extra authority from connecting.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one session from upgrade to disconnect.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sess := newSession(conn, h.mutator, h.logger)
	h.hub.attach(sess)
	h.logger.Info("session connected", "session", sess.id, "remote", r.RemoteAddr)

	go sess.writePump()
	sess.sendHello()
	sess.readPump(r.Context())

	h.hub.detach(sess.id)
	sess.close()
	h.logger.Info("session disconnected", "session", sess.id)
}
