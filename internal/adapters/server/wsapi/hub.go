// Package wsapi provides the real-time channel adapter: a hub that fans
// outcome events out to every connected listener, and per-connection
// sessions that decode mutation requests and route them to the tracker.
package wsapi

import (
	"encoding/json"
	"io"
	"sync"

	charmLog "github.com/charmbracelet/log"
	"github.com/hylla/issuewire/internal/app"
)

// Hub tracks open sessions and implements app.Broadcaster. Delivery is
// best-effort and at-most-once per listener: a session with a full write
// queue drops the event rather than stalling the pipeline, and listeners
// that connect later catch up via the snapshot endpoint instead.
type Hub struct {
	logger *charmLog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHub constructs an empty hub.
func NewHub(logger *charmLog.Logger) *Hub {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Hub{
		logger:   logger,
		sessions: map[string]*session{},
	}
}

// Publish serializes the event once and offers it to every open session in
// order. Per-listener failures are logged and never surfaced to the
// mutation's originator.
func (h *Hub) Publish(ev app.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode outcome event", "type", ev.Type, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sess := range h.sessions {
		if !sess.trySend(payload) {
			h.logger.Warn("listener queue full, dropping event", "session", id, "type", ev.Type)
		}
	}
}

// SessionCount reports how many sessions are currently attached.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// attach registers one session for fan-out.
func (h *Hub) attach(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess.id] = sess
}

// detach removes one session; events published afterwards no longer reach
// it.
func (h *Hub) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}
