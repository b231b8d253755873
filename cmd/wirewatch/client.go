package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
	"github.com/hylla/issuewire/internal/tui"
)

// incomingQueueDepth buffers stream frames while the view catches up.
const incomingQueueDepth = 64

// wireFrame is one inbound websocket frame: either a broadcast event or a
// session-scoped server message.
type wireFrame struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Issue   *domain.Issue   `json:"issue"`
	ID      int             `json:"id"`
	Comment *domain.Comment `json:"comment"`
	Meta    app.EventMeta   `json:"meta"`
}

// outboundFrame is one mutation request sent to the server.
type outboundFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsClient connects the watcher to one issuewire server: snapshot over HTTP,
// live events and mutations over the websocket.
type wsClient struct {
	httpBase    string
	apiEndpoint string
	actor       string
	httpClient  *http.Client

	conn     *websocket.Conn
	writeMu  sync.Mutex
	incoming chan tui.Incoming
}

// dialClient connects to the server and starts the read loop.
func dialClient(ctx context.Context, httpBase, apiEndpoint, wsEndpoint, actor string) (*wsClient, error) {
	wsURL, err := websocketURL(httpBase, wsEndpoint)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	client := &wsClient{
		httpBase:    strings.TrimRight(httpBase, "/"),
		apiEndpoint: apiEndpoint,
		actor:       actor,
		httpClient:  &http.Client{},
		conn:        conn,
		incoming:    make(chan tui.Incoming, incomingQueueDepth),
	}
	go client.readLoop()
	return client, nil
}

// websocketURL rewrites the HTTP base URL into the websocket endpoint URL.
func websocketURL(httpBase, wsEndpoint string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(httpBase), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "", fmt.Errorf("server url must start with http:// or https://, got %q", httpBase)
	}
	if !strings.HasPrefix(wsEndpoint, "/") {
		wsEndpoint = "/" + wsEndpoint
	}
	return base + wsEndpoint, nil
}

// readLoop decodes frames until the connection drops, then closes the stream.
func (c *wsClient) readLoop() {
	defer close(c.incoming)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		item, ok := decodeFrame(payload)
		if !ok {
			continue
		}
		c.incoming <- item
	}
}

// decodeFrame maps one wire frame into a stream item. Hello frames and
// unrecognized types are dropped.
func decodeFrame(payload []byte) (tui.Incoming, bool) {
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return tui.Incoming{}, false
	}
	switch frame.Type {
	case "error":
		return tui.Incoming{Notice: frame.Message}, true
	case string(app.EventIssueAdded), string(app.EventIssueUpdated):
		if frame.Issue == nil {
			return tui.Incoming{}, false
		}
		return tui.Incoming{Event: &app.Event{
			Type:  app.EventType(frame.Type),
			Issue: frame.Issue,
			Meta:  frame.Meta,
		}}, true
	case string(app.EventCommentAdded):
		if frame.Comment == nil {
			return tui.Incoming{}, false
		}
		return tui.Incoming{Event: &app.Event{
			Type:    app.EventCommentAdded,
			IssueID: frame.ID,
			Comment: frame.Comment,
			Meta:    frame.Meta,
		}}, true
	default:
		return tui.Incoming{}, false
	}
}

// Snapshot fetches the full document over the HTTP API.
func (c *wsClient) Snapshot(ctx context.Context) (domain.Document, error) {
	url := c.httpBase + c.apiEndpoint + "/document"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return domain.Document{}, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}
	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc, nil
}

// Incoming returns the live stream channel.
func (c *wsClient) Incoming() <-chan tui.Incoming {
	return c.incoming
}

// CreateIssue submits one add mutation.
func (c *wsClient) CreateIssue(_ context.Context, title, description string) error {
	return c.send(outboundFrame{
		Type: "add",
		Payload: map[string]any{
			"title":       title,
			"description": description,
			"by":          c.actor,
		},
	})
}

// UpdateStatus submits one status mutation.
func (c *wsClient) UpdateStatus(_ context.Context, id int, status domain.Status) error {
	return c.send(outboundFrame{
		Type: "update",
		Payload: map[string]any{
			"id":     id,
			"status": status,
			"by":     c.actor,
		},
	})
}

// AddComment submits one comment mutation.
func (c *wsClient) AddComment(_ context.Context, id int, text string) error {
	return c.send(outboundFrame{
		Type: "comment",
		Payload: map[string]any{
			"id":   id,
			"text": text,
			"by":   c.actor,
		},
	})
}

// send serializes one outbound frame. The websocket allows one concurrent
// writer, so writes take the mutex.
func (c *wsClient) send(frame outboundFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close tears down the websocket connection.
func (c *wsClient) Close() error {
	return c.conn.Close()
}
