// Package mcpapi provides a stateless MCP streamable-HTTP adapter so agent
// tooling can read and mutate the tracker through the same serializer as
// every websocket session.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/issuewire/internal/app"
	"github.com/hylla/issuewire/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Service is the tracker surface exposed as MCP tools.
type Service interface {
	Snapshot() domain.Document
	CreateIssue(context.Context, app.CreateIssueInput) (app.Event, error)
	UpdateStatus(context.Context, app.UpdateStatusInput) (app.Event, error)
	AddComment(context.Context, app.AddCommentInput) (app.Event, error)
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with the tracker tools.
func NewHandler(cfg Config, service Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("tracker service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerListTool(mcpSrv, service)
	registerAddTool(mcpSrv, service)
	registerUpdateTool(mcpSrv, service)
	registerCommentTool(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "issuewire"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerListTool registers the `issuewire.list_issues` tool.
func registerListTool(srv *mcpserver.MCPServer, service Service) {
	srv.AddTool(
		mcp.NewTool(
			"issuewire.list_issues",
			mcp.WithDescription("Return the full issue document: id counter plus every issue with nested comments."),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := mcp.NewToolResultJSON(service.Snapshot())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return result, nil
		},
	)
}

// registerAddTool registers the `issuewire.add_issue` tool.
func registerAddTool(srv *mcpserver.MCPServer, service Service) {
	srv.AddTool(
		mcp.NewTool(
			"issuewire.add_issue",
			mcp.WithDescription("Create one issue. Empty titles become the placeholder title."),
			mcp.WithString("title", mcp.Description("Issue title")),
			mcp.WithString("description", mcp.Description("Issue description")),
			mcp.WithString("by", mcp.Required(), mcp.Description("Actor label to attribute the change to")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			by, err := req.RequireString("by")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			event, err := service.CreateIssue(ctx, app.CreateIssueInput{
				Title:       req.GetString("title", ""),
				Description: req.GetString("description", ""),
				By:          by,
			})
			if err != nil {
				return toolResultFromError(err, 0), nil
			}
			return eventResult(event)
		},
	)
}

// registerUpdateTool registers the `issuewire.update_status` tool.
func registerUpdateTool(srv *mcpserver.MCPServer, service Service) {
	srv.AddTool(
		mcp.NewTool(
			"issuewire.update_status",
			mcp.WithDescription("Change one issue's status. Statuses outside Open/In Progress/Closed are stored verbatim."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("New status label")),
			mcp.WithString("by", mcp.Required(), mcp.Description("Actor label to attribute the change to")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			by, err := req.RequireString("by")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			event, err := service.UpdateStatus(ctx, app.UpdateStatusInput{
				ID:     id,
				Status: domain.Status(status),
				By:     by,
			})
			if err != nil {
				return toolResultFromError(err, id), nil
			}
			return eventResult(event)
		},
	)
}

// registerCommentTool registers the `issuewire.add_comment` tool.
func registerCommentTool(srv *mcpserver.MCPServer, service Service) {
	srv.AddTool(
		mcp.NewTool(
			"issuewire.add_comment",
			mcp.WithDescription("Append one comment to an issue."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue identifier")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Comment text")),
			mcp.WithString("by", mcp.Required(), mcp.Description("Actor label to attribute the change to")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			text, err := req.RequireString("text")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			by, err := req.RequireString("by")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			event, err := service.AddComment(ctx, app.AddCommentInput{
				ID:   id,
				Text: text,
				By:   by,
			})
			if err != nil {
				return toolResultFromError(err, id), nil
			}
			return eventResult(event)
		},
	)
}

// eventResult serializes one outcome event as a tool result.
func eventResult(event app.Event) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(event)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result, nil
}

// toolResultFromError maps tracker errors into MCP tool errors.
func toolResultFromError(err error, id int) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrIssueNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Issue %d not found", id))
	}
	return mcp.NewToolResultError("server error")
}
