// Package outbound defines the outbound port interfaces for talking to
// upstream MCP servers.
package outbound

import (
	"context"
	"encoding/json"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/pkg/mcp"
)

// RawTool is one tool as advertised by an upstream, schema bytes
// untouched.
type RawTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Session is an established MCP session with one upstream server.
// Adapters implement this per transport; only stdio is currently dialed.
type Session interface {
	// ListTools fetches the upstream's tool catalog.
	ListTools(ctx context.Context) ([]RawTool, error)
	// CallTool invokes one tool by its original (un-namespaced) name and
	// returns the MCP-shaped result unmodified.
	CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.ToolCallResult, error)
	// Close tears down the session and the child process.
	Close() error
}

// SessionFactory dials a session for a configured upstream. The
// discovery manager uses it so tests can substitute fake upstreams.
type SessionFactory func(ctx context.Context, upstreamID string, cfg config.UpstreamConfig) (Session, error)
