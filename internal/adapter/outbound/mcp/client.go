// Package mcp provides the MCP client adapter for connecting to upstream
// servers through the official SDK.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/port/outbound"
	"github.com/semroute/semroute/pkg/mcp"
)

// Distinct error classes for connect failures.
var (
	// ErrUnsupportedTransport is returned for sse/http upstreams, which
	// are reserved but not yet dialable.
	ErrUnsupportedTransport = errors.New("unsupported transport type")
	// ErrMissingCommand is returned when a stdio upstream has no launch
	// command.
	ErrMissingCommand = errors.New("missing command for stdio transport")
)

// clientInfo identifies the router in MCP handshakes with upstreams.
var clientInfo = &mcpsdk.Implementation{Name: "semroute", Version: "1.0.0"}

// Dial spawns the upstream child process and negotiates an MCP session.
// Only stdio transports are supported; the reserved sse/http transports
// fail with ErrUnsupportedTransport.
func Dial(ctx context.Context, upstreamID string, cfg config.UpstreamConfig) (outbound.Session, error) {
	if cfg.Transport != config.TransportStdio {
		return nil, fmt.Errorf("%w: %q (only %q is currently supported)",
			ErrUnsupportedTransport, cfg.Transport, config.TransportStdio)
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w in upstream '%s'", ErrMissingCommand, upstreamID)
	}

	client := mcpsdk.NewClient(clientInfo, nil)
	cmd := exec.Command(cfg.Command, cfg.Args...)
	session, err := client.Connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to upstream '%s': %w", upstreamID, err)
	}

	return &sdkSession{upstreamID: upstreamID, session: session}, nil
}

// sdkSession adapts an SDK client session to the outbound port.
type sdkSession struct {
	upstreamID string
	session    *mcpsdk.ClientSession
}

// ListTools fetches the upstream catalog, re-encoding each input schema
// to JSON from the value the SDK decoded; the bytes are not a copy of
// what the upstream sent.
func (s *sdkSession) ListTools(ctx context.Context) ([]outbound.RawTool, error) {
	result, err := s.session.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("tools/list on upstream '%s': %w", s.upstreamID, err)
	}

	tools := make([]outbound.RawTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		var schema json.RawMessage
		if t.InputSchema != nil {
			raw, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("encoding schema of tool '%s': %w", t.Name, err)
			}
			schema = raw
		}
		tools = append(tools, outbound.RawTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// CallTool invokes one tool and converts the SDK result to the wire
// shape without reinterpreting content or error status.
func (s *sdkSession) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	result, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call '%s' on upstream '%s': %w", name, s.upstreamID, err)
	}

	content := make([]mcp.ContentItem, 0, len(result.Content))
	for _, c := range result.Content {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encoding content from upstream '%s': %w", s.upstreamID, err)
		}
		var item mcp.ContentItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decoding content from upstream '%s': %w", s.upstreamID, err)
		}
		content = append(content, item)
	}

	return &mcp.ToolCallResult{Content: content, IsError: result.IsError}, nil
}

// Close terminates the session and the upstream child process.
func (s *sdkSession) Close() error {
	return s.session.Close()
}

var _ outbound.Session = (*sdkSession)(nil)
