// Package service contains the router's orchestration layer: upstream
// connections, the discovery manager, the tool-call proxy, and the
// router facade.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/domain/upstream"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/internal/port/outbound"
	"github.com/semroute/semroute/pkg/mcp"
)

// Connection owns one MCP session to an upstream server. Instances are
// single-use: a re-loaded upstream gets a fresh Connection. Requests on
// one session are serialized; distinct connections operate independently.
type Connection struct {
	upstreamID string
	cfg        config.UpstreamConfig
	dial       outbound.SessionFactory
	instanceID string
	logger     *slog.Logger

	mu      sync.Mutex
	state   upstream.State
	session outbound.Session

	// callMu serializes in-flight requests; an MCP session is not assumed
	// multiplex-safe.
	callMu sync.Mutex
}

// NewConnection creates a connection in the Disconnected state.
func NewConnection(upstreamID string, cfg config.UpstreamConfig, dial outbound.SessionFactory, logger *slog.Logger) *Connection {
	return &Connection{
		upstreamID: upstreamID,
		cfg:        cfg,
		dial:       dial,
		instanceID: uuid.NewString(),
		logger:     logging.For(logger, "upstream"),
		state:      upstream.StateDisconnected,
	}
}

// UpstreamID returns the canonical id of the upstream.
func (c *Connection) UpstreamID() string {
	return c.upstreamID
}

// State returns the current lifecycle state.
func (c *Connection) State() upstream.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the connection accepts requests.
func (c *Connection) Ready() bool {
	return c.State() == upstream.StateReady
}

// Connect spawns the child process and negotiates the MCP handshake.
// Failure is terminal for this instance and releases all resources.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != upstream.StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", upstream.ErrAlreadyConnected, state)
	}
	c.state = upstream.StateConnecting
	c.mu.Unlock()

	session, err := c.dial(ctx, c.upstreamID, c.cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = upstream.StateFailed
		return err
	}
	c.session = session
	c.state = upstream.StateReady
	c.logger.Info("connected to upstream",
		"upstream_id", c.upstreamID, "connection_id", c.instanceID)
	return nil
}

// FetchTools asks the upstream for its catalog and stamps each tool with
// its namespaced name, upstream id, and category description. Input
// schemas are preserved verbatim, unknown fields included.
func (c *Connection) FetchTools(ctx context.Context) ([]*tool.Metadata, error) {
	session, err := c.readySession()
	if err != nil {
		return nil, err
	}

	c.callMu.Lock()
	raw, err := session.ListTools(ctx)
	c.callMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("fetching tools from upstream '%s': %w", c.upstreamID, err)
	}

	tools := make([]*tool.Metadata, 0, len(raw))
	for _, r := range raw {
		schema, err := tool.SchemaFromJSON(r.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("parsing schema of tool '%s' from upstream '%s': %w", r.Name, c.upstreamID, err)
		}
		tools = append(tools, &tool.Metadata{
			NamespacedName:      tool.GenerateNamespace(c.upstreamID, r.Name, c.cfg.SemanticPrefix),
			OriginalName:        r.Name,
			Description:         r.Description,
			InputSchema:         schema,
			UpstreamID:          c.upstreamID,
			CategoryDescription: c.cfg.CategoryDescription,
		})
	}
	return tools, nil
}

// CallTool invokes one tool on the upstream by its original name and
// returns the result unmodified. Per-call failures are not terminal for
// the connection.
func (c *Connection) CallTool(ctx context.Context, originalName string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	session, err := c.readySession()
	if err != nil {
		return nil, err
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()
	result, err := session.CallTool(ctx, originalName, arguments)
	if err != nil {
		if isTransportFailure(err) {
			c.markClosed(session)
		}
		return nil, fmt.Errorf("upstream '%s': %w", c.upstreamID, err)
	}
	return result, nil
}

// isTransportFailure reports whether an error means the peer hung up, as
// opposed to a per-call tool failure.
func isTransportFailure(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

// markClosed transitions to Closed after a peer hangup and releases the
// dead session.
func (c *Connection) markClosed(session outbound.Session) {
	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = upstream.StateClosed
	c.mu.Unlock()

	_ = session.Close()
	c.logger.Warn("upstream hung up", "upstream_id", c.upstreamID)
}

// Disconnect tears down the session and child process. Redundant calls
// log and succeed.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	session := c.session
	prev := c.state
	c.session = nil
	c.state = upstream.StateClosed
	c.mu.Unlock()

	if session == nil {
		c.logger.Info("disconnect on inactive connection",
			"upstream_id", c.upstreamID, "state", string(prev))
		return nil
	}
	if err := session.Close(); err != nil {
		return fmt.Errorf("disconnecting upstream '%s': %w", c.upstreamID, err)
	}
	c.logger.Info("disconnected from upstream",
		"upstream_id", c.upstreamID, "connection_id", c.instanceID)
	return nil
}

func (c *Connection) readySession() (outbound.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != upstream.StateReady || c.session == nil {
		return nil, fmt.Errorf("%w: upstream '%s' is %s", upstream.ErrNotConnected, c.upstreamID, c.state)
	}
	return c.session, nil
}
