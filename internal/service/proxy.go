package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/fault"
	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/pkg/mcp"
)

// DefaultCallTimeout bounds proxied tool calls when no explicit timeout
// is given.
const DefaultCallTimeout = 30 * time.Second

// ConnectionSource supplies live upstream connections; the discovery
// manager satisfies it.
type ConnectionSource interface {
	Connection(upstreamID string) (*Connection, bool)
}

// ToolCallProxy routes one tool call from the client to the upstream
// owning the tool and returns the response unchanged. It never retries,
// never mutates arguments, and never caches results.
type ToolCallProxy struct {
	cfg    *config.Config
	conns  ConnectionSource
	logger *slog.Logger
}

// NewToolCallProxy wires the proxy.
func NewToolCallProxy(cfg *config.Config, conns ConnectionSource, logger *slog.Logger) *ToolCallProxy {
	return &ToolCallProxy{
		cfg:    cfg,
		conns:  conns,
		logger: logging.For(logger, "proxy"),
	}
}

// CallTool parses the namespaced name, resolves the owning upstream by
// prefix (canonical id first, then semantic prefixes), and forwards the
// call with the given timeout (DefaultCallTimeout when zero).
func (p *ToolCallProxy) CallTool(ctx context.Context, namespacedName string, arguments map[string]any, timeout time.Duration) (*mcp.ToolCallResult, error) {
	prefix, originalName, err := tool.ParseNamespace(namespacedName)
	if err != nil {
		p.logger.Error("invalid tool namespace", "tool_name", namespacedName, "error", err.Error())
		return nil, err
	}

	upstreamID, ok := p.ResolvePrefix(prefix)
	if !ok {
		err := fault.Validation("No upstream found for prefix '%s' in tool '%s'", prefix, namespacedName)
		p.logger.Error(err.Message)
		return nil, err
	}

	conn, ok := p.conns.Connection(upstreamID)
	if !ok || !conn.Ready() {
		err := fault.Upstream("Upstream '%s' not connected for tool '%s'", upstreamID, namespacedName)
		p.logger.Error(err.Message)
		return nil, err
	}

	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.logger.Info("forwarding tool call",
		"tool_name", originalName, "upstream_id", upstreamID)

	result, err := conn.CallTool(callCtx, originalName, arguments)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			timeoutErr := fault.Upstream("Tool call '%s' on upstream '%s' timed out after %s",
				originalName, upstreamID, timeout)
			p.logger.Error(timeoutErr.Message)
			return nil, timeoutErr
		}
		upstreamErr := fault.Upstream("Upstream error: %v", err)
		p.logger.Error("tool call failed",
			"tool_name", originalName, "upstream_id", upstreamID, "error", err.Error())
		return nil, upstreamErr
	}

	return result, nil
}

// ResolvePrefix resolves a namespace prefix to a canonical upstream id:
// direct canonical match first, then semantic prefixes in sorted-id
// order so resolution is deterministic.
func (p *ToolCallProxy) ResolvePrefix(prefix string) (string, bool) {
	if _, ok := p.cfg.MCPServers[prefix]; ok {
		return prefix, true
	}

	ids := make([]string, 0, len(p.cfg.MCPServers))
	for id := range p.cfg.MCPServers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if p.cfg.MCPServers[id].SemanticPrefix == prefix {
			return id, true
		}
	}
	return "", false
}
