// Package stdio is the inbound adapter speaking newline-delimited
// JSON-RPC 2.0 with the MCP client over stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/semroute/semroute/internal/domain/fault"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/internal/service"
	"github.com/semroute/semroute/pkg/mcp"
)

// maxLineBytes bounds one inbound JSON-RPC message.
const maxLineBytes = 10 * 1024 * 1024

// protocolVersion is the MCP revision advertised in the initialize
// handshake.
const protocolVersion = "2025-06-18"

// Transport reads JSON-RPC requests from a reader and writes responses
// to a writer. Each request is served on its own goroutine; response
// writes are serialized.
type Transport struct {
	router *service.Router
	logger *slog.Logger

	writeMu sync.Mutex
	out     io.Writer
}

// NewTransport wraps the router facade.
func NewTransport(router *service.Router, logger *slog.Logger) *Transport {
	return &Transport{
		router: router,
		logger: logging.For(logger, "transport"),
	}
}

// Run serves requests until the reader is exhausted or the context is
// cancelled. It blocks; in-flight requests are awaited before returning.
func (t *Transport) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	t.out = w

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		req, err := mcp.DecodeRequest(line)
		if err != nil {
			t.logger.Warn("discarding undecodable message", "error", err.Error())
			t.write(mcp.NewErrorResponse(nil, -32700, "Parse error", nil))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.serve(ctx, req)
		}()
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

// serve dispatches one request and writes its response, if any.
func (t *Transport) serve(ctx context.Context, req *mcp.Request) {
	if req.IsNotification() {
		// notifications/initialized and friends need no reply.
		t.logger.Info("notification received", "method", req.Method)
		return
	}

	switch req.Method {
	case "initialize":
		t.writeResult(req, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": true},
			},
			"serverInfo": map[string]any{
				"name":    "semroute",
				"version": "1.0.0",
			},
		})
	case "ping":
		t.writeResult(req, map[string]any{})
	case "tools/list":
		result, err := t.router.ListDefaultTools()
		if err != nil {
			t.writeError(req, err)
			return
		}
		t.writeResult(req, result)
	case "tools/call":
		t.serveToolCall(ctx, req)
	default:
		t.write(mcp.NewErrorResponse(req.ID, fault.CodeToolNotFound,
			"Method not found: "+req.Method, nil))
	}
}

// serveToolCall decodes tools/call params and dispatches to the facade.
func (t *Transport) serveToolCall(ctx context.Context, req *mcp.Request) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			t.writeError(req, fault.Validation("Invalid tools/call params: %v", err))
			return
		}
	}
	if params.Name == "" {
		t.writeError(req, fault.Validation("Tool name is required"))
		return
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	result, err := t.router.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		t.writeError(req, err)
		return
	}
	t.writeResult(req, result)
}

func (t *Transport) writeResult(req *mcp.Request, result any) {
	resp, err := mcp.NewResultResponse(req.ID, result)
	if err != nil {
		t.writeError(req, err)
		return
	}
	t.write(resp)
}

func (t *Transport) writeError(req *mcp.Request, err error) {
	fe := fault.From(err)
	var data any
	if fe.Data != nil {
		data = fe.Data
	}
	t.write(mcp.NewErrorResponse(req.ID, fe.Code, fe.Message, data))
}

// write serializes one response as a single line on the output stream.
func (t *Transport) write(resp *mcp.Response) {
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		t.logger.Error("failed to encode response", "error", err.Error())
		return
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(append(data, '\n')); err != nil {
		t.logger.Error("failed to write response", "error", err.Error())
	}
}
