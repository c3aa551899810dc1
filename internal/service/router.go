package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/semroute/semroute/internal/domain/fault"
	"github.com/semroute/semroute/internal/domain/search"
	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/internal/metrics"
	"github.com/semroute/semroute/pkg/mcp"
)

// Meta-tool names handled by the router itself, never forwarded.
const (
	MetaSearchTools    = "search_tools"
	MetaLoadUpstream   = "load_upstream"
	MetaUnloadUpstream = "unload_upstream"
)

// DefaultSubsetSize is the number of upstream tools in a tools/list
// response, before the meta-tools are appended.
const DefaultSubsetSize = 20

// searchTopK is the number of results a search_tools call returns.
const searchTopK = 10

// QueryEmbedder embeds search queries; the embeddings service satisfies
// it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Router is the narrow facade the MCP adapter calls into: default tool
// listing, semantic search, tool-call dispatch, and upstream lifecycle.
type Router struct {
	manager  *DiscoveryManager
	proxy    *ToolCallProxy
	index    *search.Index
	embedder QueryEmbedder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewRouter wires the facade. metrics may be nil.
func NewRouter(
	manager *DiscoveryManager,
	proxy *ToolCallProxy,
	index *search.Index,
	embedder QueryEmbedder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Router {
	return &Router{
		manager:  manager,
		proxy:    proxy,
		index:    index,
		embedder: embedder,
		logger:   logging.For(logger, "server"),
		metrics:  m,
	}
}

// ListDefaultTools returns the diversity-balanced default subset plus the
// three meta-tools.
func (r *Router) ListDefaultTools() (*mcp.ToolsListResult, error) {
	subset := r.manager.DefaultSubset(DefaultSubsetSize)

	entries := make([]mcp.ToolEntry, 0, len(subset)+3)
	for _, t := range subset {
		entry, err := t.ToEntry()
		if err != nil {
			return nil, fault.Internal("encoding tool '%s': %v", t.NamespacedName, err)
		}
		entries = append(entries, entry)
	}
	entries = append(entries, MetaToolEntries()...)

	r.logger.Info("Returning default tool subset",
		logging.Metadata(map[string]any{
			"tool_count":            len(subset),
			"includes_search_tools": true,
		}))

	return &mcp.ToolsListResult{Tools: entries}, nil
}

// CallTool dispatches one tools/call request: meta-tools are handled
// locally, everything else is validated against the tool's stored schema
// and forwarded through the proxy.
func (r *Router) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	switch name {
	case MetaSearchTools:
		return r.searchTools(ctx, arguments)
	case MetaLoadUpstream:
		return r.loadUpstream(ctx, arguments)
	case MetaUnloadUpstream:
		return r.unloadUpstream(ctx, arguments)
	}

	t, ok := r.manager.FindByName(name)
	if !ok {
		// Distinguish an unknown prefix (validation) from an unknown tool
		// on a known upstream (tool-not-found).
		prefix, _, err := tool.ParseNamespace(name)
		if err != nil {
			return nil, err
		}
		if _, resolved := r.proxy.ResolvePrefix(prefix); !resolved {
			return nil, fault.Validation("No upstream found for prefix '%s' in tool '%s'", prefix, name)
		}
		return nil, fault.ToolNotFound("Tool not found: %s", name).
			WithData(map[string]any{"tool_name": name})
	}

	if err := tool.ValidateArguments(arguments, t.InputSchema); err != nil {
		return nil, err
	}

	result, err := r.proxy.CallTool(ctx, name, arguments, 0)
	if err != nil {
		r.metrics.ObserveToolCall(t.UpstreamID, "failure")
		r.logger.Error(fmt.Sprintf("Tool call failed: %s", name),
			logging.Metadata(map[string]any{
				"tool_name":   name,
				"upstream_id": t.UpstreamID,
				"status":      "failure",
				"error":       err.Error(),
			}))
		return nil, err
	}

	status := "success"
	if result.IsError {
		status = "failure"
	}
	r.metrics.ObserveToolCall(t.UpstreamID, status)
	r.logger.Info(fmt.Sprintf("Tool call completed: %s", name),
		logging.Metadata(map[string]any{
			"tool_name":   name,
			"upstream_id": t.UpstreamID,
			"status":      status,
		}))

	return result, nil
}

// searchTools serves the search_tools meta-tool: validate, sanitize,
// embed, rank, and format the top matches as readable text.
func (r *Router) searchTools(ctx context.Context, arguments map[string]any) (*mcp.ToolCallResult, error) {
	rawQuery, present := arguments["query"]
	query, err := tool.ValidateSearchQuery(rawQuery, present)
	if err != nil {
		return nil, err
	}

	contextStrings, err := contextArgument(arguments)
	if err != nil {
		return nil, err
	}

	combined := search.CombineQueryAndContext(query, contextStrings)

	vector, err := r.embedder.EmbedQuery(ctx, combined)
	if err != nil {
		return nil, fault.Internal("Semantic search failed: %v", err).
			WithData(map[string]any{"query": query})
	}

	results, err := r.index.Search(vector, searchTopK)
	if err != nil {
		return nil, fault.Internal("Semantic search failed: %v", err).
			WithData(map[string]any{"query": query})
	}

	topMatches := make([]string, 0, 3)
	for _, res := range results {
		if len(topMatches) == 3 {
			break
		}
		topMatches = append(topMatches, res.Tool.NamespacedName)
	}
	r.metrics.ObserveSearch()
	r.logger.Info("search_tools request completed",
		logging.Metadata(map[string]any{
			"query":          query,
			"context_length": len(contextStrings),
			"top_matches":    topMatches,
			"results_count":  len(results),
		}))

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant tools:\n", len(results))
	for i, res := range results {
		fmt.Fprintf(&b, "\n%d. %s (similarity: %.4f)\n   Description: %s\n",
			i+1, res.Tool.NamespacedName, res.Similarity, res.Tool.Description)
	}

	return mcp.TextResult(b.String()), nil
}

// loadUpstream serves the load_upstream meta-tool. At least one of
// upstream and alias must be given; alias wins when both are.
func (r *Router) loadUpstream(ctx context.Context, arguments map[string]any) (*mcp.ToolCallResult, error) {
	upstream, _ := arguments["upstream"].(string)
	alias, _ := arguments["alias"].(string)

	if upstream == "" && alias == "" {
		return nil, fault.Validation("Either 'upstream' or 'alias' must be provided")
	}
	name := upstream
	if alias != "" {
		name = alias
	}

	result := r.manager.LoadUpstream(ctx, name)
	if !result.Success {
		return mcp.TextResult(fmt.Sprintf("Failed to load upstream '%s': %s", name, result.Error)), nil
	}
	return mcp.TextResult(fmt.Sprintf("Successfully loaded upstream '%s' with %d tools.",
		result.Upstream, result.ToolCount)), nil
}

// unloadUpstream serves the unload_upstream meta-tool.
func (r *Router) unloadUpstream(ctx context.Context, arguments map[string]any) (*mcp.ToolCallResult, error) {
	upstream, _ := arguments["upstream"].(string)
	if upstream == "" {
		return nil, fault.Validation("'upstream' must be provided")
	}

	result := r.manager.UnloadUpstream(ctx, upstream)
	if !result.Success {
		return mcp.TextResult(fmt.Sprintf("Failed to unload upstream '%s': %s", upstream, result.Error)), nil
	}
	return mcp.TextResult(fmt.Sprintf("Successfully unloaded upstream '%s'.", result.Upstream)), nil
}

// contextArgument extracts the optional context argument as a string
// slice.
func contextArgument(arguments map[string]any) ([]string, error) {
	raw, ok := arguments["context"]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fault.Validation("Context must be an array of strings")
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fault.Validation("Context must be an array of strings")
		}
		strs = append(strs, s)
	}
	return strs, nil
}

// MetaToolEntries returns the three router-owned tools with their fixed
// descriptions and input schemas.
func MetaToolEntries() []mcp.ToolEntry {
	return []mcp.ToolEntry{
		{
			Name: MetaSearchTools,
			Description: "IMPORTANT: Use this tool FIRST when the user asks about a specific task or domain " +
				"(testing, issues, repositories, etc.). This returns the most relevant tools for the " +
				"user's request, reducing the number of tools you need to consider. Provide a query " +
				"describing what the user wants to do. Example queries: 'test a web page', " +
				"'create a bug report', 'check repository status'.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "Query describing what the user wants to do"
					},
					"context": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Optional context strings to enhance the query"
					}
				},
				"required": ["query"]
			}`),
		},
		{
			Name: MetaLoadUpstream,
			Description: "Load an upstream MCP server on-demand. Provide either 'upstream' (canonical name) " +
				"or 'alias' (friendly name). This allows you to dynamically load additional tools " +
				"without restarting the router.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"upstream": {
						"type": "string",
						"description": "Canonical upstream name (e.g., 'playwright', 'jira')"
					},
					"alias": {
						"type": "string",
						"description": "Upstream alias (e.g., 'browser', 'issue-tracker')"
					}
				},
				"required": []
			}`),
		},
		{
			Name: MetaUnloadUpstream,
			Description: "Unload an upstream MCP server. Provide 'upstream' (canonical name or alias). " +
				"This removes all tools from the upstream and closes the connection. " +
				"The operation is idempotent - unloading an already-unloaded upstream succeeds.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"upstream": {
						"type": "string",
						"description": "Upstream name or alias to unload (e.g., 'playwright', 'browser')"
					}
				},
				"required": ["upstream"]
			}`),
		},
	}
}
