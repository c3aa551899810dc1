// Package config provides configuration loading and validation for the
// semroute router.
package config

import "time"

// Transport identifies how the router talks to an upstream MCP server.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// UpstreamConfig describes one upstream MCP server.
type UpstreamConfig struct {
	// Transport is the connection protocol: stdio, sse, or http. Only
	// stdio upstreams can currently be loaded; the others are reserved and
	// rejected at connect time.
	Transport string `json:"transport" validate:"required,oneof=stdio sse http"`
	// Command is the executable to spawn (stdio only).
	Command string `json:"command"`
	// Args are passed to the command (stdio only).
	Args []string `json:"args"`
	// URL is the endpoint (sse/http only).
	URL string `json:"url"`
	// SemanticPrefix overrides the canonical id as the tool namespace
	// prefix.
	SemanticPrefix string `json:"semantic_prefix"`
	// CategoryDescription is folded into each tool's embedding text.
	CategoryDescription string `json:"category_description"`
	// Aliases are alternative names resolving to this upstream.
	Aliases []string `json:"aliases"`
}

// LoadingConfig controls dynamic upstream loading behavior.
type LoadingConfig struct {
	// AutoLoad names the upstreams loaded at startup: ["all"], an explicit
	// list of canonical ids, or [] for none.
	AutoLoad []string
	// LazyLoad is advisory.
	LazyLoad bool
	// CacheEmbeddings enables the on-disk embedding cache.
	CacheEmbeddings bool
	// ConnectionTimeout bounds upstream connects, in seconds.
	ConnectionTimeout int `validate:"gt=0"`
	// MaxConcurrentUpstreams bounds batch-load concurrency.
	MaxConcurrentUpstreams int `validate:"gt=0"`
	// RateLimit is advisory.
	RateLimit int `validate:"gt=0"`
}

// ConnectTimeout returns the connection timeout as a duration.
func (l LoadingConfig) ConnectTimeout() time.Duration {
	return time.Duration(l.ConnectionTimeout) * time.Second
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the
	// listener.
	Addr string `json:"addr"`
}

// Config is the router configuration, immutable after startup.
type Config struct {
	MCPServers map[string]UpstreamConfig `validate:"required,min=1,dive"`
	Loading    LoadingConfig
	Metrics    MetricsConfig
}

// Upstream returns the configuration for a canonical id.
func (c *Config) Upstream(id string) (UpstreamConfig, bool) {
	u, ok := c.MCPServers[id]
	return u, ok
}

// NamespacePrefix returns the tool namespace prefix actually used for an
// upstream: the semantic prefix when configured, else the canonical id.
func (c *Config) NamespacePrefix(id string) string {
	if u, ok := c.MCPServers[id]; ok && u.SemanticPrefix != "" {
		return u.SemanticPrefix
	}
	return id
}
