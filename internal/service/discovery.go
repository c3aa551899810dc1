package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/search"
	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/logging"
	"github.com/semroute/semroute/internal/metrics"
	"github.com/semroute/semroute/internal/port/outbound"
)

// ToolEmbedder scores tool metadata; the embeddings service satisfies it.
type ToolEmbedder interface {
	EmbedTools(ctx context.Context, tools []*tool.Metadata) error
}

// LoadResult reports one load_upstream outcome.
type LoadResult struct {
	Success   bool
	Upstream  string
	ToolCount int
	Error     string
}

// UnloadResult reports one unload_upstream outcome.
type UnloadResult struct {
	Success  bool
	Upstream string
	Error    string
}

// BatchFailure records one failed entry of a batch load.
type BatchFailure struct {
	Name  string
	Error string
}

// BatchResult reports a load_multiple outcome.
type BatchResult struct {
	Loaded []string
	Failed []BatchFailure
}

// DiscoveryManager orchestrates upstream lifecycle and keeps the
// embedding index synchronized: an upstream is in loadedUpstreams exactly
// when its tools are in the index. The catalog lives only in the index;
// all catalog queries delegate there.
type DiscoveryManager struct {
	cfg      *config.Config
	index    *search.Index
	embedder ToolEmbedder
	dial     outbound.SessionFactory
	resolver *AliasResolver
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// mu protects loaded; it is held only for map reads and writes, never
	// across upstream I/O or embedding calls.
	mu     sync.Mutex
	loaded map[string]*Connection

	// perUpstream serializes lifecycle operations on one upstream id so
	// clients observe them in facade order. Operations on distinct
	// upstreams proceed concurrently.
	perUpstreamMu sync.Mutex
	perUpstream   map[string]*sync.Mutex
}

// NewDiscoveryManager wires the manager. metrics may be nil.
func NewDiscoveryManager(
	cfg *config.Config,
	index *search.Index,
	embedder ToolEmbedder,
	dial outbound.SessionFactory,
	logger *slog.Logger,
	m *metrics.Metrics,
) *DiscoveryManager {
	return &DiscoveryManager{
		cfg:         cfg,
		index:       index,
		embedder:    embedder,
		dial:        dial,
		resolver:    NewAliasResolver(cfg),
		logger:      logging.For(logger, "discovery"),
		metrics:     m,
		loaded:      make(map[string]*Connection),
		perUpstream: make(map[string]*sync.Mutex),
	}
}

// Startup loads the upstreams named by auto_load. ["all"] expands to
// every canonical id, [] loads nothing. Failures are logged and recorded
// but never abort startup; the router serves requests afterwards even
// with zero upstreams loaded.
func (m *DiscoveryManager) Startup(ctx context.Context) {
	autoLoad := m.cfg.Loading.AutoLoad
	switch {
	case len(autoLoad) == 1 && autoLoad[0] == "all":
		autoLoad = m.AvailableUpstreams()
		m.logger.Info(fmt.Sprintf("auto_load=[\"all\"] - loading all %d upstreams", len(autoLoad)))
	case len(autoLoad) == 0:
		m.logger.Info("auto_load=[] - no upstreams will be loaded on startup")
		return
	}

	result := m.LoadMultiple(ctx, autoLoad)
	for _, failure := range result.Failed {
		m.logger.Warn("failed to load upstream at startup",
			"upstream", failure.Name, "error", failure.Error)
	}
	m.logger.Info("startup loading complete",
		logging.Metadata(map[string]any{
			"loaded": len(result.Loaded),
			"failed": len(result.Failed),
		}))
}

// LoadUpstream loads one upstream by name or alias. Idempotent: loading
// an already-loaded upstream succeeds with its current tool count and
// opens no new connection. Any failure after connect undoes the partial
// work so no tools remain indexed for an unregistered upstream.
func (m *DiscoveryManager) LoadUpstream(ctx context.Context, name string) LoadResult {
	canonical, err := m.resolver.Resolve(name)
	if err != nil {
		m.metrics.ObserveUpstreamLoad("failed")
		return LoadResult{Success: false, Error: err.Error()}
	}

	unlock := m.lockUpstream(canonical)
	defer unlock()

	if m.getLoaded(canonical) != nil {
		count := m.index.CountByUpstream(canonical)
		m.logger.Info(fmt.Sprintf("Upstream '%s' already loaded with %d tools", canonical, count))
		return LoadResult{Success: true, Upstream: canonical, ToolCount: count}
	}

	ucfg, ok := m.cfg.Upstream(canonical)
	if !ok {
		errMsg := fmt.Sprintf("Upstream '%s' not found in configuration", canonical)
		m.logger.Error(errMsg)
		m.metrics.ObserveUpstreamLoad("failed")
		return LoadResult{Success: false, Error: errMsg}
	}

	conn := NewConnection(canonical, ucfg, m.dial, m.logger)

	connectCtx, cancel := context.WithTimeout(ctx, m.cfg.Loading.ConnectTimeout())
	err = conn.Connect(connectCtx)
	cancel()
	if err != nil {
		var errMsg string
		if errors.Is(err, context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("Connection timeout after %ds", m.cfg.Loading.ConnectionTimeout)
		} else {
			errMsg = fmt.Sprintf("Connection failed: %v", err)
		}
		m.logger.Error(fmt.Sprintf("Failed to connect to '%s': %s", canonical, errMsg))
		m.metrics.ObserveUpstreamLoad("failed")
		return LoadResult{Success: false, Error: errMsg}
	}

	tools, err := conn.FetchTools(ctx)
	if err != nil {
		return m.undoLoad(conn, canonical, fmt.Sprintf("Failed to fetch tools: %v", err))
	}

	if err := m.embedder.EmbedTools(ctx, tools); err != nil {
		return m.undoLoad(conn, canonical, fmt.Sprintf("Failed to generate embeddings: %v", err))
	}

	if err := m.index.Add(tools); err != nil {
		return m.undoLoad(conn, canonical, fmt.Sprintf("Failed to add tools to search engine: %v", err))
	}

	m.mu.Lock()
	m.loaded[canonical] = conn
	m.mu.Unlock()

	m.metrics.ObserveUpstreamLoad("success")
	m.metrics.SetCatalogSize(m.index.Count())
	m.logger.Info("tool discovery complete",
		logging.Metadata(map[string]any{
			"upstream_id": canonical,
			"tool_count":  len(tools),
		}))
	return LoadResult{Success: true, Upstream: canonical, ToolCount: len(tools)}
}

// undoLoad disconnects a half-loaded upstream and reports the failure.
func (m *DiscoveryManager) undoLoad(conn *Connection, canonical, errMsg string) LoadResult {
	if err := conn.Disconnect(); err != nil {
		m.logger.Warn("error disconnecting after failed load",
			"upstream_id", canonical, "error", err)
	}
	m.logger.Error(fmt.Sprintf("Failed to load upstream '%s': %s", canonical, errMsg))
	m.metrics.ObserveUpstreamLoad("failed")
	return LoadResult{Success: false, Error: errMsg}
}

// LoadMultiple resolves every name first, then loads the resolved
// upstreams concurrently, bounded by max_concurrent_upstreams. One
// upstream's failure never blocks another.
func (m *DiscoveryManager) LoadMultiple(ctx context.Context, names []string) BatchResult {
	var result BatchResult

	resolved := make([]string, 0, len(names))
	for _, name := range names {
		canonical, err := m.resolver.Resolve(name)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Name: name, Error: err.Error()})
			m.logger.Warn("failed to resolve upstream", "name", name, "error", err.Error())
			continue
		}
		resolved = append(resolved, canonical)
	}

	if len(resolved) == 0 {
		return result
	}

	sem := make(chan struct{}, m.cfg.Loading.MaxConcurrentUpstreams)
	outcomes := make([]LoadResult, len(resolved))
	var wg sync.WaitGroup
	for i, canonical := range resolved {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = m.LoadUpstream(ctx, canonical)
		}()
	}
	wg.Wait()

	for i, outcome := range outcomes {
		if outcome.Success {
			result.Loaded = append(result.Loaded, outcome.Upstream)
		} else {
			result.Failed = append(result.Failed, BatchFailure{Name: resolved[i], Error: outcome.Error})
		}
	}

	m.logger.Info(fmt.Sprintf("Batch load complete: %d succeeded, %d failed",
		len(result.Loaded), len(result.Failed)))
	return result
}

// UnloadUpstream removes an upstream's tools from the index, closes its
// connection, and forgets it. Idempotent: unloading an unloaded upstream
// succeeds without touching the index. Index removal failure aborts the
// unload with the connection intact; disconnect failure is logged only.
func (m *DiscoveryManager) UnloadUpstream(ctx context.Context, name string) UnloadResult {
	canonical, err := m.resolver.Resolve(name)
	if err != nil {
		return UnloadResult{Success: false, Error: err.Error()}
	}

	unlock := m.lockUpstream(canonical)
	defer unlock()

	conn := m.getLoaded(canonical)
	if conn == nil {
		m.logger.Info(fmt.Sprintf("Upstream '%s' is not loaded, nothing to unload", canonical))
		return UnloadResult{Success: true, Upstream: canonical}
	}

	// Remove by the prefix the tools were inserted under, which is the
	// semantic prefix when one is configured.
	prefix := m.cfg.NamespacePrefix(canonical)
	removed, err := m.index.RemoveByPrefix(prefix)
	if err != nil {
		errMsg := fmt.Sprintf("Failed to remove tools from search engine: %v", err)
		m.logger.Error(fmt.Sprintf("Failed to unload upstream '%s': %s", canonical, errMsg))
		return UnloadResult{Success: false, Error: errMsg}
	}
	m.logger.Info(fmt.Sprintf("Removed %d tools for upstream '%s' from search engine", removed, canonical))

	if err := conn.Disconnect(); err != nil {
		m.logger.Warn("error disconnecting upstream",
			"upstream_id", canonical, "error", err)
	}

	m.mu.Lock()
	delete(m.loaded, canonical)
	m.mu.Unlock()

	m.metrics.SetCatalogSize(m.index.Count())
	m.logger.Info(fmt.Sprintf("Successfully unloaded upstream '%s'", canonical))
	return UnloadResult{Success: true, Upstream: canonical}
}

// IsLoaded reports whether a name or alias resolves to a loaded
// upstream. Unknown names are false, never an error.
func (m *DiscoveryManager) IsLoaded(name string) bool {
	canonical, err := m.resolver.Resolve(name)
	if err != nil {
		return false
	}
	return m.getLoaded(canonical) != nil
}

// LoadedUpstreams returns the canonical ids currently loaded, sorted.
func (m *DiscoveryManager) LoadedUpstreams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.loaded))
	for id := range m.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AvailableUpstreams returns every configured canonical id, sorted.
func (m *DiscoveryManager) AvailableUpstreams() []string {
	ids := make([]string, 0, len(m.cfg.MCPServers))
	for id := range m.cfg.MCPServers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllTools returns the full catalog.
func (m *DiscoveryManager) AllTools() []*tool.Metadata {
	return m.index.All()
}

// FindByName looks up a tool by namespaced name.
func (m *DiscoveryManager) FindByName(namespacedName string) (*tool.Metadata, bool) {
	return m.index.FindByName(namespacedName)
}

// DefaultSubset returns the diversity-balanced default tool slice.
func (m *DiscoveryManager) DefaultSubset(maxTools int) []*tool.Metadata {
	return m.index.DefaultSubset(maxTools)
}

// Connection returns the live connection for a canonical id.
func (m *DiscoveryManager) Connection(upstreamID string) (*Connection, bool) {
	conn := m.getLoaded(upstreamID)
	return conn, conn != nil
}

// Shutdown disconnects every loaded upstream. Disconnect errors are
// logged; shutdown always completes.
func (m *DiscoveryManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.loaded))
	for _, conn := range m.loaded {
		conns = append(conns, conn)
	}
	m.loaded = make(map[string]*Connection)
	m.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Disconnect(); err != nil {
			m.logger.Warn("error disconnecting upstream during shutdown",
				"upstream_id", conn.UpstreamID(), "error", err)
		}
	}
	m.logger.Info("discovery manager shutdown complete")
}

func (m *DiscoveryManager) getLoaded(canonical string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded[canonical]
}

// lockUpstream acquires the per-upstream lifecycle lock.
func (m *DiscoveryManager) lockUpstream(canonical string) func() {
	m.perUpstreamMu.Lock()
	lock, ok := m.perUpstream[canonical]
	if !ok {
		lock = &sync.Mutex{}
		m.perUpstream[canonical] = lock
	}
	m.perUpstreamMu.Unlock()

	lock.Lock()
	return lock.Unlock
}
