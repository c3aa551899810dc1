package service

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/semroute/semroute/internal/config"
	"github.com/semroute/semroute/internal/domain/search"
	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/embeddings"
	"github.com/semroute/semroute/internal/port/outbound"
	"github.com/semroute/semroute/pkg/mcp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeSession is a scripted upstream session.
type fakeSession struct {
	tools     []outbound.RawTool
	listErr   error
	callFn    func(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResult, error)
	mu        sync.Mutex
	closed    bool
	callCount int
}

func (s *fakeSession) ListTools(ctx context.Context) ([]outbound.RawTool, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tools, nil
}

func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolCallResult, error) {
	s.mu.Lock()
	s.callCount++
	s.mu.Unlock()
	if s.callFn != nil {
		return s.callFn(ctx, name, args)
	}
	return mcp.TextResult("ok"), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeFleet scripts the sessions handed out per upstream id and counts
// how many child processes were spawned.
type fakeFleet struct {
	mu       sync.Mutex
	sessions map[string]func() (*fakeSession, error)
	dials    map[string]int
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		sessions: make(map[string]func() (*fakeSession, error)),
		dials:    make(map[string]int),
	}
}

func (f *fakeFleet) serve(upstreamID string, session *fakeSession) {
	f.sessions[upstreamID] = func() (*fakeSession, error) { return session, nil }
}

func (f *fakeFleet) fail(upstreamID string, err error) {
	f.sessions[upstreamID] = func() (*fakeSession, error) { return nil, err }
}

// hang makes connect attempts block until the context expires.
func (f *fakeFleet) hang(upstreamID string) {
	f.sessions[upstreamID] = nil
}

func (f *fakeFleet) factory() outbound.SessionFactory {
	return func(ctx context.Context, upstreamID string, cfg config.UpstreamConfig) (outbound.Session, error) {
		f.mu.Lock()
		f.dials[upstreamID]++
		fn, ok := f.sessions[upstreamID]
		f.mu.Unlock()
		if !ok {
			return nil, errors.New("no such upstream scripted")
		}
		if fn == nil {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return fn()
	}
}

func (f *fakeFleet) dialCount(upstreamID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[upstreamID]
}

// fakeEmbedder produces deterministic bag-of-words vectors so related
// texts land near each other. It satisfies both ToolEmbedder and
// QueryEmbedder.
type fakeEmbedder struct {
	failTools bool
	failQuery bool
}

func (e *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, search.Dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%search.Dimension]++
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}

func (e *fakeEmbedder) EmbedTools(ctx context.Context, tools []*tool.Metadata) error {
	if e.failTools {
		return errors.New("model unavailable")
	}
	for _, t := range tools {
		t.Embedding = e.vector(embeddings.EmbeddingText(t))
	}
	return nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.failQuery {
		return nil, errors.New("model unavailable")
	}
	return e.vector(text), nil
}

// rawTool builds an upstream-side tool with a simple string-typed schema.
func rawTool(name, description string, params ...string) outbound.RawTool {
	var b strings.Builder
	b.WriteString(`{"type": "object", "properties": {`)
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + p + `": {"type": "string"}`)
	}
	b.WriteString(`}}`)
	return outbound.RawTool{Name: name, Description: description, InputSchema: []byte(b.String())}
}

// testConfig returns a two-upstream configuration: playwright (with the
// alias "browser") and jira.
func testConfig() *config.Config {
	return &config.Config{
		MCPServers: map[string]config.UpstreamConfig{
			"playwright": {
				Transport:           config.TransportStdio,
				Command:             "playwright-mcp",
				CategoryDescription: "Web browser automation",
				Aliases:             []string{"browser"},
			},
			"jira": {
				Transport: config.TransportStdio,
				Command:   "jira-mcp",
				Aliases:   []string{"issue-tracker"},
			},
		},
		Loading: config.LoadingConfig{
			AutoLoad:               []string{"all"},
			LazyLoad:               true,
			CacheEmbeddings:        false,
			ConnectionTimeout:      1,
			MaxConcurrentUpstreams: 4,
			RateLimit:              5,
		},
	}
}

// testStack wires a full manager/proxy/router over scripted upstreams.
type testStack struct {
	cfg      *config.Config
	fleet    *fakeFleet
	index    *search.Index
	embedder *fakeEmbedder
	manager  *DiscoveryManager
	proxy    *ToolCallProxy
	router   *Router
}

func newTestStack(t *testing.T, cfg *config.Config) *testStack {
	t.Helper()
	fleet := newFakeFleet()
	index := search.NewIndex()
	embedder := &fakeEmbedder{}
	logger := testLogger()
	manager := NewDiscoveryManager(cfg, index, embedder, fleet.factory(), logger, nil)
	proxy := NewToolCallProxy(cfg, manager, logger)
	router := NewRouter(manager, proxy, index, embedder, logger, nil)
	return &testStack{
		cfg:      cfg,
		fleet:    fleet,
		index:    index,
		embedder: embedder,
		manager:  manager,
		proxy:    proxy,
		router:   router,
	}
}

// playwrightSession returns a browser-flavored fake upstream.
func playwrightSession() *fakeSession {
	return &fakeSession{tools: []outbound.RawTool{
		rawTool("browser_navigate", "navigate to a URL", "url"),
		rawTool("browser_click", "click an element", "selector"),
		rawTool("browser_snapshot", "capture an accessibility snapshot"),
	}}
}

// jiraSession returns an issue-tracker-flavored fake upstream.
func jiraSession() *fakeSession {
	return &fakeSession{tools: []outbound.RawTool{
		rawTool("create_issue", "create a bug report", "summary", "description"),
		rawTool("search_issues", "search issues with JQL", "jql"),
	}}
}
