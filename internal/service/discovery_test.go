package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadUpstream_Success(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())

	result := stack.manager.LoadUpstream(context.Background(), "playwright")
	if !result.Success {
		t.Fatalf("load failed: %s", result.Error)
	}
	if result.Upstream != "playwright" || result.ToolCount != 3 {
		t.Errorf("result = %+v", result)
	}

	if !stack.manager.IsLoaded("playwright") {
		t.Error("IsLoaded(playwright) = false after load")
	}
	if got := stack.index.Count(); got != 3 {
		t.Errorf("index count = %d, want 3", got)
	}
	if _, ok := stack.index.FindByName("playwright.browser_navigate"); !ok {
		t.Error("namespaced tool missing from index")
	}
}

func TestLoadUpstream_ViaAlias(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())

	result := stack.manager.LoadUpstream(context.Background(), "Browser")
	if !result.Success || result.Upstream != "playwright" {
		t.Errorf("result = %+v", result)
	}
}

func TestLoadUpstream_Idempotent(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())

	first := stack.manager.LoadUpstream(context.Background(), "playwright")
	second := stack.manager.LoadUpstream(context.Background(), "playwright")

	if !second.Success || second.ToolCount != first.ToolCount {
		t.Errorf("second load = %+v, want same tool count as first (%d)", second, first.ToolCount)
	}
	if dials := stack.fleet.dialCount("playwright"); dials != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect on idempotent load)", dials)
	}
}

func TestLoadUpstream_UnknownName(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	result := stack.manager.LoadUpstream(context.Background(), "nope")
	if result.Success {
		t.Fatal("load of unknown upstream should fail")
	}
	if !strings.Contains(result.Error, "Unknown upstream or alias") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestLoadUpstream_ConnectFailure(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.fail("playwright", errors.New("spawn: no such file"))

	result := stack.manager.LoadUpstream(context.Background(), "playwright")
	if result.Success {
		t.Fatal("load should fail")
	}
	if !strings.HasPrefix(result.Error, "Connection failed:") {
		t.Errorf("error = %q, want Connection failed prefix", result.Error)
	}
	if stack.manager.IsLoaded("playwright") {
		t.Error("failed upstream must not be loaded")
	}
}

func TestLoadUpstream_ConnectTimeout(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.hang("playwright")

	start := time.Now()
	result := stack.manager.LoadUpstream(context.Background(), "playwright")
	if result.Success {
		t.Fatal("load should time out")
	}
	if result.Error != "Connection timeout after 1s" {
		t.Errorf("error = %q", result.Error)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v, want ~1s", elapsed)
	}
}

func TestLoadUpstream_FetchFailureUndoes(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	session := &fakeSession{listErr: errors.New("boom")}
	stack.fleet.serve("playwright", session)

	result := stack.manager.LoadUpstream(context.Background(), "playwright")
	if result.Success {
		t.Fatal("load should fail")
	}
	if !strings.HasPrefix(result.Error, "Failed to fetch tools:") {
		t.Errorf("error = %q", result.Error)
	}
	if !session.isClosed() {
		t.Error("session must be disconnected on fetch failure")
	}
	if stack.index.Count() != 0 {
		t.Error("no tools may remain indexed after a failed load")
	}
	if stack.manager.IsLoaded("playwright") {
		t.Error("upstream must not be registered after a failed load")
	}
}

func TestLoadUpstream_EmbeddingFailureUndoes(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	session := playwrightSession()
	stack.fleet.serve("playwright", session)
	stack.embedder.failTools = true

	result := stack.manager.LoadUpstream(context.Background(), "playwright")
	if result.Success {
		t.Fatal("load should fail")
	}
	if !strings.HasPrefix(result.Error, "Failed to generate embeddings:") {
		t.Errorf("error = %q", result.Error)
	}
	if !session.isClosed() {
		t.Error("session must be disconnected on embedding failure")
	}
	if stack.index.Count() != 0 {
		t.Error("index must stay empty")
	}
}

func TestUnloadUpstream_RemovesToolsAndDisconnects(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	session := playwrightSession()
	stack.fleet.serve("playwright", session)

	if r := stack.manager.LoadUpstream(context.Background(), "playwright"); !r.Success {
		t.Fatalf("load: %s", r.Error)
	}

	result := stack.manager.UnloadUpstream(context.Background(), "playwright")
	if !result.Success || result.Upstream != "playwright" {
		t.Fatalf("unload = %+v", result)
	}
	if stack.index.Count() != 0 {
		t.Errorf("index count = %d, want 0", stack.index.Count())
	}
	if !session.isClosed() {
		t.Error("session must be closed on unload")
	}
	if stack.manager.IsLoaded("playwright") {
		t.Error("upstream still reported loaded")
	}
}

func TestUnloadUpstream_Idempotent(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	result := stack.manager.UnloadUpstream(context.Background(), "playwright")
	if !result.Success {
		t.Errorf("unloading an unloaded upstream must succeed, got %+v", result)
	}
}

func TestUnloadUpstream_UsesSemanticPrefixForRemoval(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	pw := cfg.MCPServers["playwright"]
	pw.SemanticPrefix = "browser"
	cfg.MCPServers["playwright"] = pw

	stack := newTestStack(t, cfg)
	stack.fleet.serve("playwright", playwrightSession())

	if r := stack.manager.LoadUpstream(context.Background(), "playwright"); !r.Success {
		t.Fatalf("load: %s", r.Error)
	}
	if _, ok := stack.index.FindByName("browser.browser_navigate"); !ok {
		t.Fatal("tools should be namespaced under the semantic prefix")
	}

	result := stack.manager.UnloadUpstream(context.Background(), "playwright")
	if !result.Success {
		t.Fatalf("unload: %s", result.Error)
	}
	if got := stack.index.Count(); got != 0 {
		t.Errorf("index count = %d, want 0: removal must key off the semantic prefix", got)
	}
}

func TestLoadMultiple_PartialFailure(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())
	stack.fleet.fail("jira", errors.New("connection refused"))

	result := stack.manager.LoadMultiple(context.Background(), []string{"playwright", "jira"})

	if len(result.Loaded) != 1 || result.Loaded[0] != "playwright" {
		t.Errorf("Loaded = %v, want [playwright]", result.Loaded)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %v, want one entry", result.Failed)
	}
	if result.Failed[0].Name != "jira" || !strings.HasPrefix(result.Failed[0].Error, "Connection failed:") {
		t.Errorf("failure = %+v", result.Failed[0])
	}

	// The reachable upstream is live and searchable.
	if !stack.manager.IsLoaded("playwright") {
		t.Error("playwright should be loaded")
	}
	if stack.index.Count() != 3 {
		t.Errorf("index count = %d, want 3", stack.index.Count())
	}
}

func TestLoadMultiple_ResolutionFailuresRecorded(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())

	result := stack.manager.LoadMultiple(context.Background(), []string{"playwright", "ghost"})
	if len(result.Loaded) != 1 {
		t.Errorf("Loaded = %v", result.Loaded)
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != "ghost" {
		t.Errorf("Failed = %v", result.Failed)
	}
}

func TestStartup_AutoLoadAll(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())
	stack.fleet.serve("jira", jiraSession())

	stack.manager.Startup(context.Background())

	loaded := stack.manager.LoadedUpstreams()
	if len(loaded) != 2 || loaded[0] != "jira" || loaded[1] != "playwright" {
		t.Errorf("LoadedUpstreams = %v, want [jira playwright]", loaded)
	}
	if stack.index.Count() != 5 {
		t.Errorf("index count = %d, want 5", stack.index.Count())
	}
}

func TestStartup_FailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	stack.fleet.serve("playwright", playwrightSession())
	stack.fleet.fail("jira", errors.New("down"))

	stack.manager.Startup(context.Background())

	if !stack.manager.IsLoaded("playwright") {
		t.Error("healthy upstream should be loaded despite sibling failure")
	}
	if stack.manager.IsLoaded("jira") {
		t.Error("failed upstream must not be loaded")
	}
}

func TestStartup_EmptyAutoLoad(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Loading.AutoLoad = []string{}
	stack := newTestStack(t, cfg)

	stack.manager.Startup(context.Background())

	if len(stack.manager.LoadedUpstreams()) != 0 {
		t.Error("auto_load=[] must load nothing")
	}
	if stack.fleet.dialCount("playwright")+stack.fleet.dialCount("jira") != 0 {
		t.Error("no dials expected")
	}
}

func TestIsLoaded_UnknownNameIsFalse(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	if stack.manager.IsLoaded("never-heard-of-it") {
		t.Error("IsLoaded must be false, not an error, for unknown names")
	}
}

func TestShutdown_DisconnectsEverything(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	pw := playwrightSession()
	jr := jiraSession()
	stack.fleet.serve("playwright", pw)
	stack.fleet.serve("jira", jr)
	stack.manager.Startup(context.Background())

	stack.manager.Shutdown(context.Background())

	if !pw.isClosed() || !jr.isClosed() {
		t.Error("all sessions must be closed on shutdown")
	}
	if len(stack.manager.LoadedUpstreams()) != 0 {
		t.Error("loaded set must be empty after shutdown")
	}
}

func TestAvailableUpstreams(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, testConfig())
	got := stack.manager.AvailableUpstreams()
	if len(got) != 2 || got[0] != "jira" || got[1] != "playwright" {
		t.Errorf("AvailableUpstreams = %v", got)
	}
}

