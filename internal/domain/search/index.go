package search

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/semroute/semroute/internal/domain/tool"
)

// Dimension is the embedding dimension every indexed tool must carry.
const Dimension = 384

// Sentinel errors for index operations.
var (
	// ErrEmptyCatalog is returned by Search when no tools are indexed.
	ErrEmptyCatalog = errors.New("no tools loaded in the catalog")
	// ErrMissingEmbedding is returned when a tool without an embedding is
	// offered to the index.
	ErrMissingEmbedding = errors.New("tool is missing embedding")
	// ErrDuplicateTool is returned when a namespaced name is already
	// present in the catalog.
	ErrDuplicateTool = errors.New("duplicate namespaced tool name")
	// ErrEmptyPrefix is returned by RemoveByPrefix for an empty prefix.
	ErrEmptyPrefix = errors.New("namespace prefix cannot be empty")
)

// Result is one ranked hit from a similarity query.
type Result struct {
	Tool       *tool.Metadata
	Similarity float64
}

// Index is the authoritative in-memory tool catalog with its embedding
// vectors. A single mutator or any number of concurrent readers hold the
// lock at a time; the lock is never held across embedding-model calls
// (embeddings are computed before tools reach the index).
type Index struct {
	mu     sync.RWMutex
	tools  []*tool.Metadata
	byName map[string]*tool.Metadata
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byName: make(map[string]*tool.Metadata)}
}

// Set replaces the catalog atomically. Every tool must carry an embedding
// of the index dimension; on failure the previous catalog is untouched.
func (x *Index) Set(tools []*tool.Metadata) error {
	if err := checkEmbeddings(tools); err != nil {
		return err
	}
	byName := make(map[string]*tool.Metadata, len(tools))
	for _, t := range tools {
		if _, dup := byName[t.NamespacedName]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.NamespacedName)
		}
		byName[t.NamespacedName] = t
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.tools = append([]*tool.Metadata(nil), tools...)
	x.byName = byName
	return nil
}

// Add appends tools to the catalog. All-or-nothing: if any tool lacks an
// embedding or duplicates an existing namespaced name, nothing is added.
func (x *Index) Add(tools []*tool.Metadata) error {
	if len(tools) == 0 {
		return nil
	}
	if err := checkEmbeddings(tools); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if _, ok := x.byName[t.NamespacedName]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.NamespacedName)
		}
		if _, ok := seen[t.NamespacedName]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.NamespacedName)
		}
		seen[t.NamespacedName] = struct{}{}
	}

	for _, t := range tools {
		x.tools = append(x.tools, t)
		x.byName[t.NamespacedName] = t
	}
	return nil
}

// RemoveByPrefix removes every tool whose namespaced name begins with
// prefix followed by a dot. Removing zero tools is success; the prefix
// must be non-empty. Returns the number of tools removed.
func (x *Index) RemoveByPrefix(prefix string) (int, error) {
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}
	needle := prefix + "."

	x.mu.Lock()
	defer x.mu.Unlock()

	kept := x.tools[:0]
	removed := 0
	for _, t := range x.tools {
		if strings.HasPrefix(t.NamespacedName, needle) {
			delete(x.byName, t.NamespacedName)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	x.tools = kept
	return removed, nil
}

// Search ranks the whole catalog by cosine similarity against the query
// vector and returns the top min(k, catalog size) results, scores
// descending. Fails on an empty catalog.
func (x *Index) Search(queryVector []float32, k int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.tools) == 0 {
		return nil, ErrEmptyCatalog
	}

	results := make([]Result, 0, len(x.tools))
	for _, t := range x.tools {
		score, err := Cosine(queryVector, t.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", t.NamespacedName, err)
		}
		results = append(results, Result{Tool: t, Similarity: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// DefaultSubset returns the diversity-balanced slice of the catalog for
// the default tools/list response.
func (x *Index) DefaultSubset(maxTools int) []*tool.Metadata {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return DefaultSubset(x.tools, maxTools)
}

// All returns a copy of the catalog.
func (x *Index) All() []*tool.Metadata {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]*tool.Metadata(nil), x.tools...)
}

// FindByName looks up a tool by namespaced name.
func (x *Index) FindByName(namespacedName string) (*tool.Metadata, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.byName[namespacedName]
	return t, ok
}

// CountByUpstream returns the number of indexed tools owned by an
// upstream.
func (x *Index) CountByUpstream(upstreamID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, t := range x.tools {
		if t.UpstreamID == upstreamID {
			n++
		}
	}
	return n
}

// Count returns the catalog size.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.tools)
}

func checkEmbeddings(tools []*tool.Metadata) error {
	for _, t := range tools {
		if !t.HasEmbedding() {
			return fmt.Errorf("%w: %s", ErrMissingEmbedding, t.NamespacedName)
		}
		if len(t.Embedding) != Dimension {
			return fmt.Errorf("tool %s has embedding dimension %d, want %d",
				t.NamespacedName, len(t.Embedding), Dimension)
		}
	}
	return nil
}
