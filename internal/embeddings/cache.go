package embeddings

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// Cache is an on-disk embedding cache keyed by xxhash of model and text.
// Only embeddings are persisted; the tool catalog itself never is.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the sqlite cache at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS embeddings (
		key       TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		vector    BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing embedding cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the cached vector for (model, text), if present.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	var dimension int
	var blob []byte
	row := c.db.QueryRow(`SELECT dimension, vector FROM embeddings WHERE key = ?`, cacheKey(model, text))
	if err := row.Scan(&dimension, &blob); err != nil {
		return nil, false
	}
	if len(blob) != dimension*4 {
		return nil, false
	}
	return decodeVector(blob, dimension), true
}

// Put stores a vector for (model, text), replacing any previous entry.
func (c *Cache) Put(model, text string, vector []float32) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO embeddings (key, dimension, vector) VALUES (?, ?, ?)`,
		cacheKey(model, text), len(vector), encodeVector(vector),
	)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// DefaultCachePath returns the per-user cache location for the embedding
// database, falling back to the working directory when the user cache
// directory is unknown.
func DefaultCachePath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".semroute", "embeddings.db")
	}
	return filepath.Join(base, "semroute", "embeddings.db")
}

func cacheKey(model, text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(model+"|"+text))
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte, dimension int) []float32 {
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
