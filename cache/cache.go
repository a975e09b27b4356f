// Package cache stores transcription results keyed by audio content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"go.aimuz.me/scribe/transcript"
)

// DefaultTTL is how long a cached transcript is kept.
const DefaultTTL = 30 * 24 * time.Hour

// Entry is a cached transcription.
type Entry struct {
	Provider  string               `json:"provider"`
	Model     string               `json:"model"`
	Language  string               `json:"language"`
	Segments  []transcript.Segment `json:"segments"`
	Usage     Usage                `json:"usage"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Usage records what the transcription cost to produce.
type Usage struct {
	AudioSeconds float64 `json:"audioSeconds"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

// Cache is a persistent key/value store for transcripts.
type Cache struct {
	db *badger.DB
}

// New opens or creates a cache in dir.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return open(badger.DefaultOptions(dir))
}

// NewInMemory creates a cache that is not persisted.
func NewInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Cache, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the entry for key. Missing, expired and unreadable entries
// report false.
func (c *Cache) Get(key string) (*Entry, bool) {
	if c == nil || c.db == nil {
		return nil, false
	}

	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("read cache entry", "key", key, "error", err)
		}
		return nil, false
	}
	return &entry, true
}

// Set stores entry under key for ttl. A non-positive ttl never expires.
func (c *Cache) Set(key string, entry *Entry, ttl time.Duration) error {
	if c == nil || c.db == nil {
		return errors.New("cache not initialized")
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key.
func (c *Cache) Delete(key string) error {
	if c == nil || c.db == nil {
		return errors.New("cache not initialized")
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close flushes and closes the store.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// GenerateKey hashes parts into a cache key.
func GenerateKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return "stt:" + hex.EncodeToString(h.Sum(nil))
}

// FileKey hashes the content of the file at path together with parts, so a
// renamed or moved file still hits the cache.
func FileKey(path string, parts ...string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return GenerateKey(append([]string{sum}, parts...)...), nil
}
