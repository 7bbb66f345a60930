// Package tablecache implements a two-tier (memory + disk) LRU cache of
// versioned actuarial tables, built around github.com/hashicorp/golang-lru/v2
// for recency ordering with a byte-budget eviction policy and a single mutex
// guarding every operation.
package tablecache

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/R3E-Network/livecalc/infrastructure/hex"
)

const (
	cacheMagic           byte = 0x42
	cacheSchemaVersion   byte = 0x01
	cacheFileHeaderBytes      = 10 // magic(1) + schema(1) + count(8)
)

// Entry is one cached table: the flat vector of doubles plus the metadata
// needed to evict and revalidate it (fetch time, size, content hash).
type Entry struct {
	Key           string
	Version       string
	Data          []float64
	FetchTime     time.Time
	DataSizeBytes int64
	ContentHash   [32]byte
}

// Stats reports cumulative cache activity.
type Stats struct {
	Hits          int64
	Misses        int64
	BytesStored   int64
	EntriesCount  int
}

// Cache is a bounded, persistent LRU cache keyed by "name:version". A single
// mutex guards every operation: promote-on-hit, miss-then-load-from-disk,
// insert, evict, and stats. This lock is never held while acquiring the
// token handler's lock.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, *Entry]
	root   string // disk cache root; "" disables persistence
	budget int64

	bytesStored int64
	hits        int64
	misses      int64
}

// New creates a Cache with the given disk root (pass "" to disable
// persistence, or DefaultCacheRoot() for the OS-appropriate default) and a
// byte budget enforced across all in-memory entries.
func New(root string, budgetBytes int64) *Cache {
	// The underlying LRU structure is sized generously on entry count; real
	// eviction is driven by budgetBytes, not Len(), via RemoveOldest below.
	backing, err := lru.New[string, *Entry](1 << 20)
	if err != nil {
		// Only returns an error for non-positive size, which never happens here.
		panic(fmt.Sprintf("tablecache: unexpected lru.New error: %v", err))
	}
	c := &Cache{
		lru:    backing,
		root:   root,
		budget: budgetBytes,
	}
	if root != "" {
		_ = os.MkdirAll(root, 0o755)
	}
	return c
}

// IsCacheable reports whether a key is eligible for caching at all. Keys
// ending in ":latest" or ":draft" name a mutable tag and must bypass both
// Get and Put.
func IsCacheable(key string) bool {
	return !strings.HasSuffix(key, ":latest") && !strings.HasSuffix(key, ":draft")
}

// Get returns the cached vector for key, promoting it to most-recently-used.
// A memory miss probes the on-disk copy; if present, it is loaded into
// memory, promoted, and returned as a hit.
func (c *Cache) Get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.lru.Get(key); ok {
		c.hits++
		return cloneFloats(entry.Data), true
	}

	if entry, ok := c.loadFromDisk(key); ok {
		c.insertLocked(entry)
		c.evictLocked()
		c.hits++
		return cloneFloats(entry.Data), true
	}

	c.misses++
	return nil, false
}

// Put stores v under key, promotes it, evicts until the byte budget is
// satisfied, and persists to disk (fail-open: disk errors never surface).
//
// Per the version-immutability invariant, callers must only Put a concrete
// version with bytes that match any prior Put for the same key; Put itself
// does not attempt to detect violations since the cache has no notion of
// "the same logical table" beyond the key.
func (c *Cache) Put(key, version string, v []float64) {
	entry := &Entry{
		Key:           key,
		Version:       version,
		Data:          cloneFloats(v),
		FetchTime:     time.Now(),
		DataSizeBytes: int64(len(v)) * 8,
		ContentHash:   sha256.Sum256(encodeFloats(v)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertLocked(entry)
	c.evictLocked()
	c.persistLocked(entry)
}

// Clear removes all in-memory and on-disk entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		c.removeDiskLocked(key)
	}
	c.lru.Purge()
	c.bytesStored = 0
}

// Stats returns a snapshot of cumulative cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:         c.hits,
		Misses:       c.misses,
		BytesStored:  c.bytesStored,
		EntriesCount: c.lru.Len(),
	}
}

func (c *Cache) insertLocked(entry *Entry) {
	if old, ok := c.lru.Peek(entry.Key); ok {
		c.bytesStored -= old.DataSizeBytes
	}
	c.lru.Add(entry.Key, entry)
	c.bytesStored += entry.DataSizeBytes
}

func (c *Cache) evictLocked() {
	for c.budget > 0 && c.bytesStored > c.budget && c.lru.Len() > 0 {
		key, entry, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.bytesStored -= entry.DataSizeBytes
		c.removeDiskLocked(key)
	}
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// DefaultCacheRoot resolves the OS-appropriate disk cache root.
func DefaultCacheRoot() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
		return filepath.Join(base, "LiveCalc", "Cache")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Caches", "LiveCalc")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".cache", "livecalc")
	}
}

// diskPath returns the on-disk file path for key, or "" if persistence is
// disabled.
func (c *Cache) diskPath(key string) string {
	if c.root == "" {
		return ""
	}
	filename := strings.ReplaceAll(key, ":", "_") + ".cache"
	return filepath.Join(c.root, filename)
}

func (c *Cache) persistLocked(entry *Entry) {
	path := c.diskPath(entry.Key)
	if path == "" {
		return
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return
	}

	data := encodeCacheFile(entry.Data)

	tmp, err := os.CreateTemp(c.root, ".tablecache-*.tmp")
	if err != nil {
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return
	}
	_ = os.Rename(tmpPath, path)
}

func (c *Cache) loadFromDisk(key string) (*Entry, bool) {
	path := c.diskPath(key)
	if path == "" {
		return nil, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	data, ok := decodeCacheFile(raw)
	if !ok {
		return nil, false
	}
	return &Entry{
		Key:           key,
		FetchTime:     time.Now(),
		Data:          data,
		DataSizeBytes: int64(len(data)) * 8,
		ContentHash:   sha256.Sum256(encodeFloats(data)),
	}, true
}

func (c *Cache) removeDiskLocked(key string) {
	path := c.diskPath(key)
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// encodeCacheFile renders the little-endian on-disk cache file format:
// magic(1) schema(1) count(u64) samples(f64...).
func encodeCacheFile(data []float64) []byte {
	out := make([]byte, cacheFileHeaderBytes+8*len(data))
	out[0] = cacheMagic
	out[1] = cacheSchemaVersion
	binary.LittleEndian.PutUint64(out[2:10], uint64(len(data)))
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[cacheFileHeaderBytes+8*i:], math.Float64bits(v))
	}
	return out
}

// decodeCacheFile parses the on-disk format. An unexpected magic or schema
// version, or a truncated body, causes the file to be treated as absent.
func decodeCacheFile(raw []byte) ([]float64, bool) {
	if len(raw) < cacheFileHeaderBytes {
		return nil, false
	}
	if raw[0] != cacheMagic || raw[1] != cacheSchemaVersion {
		return nil, false
	}
	count := binary.LittleEndian.Uint64(raw[2:10])
	want := cacheFileHeaderBytes + 8*int(count)
	if uint64(want-cacheFileHeaderBytes)/8 != count || len(raw) < want {
		return nil, false
	}
	out := make([]float64, count)
	for i := range out {
		bits := binary.LittleEndian.Uint64(raw[cacheFileHeaderBytes+8*i:])
		out[i] = math.Float64frombits(bits)
	}
	return out, true
}

func encodeFloats(v []float64) []byte {
	out := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(f))
	}
	return out
}

// ContentHashHex renders an entry's content hash the way cache audit
// tooling displays it.
func ContentHashHex(entry *Entry) string {
	return hex.EncodeToString(entry.ContentHash[:])
}
