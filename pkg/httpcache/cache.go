// Package httpcache keeps downloaded spreadsheets in an otter cache,
// optionally persisted to disk between runs.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const cacheFile = "downloads.gob"

// Entry is a cached download. Entries past FreshUntil are stale but kept
// for another TTL so they can be revalidated with their ETag.
type Entry struct {
	FreshUntil  time.Time `json:"fresh_until"`
	ETag        string    `json:"etag,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Data        []byte    `json:"data"`
}

// Fresh reports whether the entry can be served without asking the origin.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.FreshUntil)
}

// Cache stores downloads keyed by URL.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

func newCache(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](2 * ttl),
		}),
		ttl:    ttl,
		logger: logger,
	}
}

// NewMemoryCache creates a cache that lives only as long as the process.
func NewMemoryCache(ttl time.Duration, logger *slog.Logger) *Cache {
	return newCache(ttl, logger)
}

// NewDiskCache creates a cache persisted under dir. Entries are loaded now,
// saved every 15 minutes until ctx ends, and saved once more on Close.
func NewDiskCache(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newCache(ttl, logger)
	c.dir = dir

	if err := c.loadFromDisk(); err != nil {
		c.logger.Warn("failed to load cache from disk", "error", err)
	}
	c.logger.Debug("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

func key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// Get returns the entry for url, fresh or stale.
func (c *Cache) Get(url string) (Entry, bool) {
	entry, found := c.cache.GetIfPresent(key(url))
	if !found {
		c.logger.Debug("cache miss", "url", url)
		return Entry{}, false
	}
	return entry, true
}

// Set stores data for url, fresh for the cache TTL.
func (c *Cache) Set(url string, data []byte, etag, contentType string) Entry {
	entry := Entry{
		FreshUntil:  time.Now().Add(c.ttl),
		ETag:        etag,
		ContentType: contentType,
		Data:        data,
	}
	c.cache.Set(key(url), entry)
	c.logger.Debug("cache set", "url", url, "fresh_until", entry.FreshUntil, "size", len(data))
	return entry
}

// Touch marks an existing entry fresh again, after the origin answered
// 304 Not Modified.
func (c *Cache) Touch(url string) (Entry, bool) {
	entry, found := c.cache.GetIfPresent(key(url))
	if !found {
		return Entry{}, false
	}
	return c.Set(url, entry.Data, entry.ETag, entry.ContentType), true
}

// Invalidate drops the entry for url.
func (c *Cache) Invalidate(url string) {
	c.cache.Invalidate(key(url))
}

// Len returns the approximate number of entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, cacheFile)
}

func (c *Cache) loadFromDisk() error {
	file, err := os.Open(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	// Anything older than the revalidation window is useless.
	cutoff := time.Now().Add(-c.ttl)
	valid := 0
	for k, entry := range entries {
		if entry.FreshUntil.After(cutoff) {
			c.cache.Set(k, entry)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", c.path(), "total_entries", len(entries), "valid_entries", valid)
	return nil
}

func (c *Cache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tempPath := c.path() + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to remove temp file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	for k, entry := range c.cache.All() {
		entries[k] = entry
	}

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		_ = file.Close() //nolint:errcheck // encode error wins
		return fmt.Errorf("encoding cache to file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close() //nolint:errcheck // sync error wins
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tempPath, c.path()); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", c.path())
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()

		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops background saving and writes a disk cache one last time.
// It is a no-op for memory caches.
func (c *Cache) Close() error {
	if c.dir == "" {
		return nil
	}
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()

	if err := c.saveToDisk(); err != nil {
		return fmt.Errorf("final cache save: %w", err)
	}
	return nil
}
