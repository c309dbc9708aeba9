package httpcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Hour, nil)

	if _, ok := c.Get("https://example.com/a.csv"); ok {
		t.Fatal("Get() on empty cache found an entry")
	}

	c.Set("https://example.com/a.csv", []byte("Data\n"), `"v1"`, "text/csv")
	entry, ok := c.Get("https://example.com/a.csv")
	if !ok {
		t.Fatal("Get() after Set() missed")
	}
	if string(entry.Data) != "Data\n" || entry.ETag != `"v1"` || entry.ContentType != "text/csv" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.Fresh(time.Now()) {
		t.Error("new entry should be fresh")
	}
	if entry.Fresh(time.Now().Add(2 * time.Hour)) {
		t.Error("entry should be stale after the ttl")
	}

	c.Invalidate("https://example.com/a.csv")
	if _, ok := c.Get("https://example.com/a.csv"); ok {
		t.Error("Get() after Invalidate() found an entry")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on memory cache = %v", err)
	}
}

func TestTouch(t *testing.T) {
	c := NewMemoryCache(time.Hour, nil)
	if _, ok := c.Touch("missing"); ok {
		t.Error("Touch() of a missing entry succeeded")
	}

	c.Set("u", []byte("x"), "e", "")
	before, _ := c.Get("u")
	time.Sleep(2 * time.Millisecond)
	after, ok := c.Touch("u")
	if !ok || !after.FreshUntil.After(before.FreshUntil) || after.ETag != "e" {
		t.Errorf("Touch() = %+v, %v; before %+v", after, ok, before)
	}
}

func TestDiskCachePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := NewDiskCache(ctx, dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	c.Set("https://example.com/jornada.xlsx", []byte{1, 2, 3}, `"abc"`, "")
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, cacheFile)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	reopened, err := NewDiskCache(ctx, dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewDiskCache() reopen error = %v", err)
	}
	defer reopened.Close()

	entry, ok := reopened.Get("https://example.com/jornada.xlsx")
	if !ok {
		t.Fatal("entry lost across reopen")
	}
	if len(entry.Data) != 3 || entry.ETag != `"abc"` {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDiskCacheIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, cacheFile), []byte("not gob"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := NewDiskCache(context.Background(), dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	defer c.Close()
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
