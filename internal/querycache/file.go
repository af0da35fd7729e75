package querycache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileVersion is bumped when the on-disk layout changes.
// Files with another version are ignored.
const fileVersion = 1

// Record is the persisted form of one entry.
type Record[T any] struct {
	Key       Key       `json:"key"`
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale,omitempty"`
}

type cacheFile[T any] struct {
	Version int         `json:"version"`
	Entries []Record[T] `json:"entries"`
}

// Export returns every entry in key order. Stale reports explicit
// invalidation only; age-based staleness is recomputed on import.
func (c *Cache[T]) Export() []Record[T] {
	keys := c.Keys()

	c.mu.Lock()
	defer c.mu.Unlock()
	records := make([]Record[T], 0, len(keys))
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		records = append(records, Record[T]{
			Key:       key,
			Data:      c.opts.Clone(e.data),
			FetchedAt: e.fetchedAt,
			Stale:     e.invalidated,
		})
	}
	return records
}

// Import loads records, replacing entries with the same key.
func (c *Cache[T]) Import(records []Record[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.entries[r.Key] = &entry[T]{
			data:        c.opts.Clone(r.Data),
			fetchedAt:   r.FetchedAt,
			invalidated: r.Stale,
		}
		c.gens[r.Key]++
	}
}

// SaveFile writes the cache to path with mode 0600.
func SaveFile[T any](path string, c *Cache[T]) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(cacheFile[T]{Version: fileVersion, Entries: c.Export()})
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// LoadFile imports the cache at path. A missing file is not an error.
// An unreadable or foreign-version file is ignored so a bad cache never
// blocks the program; the error is still returned for logging.
func LoadFile[T any](path string, c *Cache[T]) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read cache: %w", err)
	}

	var f cacheFile[T]
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid cache file %s: %w", path, err)
	}
	if f.Version != fileVersion {
		return fmt.Errorf("unsupported cache file version %d", f.Version)
	}
	c.Import(f.Entries)
	return nil
}

// RemoveFile deletes the cache file. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	return nil
}
