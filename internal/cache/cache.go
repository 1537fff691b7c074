// Package cache is a TTL-keyed store of raw vendor API responses, one JSON
// file per (device, date) key. It exists to keep re-runs from hammering
// vendor APIs; the pipeline itself never touches it.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/sleepsift/sleepsift-cli/internal/utils"
)

// Cache stores responses under dir with an mtime-based TTL.
type Cache struct {
	dir string
	ttl time.Duration
}

// Stats summarizes the cache directory's contents.
type Stats struct {
	TotalFiles   int
	ValidFiles   int
	ExpiredFiles int
}

// New opens (creating if needed) a cache directory with the given TTL.
func New(dir string, ttlHours int) (*Cache, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: time.Duration(ttlHours) * time.Hour}, nil
}

func (c *Cache) key(deviceID, date string) string {
	sum := md5.Sum([]byte(deviceID + ":" + date))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(deviceID, date string) string {
	return filepath.Join(c.dir, c.key(deviceID, date)+".json")
}

func (c *Cache) valid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < c.ttl
}

// Get returns the cached payload for a device/date combo, or ok=false when
// absent or expired. Read errors behave like a miss.
func (c *Cache) Get(deviceID, date string) ([]byte, bool) {
	path := c.path(deviceID, date)
	if !c.valid(path) {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a payload for a device/date combo.
func (c *Cache) Set(deviceID, date string, data []byte) error {
	return utils.SafeWriteFile(c.path(deviceID, date), data)
}

// ClearExpired removes expired cache files and returns the count removed.
func (c *Cache) ClearExpired() int {
	removed := 0
	for _, path := range c.files() {
		if !c.valid(path) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

// Clear removes every cache file and returns the count removed.
func (c *Cache) Clear() int {
	removed := 0
	for _, path := range c.files() {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

// GetStats reports total, valid, and expired file counts.
func (c *Cache) GetStats() Stats {
	var s Stats
	for _, path := range c.files() {
		s.TotalFiles++
		if c.valid(path) {
			s.ValidFiles++
		} else {
			s.ExpiredFiles++
		}
	}
	return s
}

func (c *Cache) files() []string {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil
	}
	return matches
}
