package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
)

const cacheIndexVersion = 1

// parserVersion changes whenever the region tree or the names derived from
// it change shape, so that stale fact rows are not served.
const parserVersion = "cpp-shallow/1"

type cacheEntry struct {
	ContentHash   string `json:"content_hash"`
	FactsPath     string `json:"facts_path"`
	ParserVersion string `json:"parser_version"`
	OptionsHash   string `json:"options_hash"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// factsCache stores the fact rows of each file on disk, keyed by path and
// invalidated by content hash, parser version and parse options.
type factsCache struct {
	dir         string
	optionsHash string
	mu          sync.Mutex
	index       cacheIndex
}

func newFactsCache(dir, optionsHash string) *factsCache {
	return &factsCache{
		dir:         dir,
		optionsHash: optionsHash,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *factsCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *factsCache) factsPathForFile(filePath string) string {
	return filepath.Join(c.dir, "facts", hashString(filePath)+".json")
}

func (c *factsCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *factsCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

func (c *factsCache) Get(filePath, contentHash string) (facts.Tables, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash {
		return facts.Tables{}, false, nil
	}
	if entry.ParserVersion != parserVersion || entry.OptionsHash != c.optionsHash {
		return facts.Tables{}, false, nil
	}

	data, err := os.ReadFile(entry.FactsPath)
	if err != nil {
		return facts.Tables{}, false, fmt.Errorf("read cached facts: %w", err)
	}
	var tables facts.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse cached facts: %w", err)
	}
	return facts.Normalize(tables), true, nil
}

func (c *factsCache) Put(filePath, contentHash string, tables facts.Tables) error {
	factsPath := c.factsPathForFile(filePath)
	if err := writeJSONAtomic(factsPath, tables); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:   contentHash,
		FactsPath:     factsPath,
		ParserVersion: parserVersion,
		OptionsHash:   c.optionsHash,
	}
	c.mu.Unlock()
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// hashString is the content hash used for cache keys and for sharing the
// parse of identical files.
func hashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}
