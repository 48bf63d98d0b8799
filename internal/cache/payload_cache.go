// Package cache keeps recent provider responses on disk so that repeating a
// search within MaxAge does not hit the provider again.
//
// Each response is stored snappy-compressed under a name derived from the
// query string and the write time:
//
//	cad_<query hash>_<unix seconds>.json.sz
//
// Only successful responses are ever written.
package cache

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	atomicfile "github.com/natefinch/atomic"
	"github.com/spaolacci/murmur3"

	"github.com/star/closeapproach/internal/metrics"
)

const (
	filePrefix = "cad_"
	fileSuffix = ".json.sz"
)

// Config holds payload cache settings.
type Config struct {
	Dir      string        // Directory for cache files.
	MaxFiles int           // Files kept per query (default: 3).
	MaxAge   time.Duration // Entries older than this are ignored and pruned; 0 disables the cache.
}

// PayloadCache stores raw provider responses on disk.
type PayloadCache struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// New creates a PayloadCache. It returns nil when cfg.MaxAge is not positive.
func New(cfg Config, logger *slog.Logger) *PayloadCache {
	if cfg.MaxAge <= 0 {
		return nil
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 3
	}
	logger.Info("payload cache initialized",
		"dir", cfg.Dir,
		"max_files", cfg.MaxFiles,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)
	return &PayloadCache{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the newest stored response for query if it is younger than
// MaxAge.
func (c *PayloadCache) Get(query string) ([]byte, time.Time, bool) {
	files, err := c.listFiles(keyFor(query))
	if err != nil || len(files) == 0 {
		c.miss()
		return nil, time.Time{}, false
	}

	latest := files[len(files)-1]
	if c.now().Sub(latest.ts) > c.config.MaxAge {
		c.miss()
		return nil, time.Time{}, false
	}

	compressed, err := os.ReadFile(filepath.Join(c.config.Dir, latest.name))
	if err != nil {
		c.logger.Warn("reading cache file", "file", latest.name, "error", err)
		c.miss()
		return nil, time.Time{}, false
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		c.logger.Warn("corrupt cache file", "file", latest.name, "error", err)
		c.miss()
		return nil, time.Time{}, false
	}

	c.hits.Add(1)
	metrics.IncCacheHit()
	return data, latest.ts, true
}

// Put stores data for query and prunes older files.
func (c *PayloadCache) Put(query string, data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.config.Dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	key := keyFor(query)
	name := fmt.Sprintf("%s%s_%d%s", filePrefix, key, ts.Unix(), fileSuffix)
	if err := atomicfile.WriteFile(filepath.Join(c.config.Dir, name), bytes.NewReader(snappy.Encode(nil, data))); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(key)
}

// Stats returns hit and miss counts since creation.
func (c *PayloadCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *PayloadCache) miss() {
	c.misses.Add(1)
	metrics.IncCacheMiss()
}

// keyFor hashes a query string into a file-name-safe key.
func keyFor(query string) string {
	return strconv.FormatUint(murmur3.Sum64([]byte(query)), 16)
}

type cacheFile struct {
	name string
	key  string
	ts   time.Time
}

// listFiles returns cache files for key, or all files when key is empty,
// oldest first.
func (c *PayloadCache) listFiles(key string) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, ok := parseName(e.Name())
		if !ok || (key != "" && f.key != key) {
			continue
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func parseName(name string) (cacheFile, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return cacheFile{}, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	key, tsStr, ok := strings.Cut(rest, "_")
	if !ok || key == "" {
		return cacheFile{}, false
	}
	unix, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return cacheFile{}, false
	}
	return cacheFile{name: name, key: key, ts: time.Unix(unix, 0)}, true
}

// prune keeps the newest MaxFiles files for key and removes any file older
// than MaxAge.
func (c *PayloadCache) prune(key string) error {
	files, err := c.listFiles("")
	if err != nil {
		return err
	}

	cutoff := c.now().Add(-c.config.MaxAge)
	var forKey []cacheFile
	for _, f := range files {
		if f.ts.Before(cutoff) {
			if err := c.remove(f); err != nil {
				return err
			}
			continue
		}
		if f.key == key {
			forKey = append(forKey, f)
		}
	}

	if len(forKey) <= c.config.MaxFiles {
		return nil
	}
	for _, f := range forKey[:len(forKey)-c.config.MaxFiles] {
		if err := c.remove(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *PayloadCache) remove(f cacheFile) error {
	if err := os.Remove(filepath.Join(c.config.Dir, f.name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pruning cache file %s: %w", f.name, err)
	}
	return nil
}
