package resume

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Cache holds the last observed position per video on the viewing device.
type Cache interface {
	Get(videoID string) (seconds int, ok bool, err error)
	Set(videoID string, seconds int) error
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]int)}
}

func (c *MemoryCache) Get(videoID string) (int, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[videoID]
	return s, ok, nil
}

func (c *MemoryCache) Set(videoID string, seconds int) error {
	c.mu.Lock()
	c.entries[videoID] = seconds
	c.mu.Unlock()
	return nil
}

// BadgerCache persists positions across process restarts.
type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache opens a cache at dir. An empty dir keeps everything in memory.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// CacheKeyPrefix namespaces cached positions, one entry per video id.
const CacheKeyPrefix = "video_resume_"

func cacheKey(videoID string) []byte {
	return []byte(CacheKeyPrefix + videoID)
}

func (c *BadgerCache) Get(videoID string) (int, bool, error) {
	var seconds int
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(videoID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n, err := strconv.Atoi(string(val))
			if err != nil {
				return err
			}
			seconds = n
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read cached position: %w", err)
	}
	return seconds, true, nil
}

func (c *BadgerCache) Set(videoID string, seconds int) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(videoID), []byte(strconv.Itoa(seconds)))
	})
	if err != nil {
		return fmt.Errorf("write cached position: %w", err)
	}
	return nil
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
