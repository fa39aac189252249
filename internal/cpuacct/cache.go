package cpuacct

import (
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// Cache is a sharded map from cgroup path to accounting Entry. Sharding by
// key hash lets reads for independent cgroups proceed without contending on
// a single global lock, per the concurrency model's "mutex per cache entry"
// requirement.
type Cache struct {
	shards    [shardCount]*shard
	reapTotal atomic.Int64
}

// NewCache returns an empty cache ready for use.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the Entry for key, creating it if absent.
func (c *Cache) Get(key string) *Entry {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &Entry{}
		s.entries[key] = e
	}
	return e
}

// Sweep removes entries whose backing cgroup directory no longer exists.
// Each key (the same string passed to Get, expected to be an absolute
// cgroup directory path) is checked with os.Stat; only a "does not exist"
// result removes the entry.
func (c *Cache) Sweep() {
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if _, err := os.Stat(key); os.IsNotExist(err) {
				delete(s.entries, key)
				c.reapTotal.Add(1)
			}
		}
		s.mu.Unlock()
	}
}

// ReapedTotal reports the cumulative number of entries Sweep has ever
// removed, for metrics.
func (c *Cache) ReapedTotal() int64 {
	return c.reapTotal.Load()
}

// Len reports the total number of cached entries across all shards, mainly
// for metrics and tests.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// RunSweeper runs Sweep on interval until stop is closed. A sweep happens
// at most every interval, matching the "at most every N seconds" reaping
// rule.
func (c *Cache) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			before := c.Len()
			c.Sweep()
			after := c.Len()
			if before != after {
				logrus.WithField("component", "cpuacct").
					WithFields(logrus.Fields{"reaped": before - after, "remaining": after}).
					Debug("swept stale cpu accounting entries")
			}
		}
	}
}
