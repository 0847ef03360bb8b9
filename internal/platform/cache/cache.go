package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 512
	DefaultTTL  = 2 * time.Minute

	sep = "\x00"
)

type Recorder interface {
	RecordCache(hit bool)
}

type Config struct {
	Size       int
	DefaultTTL time.Duration
	// TTLs sets the stale window per namespace.
	TTLs map[string]time.Duration
}

// Cache is a time-boxed read replica of upstream responses. Each namespace
// is its own expiring LRU; concurrent loads of the same key share one
// upstream call.
type Cache struct {
	cfg     Config
	group   singleflight.Group
	Metrics Recorder

	mu     sync.Mutex
	stores map[string]*expirable.LRU[string, any]
	gens   map[string]uint64
}

func New(cfg Config) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	return &Cache{
		cfg:    cfg,
		stores: map[string]*expirable.LRU[string, any]{},
		gens:   map[string]uint64{},
	}
}

func (c *Cache) store(namespace string) *expirable.LRU[string, any] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[namespace]; ok {
		return s
	}
	ttl := c.cfg.DefaultTTL
	if override, ok := c.cfg.TTLs[namespace]; ok && override > 0 {
		ttl = override
	}
	s := expirable.NewLRU[string, any](c.cfg.Size, nil, ttl)
	c.stores[namespace] = s
	return s
}

func (c *Cache) generation(namespace string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[namespace]
}

func (c *Cache) record(hit bool) {
	if c.Metrics != nil {
		c.Metrics.RecordCache(hit)
	}
}

// Do returns the cached value for (owner, key) or loads it. A load that
// overlaps an Invalidate of its namespace is returned but not stored.
func (c *Cache) Do(ctx context.Context, namespace, owner, key string, load func(context.Context) (any, error)) (any, error) {
	s := c.store(namespace)
	entryKey := owner + sep + key
	if v, ok := s.Get(entryKey); ok {
		c.record(true)
		return v, nil
	}
	c.record(false)
	v, err, _ := c.group.Do(namespace+sep+entryKey, func() (any, error) {
		gen := c.generation(namespace)
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.generation(namespace) == gen {
			s.Add(entryKey, v)
		}
		return v, nil
	})
	return v, err
}

// Invalidate drops key for every owner, or the whole namespace when key is
// empty.
func (c *Cache) Invalidate(namespace, key string) {
	c.mu.Lock()
	c.gens[namespace]++
	s, ok := c.stores[namespace]
	c.mu.Unlock()
	if !ok {
		return
	}
	if key == "" {
		s.Purge()
		return
	}
	for _, k := range s.Keys() {
		if strings.HasSuffix(k, sep+key) {
			s.Remove(k)
		}
	}
}

func (c *Cache) Len(namespace string) int {
	return c.store(namespace).Len()
}
