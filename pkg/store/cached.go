package store

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cached memoizes a Store by path. Within one epoch a path resolves to the
// same *Config (or the same miss); concurrent fetches of one path collapse
// into a single backend call. Invalidate starts a new epoch.
type Cached struct {
	backend Store

	mu      sync.RWMutex
	epoch   uint64
	entries map[string]*Config
	group   singleflight.Group
}

// NewCached wraps backend.
func NewCached(backend Store) *Cached {
	return &Cached{backend: backend, entries: make(map[string]*Config)}
}

// Epoch returns the current cache epoch.
func (c *Cached) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Invalidate drops every cached entry and bumps the epoch.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[string]*Config)
	c.mu.Unlock()
}

func (c *Cached) GetConfig(ctx context.Context, path string) (*Config, error) {
	c.mu.RLock()
	cfg, ok := c.entries[path]
	epoch := c.epoch
	c.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	key := strconv.FormatUint(epoch, 10) + ":" + path
	v, err, _ := c.group.Do(key, func() (any, error) {
		cfg, err := c.backend.GetConfig(ctx, path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return cfg, nil
		}
		if existing, ok := c.entries[path]; ok {
			return existing, nil
		}
		c.entries[path] = cfg
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	cfg, _ = v.(*Config)
	return cfg, nil
}

// ListConfigs delegates to the backend when it can list; results are not
// cached.
func (c *Cached) ListConfigs(ctx context.Context, prefix string) ([]*Config, error) {
	lister, ok := c.backend.(Lister)
	if !ok {
		return nil, nil
	}
	return lister.ListConfigs(ctx, prefix)
}
