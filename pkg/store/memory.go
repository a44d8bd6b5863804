package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store keyed by file path.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewMemory creates a Memory store preloaded with configs.
func NewMemory(configs ...*Config) *Memory {
	m := &Memory{configs: make(map[string]*Config, len(configs))}
	for _, cfg := range configs {
		_ = m.Put(cfg)
	}
	return m
}

// NewMemoryFromFiles builds a store from a path -> contents map.
func NewMemoryFromFiles(files map[string]string) *Memory {
	m := NewMemory()
	for p, data := range files {
		_ = m.Put(&Config{FilePath: p, FileData: data})
	}
	return m
}

// Put inserts or replaces a config. Missing ID, Type, and Name are derived
// from the path.
func (m *Memory) Put(cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.FilePath) == "" {
		return fmt.Errorf("store: config file path is required")
	}
	clone := *cfg
	typ, name := Describe(clone.FilePath)
	if clone.Type == "" {
		clone.Type = typ
	}
	if clone.Name == "" {
		clone.Name = name
	}
	if clone.ID == "" {
		clone.ID = clone.FilePath
	}

	m.mu.Lock()
	m.configs[clone.FilePath] = &clone
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetConfig(_ context.Context, path string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configs[path], nil
}

func (m *Memory) ListConfigs(_ context.Context, prefix string) ([]*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Config, 0)
	for p, cfg := range m.configs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}
