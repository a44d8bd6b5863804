package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		path     string
		wantType string
		wantName string
	}{
		{"theme/sections/header.liquid", "sections", "header"},
		{"theme/locales/en.default.json", "locales", "en.default"},
		{"theme/pages/products/index.json", "pages", "products/index"},
	}
	for _, tc := range cases {
		typ, name := Describe(tc.path)
		if typ != tc.wantType || name != tc.wantName {
			t.Fatalf("Describe(%q) = %q, %q; want %q, %q", tc.path, typ, name, tc.wantType, tc.wantName)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("Section"); !ok || c != CategorySections {
		t.Fatalf("expected sections, got %q %v", c, ok)
	}
	if _, ok := ParseCategory("widgets"); ok {
		t.Fatalf("expected unknown category")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryFromFiles(map[string]string{
		"theme/sections/a.liquid":    "A",
		"theme/sections/b.json":      "{}",
		"theme/layouts/theme.liquid": "L",
	})

	cfg, err := mem.GetConfig(ctx, "theme/sections/a.liquid")
	if err != nil || cfg == nil {
		t.Fatalf("expected config, got %v %v", cfg, err)
	}
	want := &Config{ID: "theme/sections/a.liquid", Type: "sections", Name: "a", FilePath: "theme/sections/a.liquid", FileData: "A"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	miss, err := mem.GetConfig(ctx, "theme/sections/missing.liquid")
	if err != nil || miss != nil {
		t.Fatalf("expected nil, nil on miss; got %v %v", miss, err)
	}

	list, _ := mem.ListConfigs(ctx, "theme/sections/")
	var paths []string
	for _, c := range list {
		paths = append(paths, c.FilePath)
	}
	if diff := cmp.Diff([]string{"theme/sections/a.liquid", "theme/sections/b.json"}, paths); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"theme/layouts/theme.liquid":      {Data: []byte("<html>{{ content_for_layout }}</html>")},
		"theme/config/settings_data.json": {Data: []byte(`{"current":{}}`)},
	}
	s := NewFS(fsys)

	cfg, err := s.GetConfig(ctx, "theme/layouts/theme.liquid")
	if err != nil || cfg == nil {
		t.Fatalf("expected layout, got %v %v", cfg, err)
	}
	if cfg.Type != "layouts" || cfg.Name != "theme" || !cfg.IsLiquid() {
		t.Fatalf("unexpected config %+v", cfg)
	}

	miss, err := s.GetConfig(ctx, "theme/layouts/none.liquid")
	if err != nil || miss != nil {
		t.Fatalf("expected nil, nil on miss; got %v %v", miss, err)
	}

	list, err := s.ListConfigs(ctx, "theme/config/")
	if err != nil || len(list) != 1 || !list[0].IsJSON() {
		t.Fatalf("unexpected list %v %v", list, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Put(ctx, &Config{FilePath: "theme/sections/hero.liquid", FileData: "v1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, &Config{FilePath: "theme/sections/hero.liquid", FileData: "v2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cfg, err := s.GetConfig(ctx, "theme/sections/hero.liquid")
	if err != nil || cfg == nil {
		t.Fatalf("get: %v %v", cfg, err)
	}
	want := &Config{ID: "theme/sections/hero.liquid", Type: "sections", Name: "hero", FilePath: "theme/sections/hero.liquid", FileData: "v2"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	miss, err := s.GetConfig(ctx, "theme/sections/none.liquid")
	if err != nil || miss != nil {
		t.Fatalf("expected nil, nil on miss; got %v %v", miss, err)
	}

	list, err := s.ListConfigs(ctx, "theme/sections/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
}

func TestCachedStoreOneObjectPerEpoch(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	backend := StoreFunc(func(_ context.Context, path string) (*Config, error) {
		calls.Add(1)
		return &Config{FilePath: path, FileData: "x"}, nil
	})
	cached := NewCached(backend)

	var wg sync.WaitGroup
	results := make([]*Config, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := cached.GetConfig(ctx, "theme/sections/a.liquid")
			if err != nil {
				t.Errorf("get: %v", err)
			}
			results[i] = cfg
		}(i)
	}
	wg.Wait()

	for _, cfg := range results[1:] {
		if cfg != results[0] {
			t.Fatalf("expected identical object within one epoch")
		}
	}

	before := calls.Load()
	if _, err := cached.GetConfig(ctx, "theme/sections/a.liquid"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("expected cache hit without backend call")
	}

	cached.Invalidate()
	if cached.Epoch() != 1 {
		t.Fatalf("expected epoch 1, got %d", cached.Epoch())
	}
	fresh, _ := cached.GetConfig(ctx, "theme/sections/a.liquid")
	if fresh == results[0] {
		t.Fatalf("expected a new object after invalidation")
	}
}

func TestCachedStoreCachesMisses(t *testing.T) {
	var calls atomic.Int32
	cached := NewCached(StoreFunc(func(context.Context, string) (*Config, error) {
		calls.Add(1)
		return nil, nil
	}))
	for i := 0; i < 3; i++ {
		cfg, err := cached.GetConfig(context.Background(), "theme/x.json")
		if cfg != nil || err != nil {
			t.Fatalf("expected miss, got %v %v", cfg, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single backend call, got %d", calls.Load())
	}
}
