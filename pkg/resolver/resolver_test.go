package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
)

func fixtureStore() *store.Memory {
	return store.NewMemoryFromFiles(map[string]string{
		"theme/sections/hero.json":        `{"label": "Hero"}`,
		"theme/sections/hero.liquid":      `<section>{{ section.settings.title }}</section>`,
		"theme/sections/footer.liquid":    `<footer></footer>`,
		"theme/components/price.liquid":   `{{ price | money }}`,
		"theme/templates/product.json":    `{"sections": {}}`,
		"theme/snippets/card.liquid":      `<div class="card"></div>`,
		"theme/layout/theme.liquid":       `{{ content_for_layout }}`,
		"theme/pages/products/index.json": `{"sections": {}}`,
	})
}

func TestResolveOrder(t *testing.T) {
	r := New(fixtureStore())
	ctx := context.Background()

	cases := []struct {
		category store.Category
		name     string
		want     string
	}{
		{store.CategorySections, "hero", "theme/sections/hero.json"},
		{store.CategorySections, "hero.liquid", "theme/sections/hero.liquid"},
		{store.CategorySections, "footer", "theme/sections/footer.liquid"},
		{store.CategoryComponents, "price", "theme/components/price.liquid"},
		{store.CategoryPages, "products/index", "theme/pages/products/index.json"},
	}
	for _, tc := range cases {
		cfg, err := r.Resolve(ctx, tc.category, tc.name)
		if err != nil {
			t.Fatalf("resolve %s: %v", tc.name, err)
		}
		if cfg == nil || cfg.FilePath != tc.want {
			t.Errorf("resolve %s/%s = %+v, want %s", tc.category, tc.name, cfg, tc.want)
		}
	}
}

func TestResolveMissReturnsNil(t *testing.T) {
	r := New(fixtureStore())
	for _, name := range []string{"missing", "products/product", "card", ""} {
		cfg, err := r.Resolve(context.Background(), store.CategoryPages, name)
		if err != nil || cfg != nil {
			t.Fatalf("expected nil, nil for %q, got %+v, %v", name, cfg, err)
		}
	}
}

func TestResolveCompatibilityFallback(t *testing.T) {
	rec := diagnostics.NewMemory()
	r := New(fixtureStore(), WithCompat(compat.New()), WithRecorder(rec))
	ctx := context.Background()

	cases := []struct {
		category store.Category
		name     string
		want     string
	}{
		{store.CategoryPages, "products/product", "theme/templates/product.json"},
		{store.CategoryComponents, "card", "theme/snippets/card.liquid"},
		{store.CategoryLayouts, "theme", "theme/layout/theme.liquid"},
		{store.CategorySections, "hero", "theme/sections/hero.json"},
	}
	for _, tc := range cases {
		cfg, err := r.Resolve(ctx, tc.category, tc.name)
		if err != nil {
			t.Fatalf("resolve %s: %v", tc.name, err)
		}
		if cfg == nil || cfg.FilePath != tc.want {
			t.Errorf("resolve %s/%s = %+v, want %s", tc.category, tc.name, cfg, tc.want)
		}
	}
	if diff := cmp.Diff([]diagnostics.Kind{
		diagnostics.KindCompatibilityFallback,
		diagnostics.KindCompatibilityFallback,
		diagnostics.KindCompatibilityFallback,
	}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}

	cfg, err := r.Resolve(ctx, store.CategoryComponents, "card.json")
	if err != nil || cfg != nil {
		t.Fatalf("explicit extension must not fall back to other extensions, got %+v, %v", cfg, err)
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	r := New(store.StoreFunc(func(context.Context, string) (*store.Config, error) { return nil, boom }))
	if _, err := r.Resolve(context.Background(), store.CategorySections, "hero"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestGetConfigByType(t *testing.T) {
	rec := diagnostics.NewMemory()
	r := New(fixtureStore(), WithRecorder(rec))
	cfg, err := r.GetConfigByType(context.Background(), "section", "footer")
	if err != nil || cfg == nil || cfg.Name != "footer" {
		t.Fatalf("expected footer section, got %+v, %v", cfg, err)
	}

	cases := []struct {
		name string
		typ  string
		file string
	}{
		{"unknown type", "widgets", "x"},
		{"empty type", "", "footer"},
		{"known type, missing file", "pages", "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := r.GetConfigByType(context.Background(), tc.typ, tc.file)
			if err != nil || cfg != nil {
				t.Fatalf("expected a nil miss, got %+v, %v", cfg, err)
			}
		})
	}
	if diff := cmp.Diff([]diagnostics.Kind{diagnostics.KindResourceError, diagnostics.KindResourceError}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidates(t *testing.T) {
	if diff := cmp.Diff([]string{"theme/layouts/theme.json", "theme/layouts/theme.liquid"}, Candidates(store.CategoryLayouts, "theme")); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}
