package compat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/schema"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

const heroSchema = `{
	"name": "t:sections.hero.name",
	"tag": "section",
	"class": "hero",
	"settings": [
		{"type": "header", "content": "Layout"},
		{"type": "range", "id": "height", "label": "Height", "min": 10, "max": 100, "step": 5, "unit": "%", "default": 50},
		{"type": "font_picker", "id": "heading_font", "label": "Font", "default": "assistant_n4"},
		{"type": "collection_list", "id": "featured", "label": "Featured", "limit": 4},
		{"type": "text_alignment", "id": "align", "label": "Align", "default": "center"},
		{"type": "metaobject", "id": "story", "label": "Story"}
	],
	"blocks": [{"type": "slide", "name": "Slide", "settings": [{"type": "image_picker", "id": "image"}]}],
	"presets": [{"name": "Hero"}],
	"enabled_on": {"templates": ["product", "index"]}
}`

func TestConvertSectionSchema(t *testing.T) {
	translate := func(key string) string {
		if key == "sections.hero.name" {
			return "Hero banner"
		}
		return ""
	}
	got, unsupported, err := ConvertSectionSchema([]byte(heroSchema), translate)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	lo, hi, step := 10.0, 100.0, 5.0
	want := &schema.SectionSchema{
		Label: "Hero banner",
		Tag:   "section",
		Class: "hero",
		Fields: []schema.Field{
			{Type: schema.TypeHeader, Label: "Layout"},
			{ID: "height", Type: schema.TypeNumber, Label: "Height", Min: &lo, Max: &hi, Increment: &step, Unit: "%", Default: 50.0},
			{ID: "heading_font", Type: schema.TypeFontFamily, Label: "Font", Default: "Assistant:wght=400"},
			{ID: "featured", Type: schema.TypeCategoryLookup, Label: "Featured", Multi: true, Limit: 4},
			{ID: "align", Type: schema.TypeSelect, Label: "Align", Default: "center", Options: []schema.Option{
				{Value: "left", Label: "Left"},
				{Value: "center", Label: "Center"},
				{Value: "right", Label: "Right"},
			}},
			{ID: "story"},
		},
		Blocks:    []schema.BlockSchema{{Type: "slide", Label: "Slide", Fields: []schema.Field{{ID: "image", Type: schema.TypeImage}}}},
		Presets:   []schema.Preset{{Label: "Hero"}},
		EnabledOn: &schema.PageFilter{Templates: []string{"products/product", "index"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Unsupported{{Scope: "section", ID: "story", Type: "metaobject"}}, unsupported); diff != "" {
		t.Fatalf("unsupported mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertSectionSchemaIsPure(t *testing.T) {
	first, _, err := ConvertSectionSchema([]byte(heroSchema), nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := ConvertSectionSchema([]byte(heroSchema), nil)
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("conversion not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestSettingTypesCoverForeignCatalog(t *testing.T) {
	if len(SettingTypes) < 25 {
		t.Fatalf("expected the full foreign type table, got %d entries", len(SettingTypes))
	}
	for foreign, mapping := range SettingTypes {
		if mapping.Type == "" {
			t.Errorf("%s maps to an empty type", foreign)
		}
	}
}

func TestAdapterRecordsUnsupportedTypes(t *testing.T) {
	rec := diagnostics.NewMemory()
	a := New(WithRecorder(rec))
	if _, err := a.ConvertSectionSchema(context.Background(), "theme/sections/hero.liquid", []byte(heroSchema), nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	events := rec.Events()
	if len(events) != 1 || events[0].Kind != diagnostics.KindUnsupportedSetting || events[0].Attrs["type"] != "metaobject" {
		t.Fatalf("expected one unsupported event, got %+v", events)
	}
}

func TestConvertSettingsSchemaSkipsThemeInfo(t *testing.T) {
	raw := []byte(`[
		{"name": "theme_info", "theme_name": "Dawn"},
		{"name": "Colors", "settings": [{"type": "color_scheme_group", "id": "color_schemes", "definition": [{"type": "color", "id": "background"}, {"type": "color_background", "id": "gradient"}]}]}
	]`)
	sections, unsupported, err := ConvertSettingsSchema(raw, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(unsupported) != 0 {
		t.Fatalf("unexpected unsupported %+v", unsupported)
	}
	want := []schema.Section{{Label: "Colors", Fields: []schema.Field{{
		ID:   "color_schemes",
		Type: schema.TypeColorSchemeGroup,
		Definition: []schema.Field{
			{ID: "background", Type: schema.TypeColor},
			{ID: "gradient", Type: schema.TypeText},
		},
	}}}}
	if diff := cmp.Diff(want, sections); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestFontHandle(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"assistant_n4", "Assistant:wght=400", true},
		{"open_sans_i7", "Open Sans:wght=700,ital=1", true},
		{"futura_n5", "Montserrat:wght=500", true},
		{"helvetica_n4", "Helvetica:wght=400", true},
		{"unknown_face_n3", "Unknown Face:wght=300", true},
		{"Assistant:wght=400", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := FontHandle(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("FontHandle(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLookupForm(t *testing.T) {
	form, err := LookupForm("product")
	if err != nil || form.Action != "/cart/add" {
		t.Fatalf("expected product form, got %+v, %v", form, err)
	}
	_, err = LookupForm("bogus")
	compatErr, ok := themeerr.AsCompatibilityError(err)
	if !ok || compatErr.Value != "bogus" {
		t.Fatalf("expected CompatibilityError for bogus, got %v", err)
	}
}

func TestPaths(t *testing.T) {
	a := New()
	cases := []struct {
		category store.Category
		name     string
		want     []string
	}{
		{store.CategoryPages, "products/product", []string{"theme/templates/product.json", "theme/templates/product.liquid"}},
		{store.CategoryComponents, "price", []string{"theme/snippets/price.json", "theme/snippets/price.liquid"}},
		{store.CategoryLayouts, "theme", []string{"theme/layout/theme.json", "theme/layout/theme.liquid"}},
		{store.CategorySections, "hero", nil},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, a.Paths(tc.category, tc.name)); diff != "" {
			t.Errorf("%s/%s paths mismatch (-want +got):\n%s", tc.category, tc.name, diff)
		}
	}
	if got := NativePageName("collection"); got != "categories/category" {
		t.Fatalf("expected collection to map to categories/category, got %q", got)
	}
}

func TestLocaleConfigFallbackOrder(t *testing.T) {
	a := New()
	if diff := cmp.Diff([]string{
		"theme/locales/fr-CA.json",
		"theme/locales/fr.json",
		"theme/locales/en.default.json",
	}, a.LocaleFiles("fr-CA")); diff != "" {
		t.Fatalf("locale files mismatch (-want +got):\n%s", diff)
	}

	ctx := context.Background()
	st := store.NewMemoryFromFiles(map[string]string{
		"theme/locales/fr.json":         `{"greeting": "bonjour"}`,
		"theme/locales/en.default.json": `{"greeting": "hello"}`,
		"theme/locales/de.json":         `{broken`,
	})
	if got := a.LocaleConfig(ctx, st, "fr-CA")["greeting"]; got != "bonjour" {
		t.Fatalf("expected short code file, got %v", got)
	}
	if got := a.LocaleConfig(ctx, st, "es-ES")["greeting"]; got != "hello" {
		t.Fatalf("expected default file, got %v", got)
	}
	if got := a.LocaleConfig(ctx, st, "de-DE"); len(got) != 0 {
		t.Fatalf("expected empty tree for malformed file, got %v", got)
	}
}

func TestSchemaTranslator(t *testing.T) {
	a := New()
	st := store.NewMemoryFromFiles(map[string]string{
		"theme/locales/en.default.schema.json": `{"sections": {"hero": {"name": "Hero"}}}`,
	})
	tr := a.SchemaTranslator(context.Background(), st, "en-US")
	if got := tr("sections.hero.name"); got != "Hero" {
		t.Fatalf("expected Hero, got %q", got)
	}
	if got := tr("sections.missing"); got != "" {
		t.Fatalf("expected empty translation, got %q", got)
	}
}

func TestAdaptPageData(t *testing.T) {
	fetcher := resource.NewMemoryFetcher(map[string][]map[string]any{
		"products": {{"id": "p1", "slug": "lamp", "name": "Lamp", "orig_price": 20.0, "stock_status": "in_stock",
			"images": []any{map[string]any{"file": map[string]any{"url": "/img/lamp.png", "width": 800.0}}}}},
	})
	a := New()
	data := map[string]any{
		"product": resource.NewRecord(fetcher, "products", "lamp"),
		"cart": map[string]any{"items": []any{
			map[string]any{"quantity": 2.0, "price_total": 40.0, "product": map[string]any{"name": "Lamp", "slug": "lamp"}},
		}, "grand_total": 40.0},
	}
	out := a.AdaptPageData("products/product", data)

	if fetcher.Calls() != 0 {
		t.Fatalf("adaptation must not fetch")
	}
	lazy, ok := out["product"].(interface {
		Resolve(context.Context) (any, error)
	})
	if !ok {
		t.Fatalf("expected deferred product, got %T", out["product"])
	}
	resolved, err := lazy.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	product := resolved.(map[string]any)
	if product["title"] != "Lamp" || product["handle"] != "lamp" || product["url"] != "/products/lamp" || product["available"] != true {
		t.Fatalf("unexpected product %+v", product)
	}
	image := product["featured_image"].(map[string]any)
	if image["src"] != "/img/lamp.png" {
		t.Fatalf("unexpected featured image %+v", image)
	}

	cart := out["cart"].(map[string]any)
	if cart["item_count"] != 2 || cart["total_price"] != 40.0 {
		t.Fatalf("unexpected cart %+v", cart)
	}
	if _, ok := data["product"].(*resource.Record); !ok {
		t.Fatalf("input data must not be modified")
	}
}

func TestAdaptValueWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	v := AdaptValue("product", resource.NewSingleton("p", func(context.Context) (any, error) { return nil, boom }))
	_, err := v.(interface {
		Resolve(context.Context) (any, error)
	}).Resolve(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestFromSettings(t *testing.T) {
	if FromSettings(map[string]any{}) != nil {
		t.Fatalf("expected nil adapter without flag")
	}
	if FromSettings(map[string]any{SettingFlag: true}) == nil {
		t.Fatalf("expected adapter with flag")
	}
}
