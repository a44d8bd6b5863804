package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/locale"
	"github.com/goliatone/go-storefront/pkg/resolver"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/settings"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

const headerGroup = `{"sections": {"top": {"type": "hero", "settings": {"title": "Hi"}}}, "order": ["top"]}`

func fixtureFiles() map[string]string {
	return map[string]string{
		"theme/components/card.liquid": `[{{ card.title }}|{{ forloop.index }}|{{ secret }}|{{ extra }}|{{ shop }}]`,
		"theme/components/tile.liquid": `{{ item.title }}`,
		"theme/sections/hero.json":     `{"label": "Hero", "fields": [{"id": "title", "type": "text", "default": "Default"}]}`,
		"theme/sections/hero.liquid":   `<h1>{{ section.settings.title }}</h1>`,
		"theme/sections/header.json":   headerGroup,
		"theme/sections/broken.json":   `{"sections": `,
	}
}

// newEngine wires an engine and its section assembler the way a theme does.
func newEngine(t *testing.T, files map[string]string, opts ...Option) (*Engine, *diagnostics.Memory) {
	t.Helper()
	rec := diagnostics.NewMemory()
	res := resolver.New(store.NewMemoryFromFiles(files))
	e := New(res, append([]Option{WithRecorder(rec), WithGlobals(map[string]any{"shop": "Shop"})}, opts...)...)
	e.SetAssembler(sections.NewAssembler(res, settings.New(nil), e, sections.WithRecorder(rec)))
	return e, rec
}

func render(t *testing.T, e *Engine, src string, data map[string]any) string {
	t.Helper()
	out, err := e.RenderE(context.Background(), src, data)
	if err != nil {
		t.Fatalf("render %q: %v", src, err)
	}
	return out
}

func TestRenderPartials(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles())
	items := []any{map[string]any{"title": "A"}, map[string]any{"title": "B"}}
	cases := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{
			name: "render for keeps forloop and isolates scope",
			src:  `{% render 'card' for items, extra: 'x' %}`,
			data: map[string]any{"items": items, "secret": "s"},
			want: "[A|1||x|Shop][B|2||x|Shop]",
		},
		{
			name: "render for over plain object",
			src:  `{% render 'card' for cards %}`,
			data: map[string]any{"cards": map[string]any{"b": map[string]any{"title": "B"}, "a": map[string]any{"title": "A"}}},
			want: "[A|1|||Shop][B|2|||Shop]",
		},
		{
			name: "render with alias",
			src:  `{% render 'tile' with product as item %}`,
			data: map[string]any{"product": map[string]any{"title": "Hat"}},
			want: "Hat",
		},
		{
			name: "include sees the ambient scope",
			src:  `{% include 'card', card: product %}`,
			data: map[string]any{"product": map[string]any{"title": "Hat"}, "secret": "s"},
			want: "[Hat||s||Shop]",
		},
		{
			name: "include pops its scope",
			src:  `{% include 'card', extra: 'x' %}{{ extra }}`,
			want: "[|||x|Shop]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, render(t, e, tc.src, tc.data)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMissingComponentDegrades(t *testing.T) {
	e, rec := newEngine(t, fixtureFiles())
	if got := render(t, e, `a{% render 'ghost' %}b`, nil); got != "ab" {
		t.Fatalf("unexpected output %q", got)
	}
	if diff := cmp.Diff([]diagnostics.Kind{diagnostics.KindRenderError}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestThemeTags(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles())
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"javascript", `{% javascript %}run(){% endjavascript %}`, `<script data-swell>run()</script>`},
		{"style", `{% style %}a{}{% endstyle %}`, `<style data-swell>a{}</style>`},
		{
			"form",
			`{% form 'contact', class: 'c', return_to: '/thanks' %}{{ form.id }}{% endform %}`,
			`<form action="/contact" method="post" accept-charset="UTF-8" class="c"><input type="hidden" name="form_type" value="contact"><input type="hidden" name="return_to" value="/thanks">contact</form>`,
		},
		{"section", `{% section 'hero' %}`, `<div id="swell-section-hero" class="swell-section"><h1>Default</h1></div>`},
		{"schema is not rendered", `a{% schema %}{"label": "{{ x }}"}{% endschema %}b`, "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, render(t, e, tc.src, nil)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderConfigResult(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles())
	ctx := context.Background()
	cases := []struct {
		name string
		src  string
		want liquidResult
	}{
		{"layout name", `{% layout 'checkout' %}x`, liquidResult{Output: "x", Layout: "checkout", LayoutSet: true}},
		{"layout none", `{% layout none %}x`, liquidResult{Output: "x", LayoutSet: true}},
		{"no layout tag", `x`, liquidResult{Output: "x"}},
		{"schema captured", `x{% schema %} {"label": "A"} {% endschema %}`, liquidResult{Output: "x", Schema: ` {"label": "A"} `, HasSchema: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.RenderConfig(ctx, &store.Config{FilePath: "theme/pages/x.liquid", FileData: tc.src}, nil)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			got := liquidResult{Output: res.Output, Layout: res.Layout, LayoutSet: res.LayoutSet, Schema: res.Schema, HasSchema: res.HasSchema}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type liquidResult struct {
	Output    string
	Layout    string
	LayoutSet bool
	Schema    string
	HasSchema bool
}

func TestUnknownFormIsFatal(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles())
	_, err := e.RenderE(context.Background(), `{% if true %}{% form 'teleport' %}{% endform %}{% endif %}`, nil)
	cerr, ok := themeerr.AsCompatibilityError(err)
	if !ok || cerr.Value != "teleport" {
		t.Fatalf("expected CompatibilityError, got %v", err)
	}
	if !themeerr.IsFatal(err) {
		t.Fatalf("unknown forms must be fatal")
	}
}

func TestRenderDegradesToComment(t *testing.T) {
	e, rec := newEngine(t, fixtureFiles())
	out := e.Render(context.Background(), `{{ 1 | divided_by: 0 }}`, nil)
	if !strings.HasPrefix(out, "<!-- render error: ") {
		t.Fatalf("expected comment, got %q", out)
	}
	if diff := cmp.Diff([]diagnostics.Kind{diagnostics.KindRenderError}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}

	_, err := e.RenderE(context.Background(), "a\n{{ 1 | divided_by: 0 }}", nil)
	rerr, ok := themeerr.AsRenderError(err)
	if !ok || rerr.Line != 2 {
		t.Fatalf("expected RenderError on line 2, got %#v", err)
	}
}

func TestCaseEditorSpan(t *testing.T) {
	src := `{% case block.type %}{% when 'a', 'b' %}AB{% else %}other{% endcase %}`
	cases := []struct {
		name   string
		editor bool
		block  string
		want   string
	}{
		{"plain match", false, "b", "AB"},
		{"plain else", false, "z", "other"},
		{"editor match", true, "a", `<span class="swell-block">AB</span>`},
		{"editor else", true, "z", `<span class="swell-block">other</span>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newEngine(t, fixtureFiles(), WithEditorMode(tc.editor))
			got := render(t, e, src, map[string]any{"block": map[string]any{"type": tc.block}})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	e, _ := newEngine(t, fixtureFiles(), WithEditorMode(true))
	unmatched := []struct {
		src  string
		data map[string]any
	}{
		{`{% case x %}{% when 1 %}one{% endcase %}`, map[string]any{"x": 2}},
		{`{% case block.type %}{% when 'y' %}Y{% endcase %}`, map[string]any{"block": map[string]any{"type": "x"}}},
	}
	for _, tc := range unmatched {
		if got := render(t, e, tc.src, tc.data); got != "" {
			t.Fatalf("unmatched case without else must be empty, got %q for %s", got, tc.src)
		}
	}
}

func TestSectionsTag(t *testing.T) {
	ctx := context.Background()
	layout := &store.Config{FilePath: "theme/layouts/theme.liquid", FileData: `<body>{% sections 'header' %}{{ content }}</body>`}

	e, _ := newEngine(t, fixtureFiles())
	res, err := e.RenderConfig(ctx, layout, map[string]any{"content": "page"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	id, class := GroupWrapper(false, headerGroup, "header")
	want := `<body><div id="` + id + `" class="` + class + `"><div id="swell-section-top" class="swell-section"><h1>Hi</h1></div></div>page</body>`
	if diff := cmp.Diff(want, res.Output); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(id, "swell-section-group--") || !strings.HasSuffix(id, "__header") {
		t.Fatalf("unexpected group id %q", id)
	}

	compatID, _ := GroupWrapper(true, headerGroup, "header")
	if !strings.HasPrefix(compatID, "shopify-section-sections--") {
		t.Fatalf("unexpected compat id %q", compatID)
	}

	if _, err := e.RenderConfig(ctx, &store.Config{FilePath: "theme/pages/index.liquid", FileData: `{% sections 'header' %}`}, nil); err == nil {
		t.Fatalf("sections outside a layout must fail")
	}
}

func TestSectionsTagMalformedGroup(t *testing.T) {
	e, rec := newEngine(t, fixtureFiles())
	res, err := e.RenderConfig(context.Background(), &store.Config{FilePath: "theme/layouts/broken.liquid", FileData: `<body>{% sections 'broken' %}</body>`}, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Output != "<body></body>" {
		t.Fatalf("malformed group must render empty, got %q", res.Output)
	}
	if diff := cmp.Diff([]diagnostics.Kind{diagnostics.KindConfigParseError}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionsTagCompatWrapper(t *testing.T) {
	rec := diagnostics.NewMemory()
	res := resolver.New(store.NewMemoryFromFiles(fixtureFiles()), resolver.WithCompat(compat.New()))
	e := New(res, WithRecorder(rec))
	e.SetAssembler(sections.NewAssembler(res, settings.New(nil), e, sections.WithCompat(compat.New())))
	out, err := e.RenderConfig(context.Background(), &store.Config{FilePath: "theme/layout/theme.liquid", FileData: `{% sections 'header' %}`}, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	id, _ := GroupWrapper(true, headerGroup, "header")
	if !strings.HasPrefix(out.Output, `<div id="`+id+`"`) || !strings.Contains(out.Output, `id="shopify-section-top"`) {
		t.Fatalf("unexpected compat output %q", out.Output)
	}
}

func TestPaginate(t *testing.T) {
	fetcher := resource.NewMemoryFetcher(map[string][]map[string]any{
		"products": {{"id": "p1"}, {"id": "p2"}, {"id": "p3"}, {"id": "p4"}, {"id": "p5"}},
	})
	products := resource.NewCollection(fetcher, "products", resource.ListQuery{})
	e, _ := newEngine(t, fixtureFiles(), WithGlobals(map[string]any{
		"request": map[string]any{"page": 2, "path": "/products"},
	}))
	got := render(t, e, `{% paginate products by 2 %}{% for p in products %}{{ p.id }}{% endfor %}|{{ paginate.pages }}|{{ paginate | default_pagination }}{% endpaginate %}`,
		map[string]any{"products": products})
	want := `p3p4|3|` +
		`<span class="prev"><a href="/products?page=1">&laquo; Previous</a></span> ` +
		`<span class="page"><a href="/products?page=1">1</a></span> ` +
		`<span class="page current">2</span> ` +
		`<span class="page"><a href="/products?page=3">3</a></span> ` +
		`<span class="next"><a href="/products?page=3">Next &raquo;</a></span>`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if products.Limit() != 2 {
		t.Fatalf("collection must be refetched with the page size, limit %d", products.Limit())
	}
}

func TestTranslateFilter(t *testing.T) {
	e, rec := newEngine(t, fixtureFiles())
	tree := map[string]any{
		"cart": map[string]any{
			"title":   "Cart",
			"$locale": map[string]any{"fr": map[string]any{"title": "Panier"}},
		},
		"items": map[string]any{"one": "{{ count }} article", "other": "{{ count }} articles"},
	}
	e.SetLocale(locale.New(tree, "fr-FR", locale.WithRenderer(e), locale.WithRecorder(rec)))
	cases := []struct {
		src  string
		want string
	}{
		{`{{ 'cart.title' | t }}`, "Panier"},
		{`{{ 'items' | t: count: 1 }}`, "1 article"},
		{`{{ 'items' | translate: count: 3 }}`, "3 articles"},
		{`{{ 'nope' | t }}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, render(t, e, tc.src, nil)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if diff := cmp.Diff([]diagnostics.Kind{diagnostics.KindMissingTranslation}, rec.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestNestingIsBounded(t *testing.T) {
	files := fixtureFiles()
	files["theme/components/loop.liquid"] = `{% render 'loop' %}`
	e, _ := newEngine(t, files)
	_, err := e.RenderE(context.Background(), `{% render 'loop' %}`, nil)
	if err == nil || !strings.Contains(err.Error(), "nesting deeper") {
		t.Fatalf("expected nesting error, got %v", err)
	}
}
