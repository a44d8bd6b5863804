package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-storefront/pkg/color"
	"github.com/goliatone/go-storefront/pkg/money"
)

func TestFilters(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles(), WithMoney(money.MustNew("USD", "en-US")))
	data := map[string]any{
		"accent":  color.MustParse("#336699"),
		"created": time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC),
		"image":   map[string]any{"file": map[string]any{"url": "/img/a.jpg"}, "alt": "Alt"},
	}
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"color darken", `{{ '#EA5AB9' | color_darken: 30 }}`, "#98136b"},
		{"color darken zero round trips", `{{ '#EA5AB9' | color_darken: 0 }}`, "#ea5ab9"},
		{"color value input", `{{ accent | color_to_rgb }}`, "rgb(51, 102, 153)"},
		{"color mix rounds half channels up", `{{ '#7ab55c' | color_mix: '#ffc0cb', 50 }}`, "#bdbb94"},
		{"color to hsl", `{{ '#ff0000' | color_to_hsl }}`, "hsl(0, 100%, 50%)"},
		{"color extract", `{{ accent | color_extract: 'red' }}`, "51"},
		{"color contrast", `{{ '#000000' | color_contrast: '#ffffff' }}`, "21"},
		{"color brightness", `{{ '#ffffff' | color_brightness }}`, "255"},
		{"color difference", `{{ '#000000' | color_difference: '#ffffff' }}`, "765"},
		{"not a color passes through", `{{ 'nope' | color_lighten: 10 }}`, "nope"},

		{"date strftime", `{{ '2024-03-05' | date: '%Y/%m/%d' }}`, "2024/03/05"},
		{"date named", `{{ created | date: 'abbreviated_date' }}`, "Mar 05, 2024"},
		{"date keyword format", `{{ created | date: format: 'date' }}`, "March 05, 2024"},
		{"date time", `{{ created | date: 'time' }}`, "14:30"},
		{"date passes through", `{{ 'soon' | date: '%Y' }}`, "soon"},

		{"money", `{{ 1234.5 | money }}`, "$1,234.50"},
		{"money with currency", `{{ 19.99 | money_with_currency }}`, "$19.99 USD"},
		{"money without currency", `{{ 1234.5 | money_without_currency }}`, "1,234.50"},
		{"money without trailing zeros", `{{ 1200 | money_without_trailing_zeros }}`, "$1,200"},

		{"image url", `{{ image | image_url: width: 300 }}`, "/img/a.jpg?width=300"},
		{"img url size", `{{ '/img/a.jpg' | img_url: '300x200' }}`, "/img/a.jpg?height=200&width=300"},
		{"img url master", `{{ '/img/a.jpg' | img_url: 'master' }}`, "/img/a.jpg"},
		{
			"image tag",
			`{{ image | image_tag: width: 400 }}`,
			`<img src="/img/a.jpg?width=800" srcset="/img/a.jpg?width=800 800w, /img/a.jpg?width=640 640w, /img/a.jpg?width=512 512w, /img/a.jpg?width=410 410w, /img/a.jpg?width=328 328w, /img/a.jpg?width=262 262w" alt="Alt" width="400" loading="lazy">`,
		},
		{"image tag without width", `{{ '/img/a.jpg' | image_tag: alt: 'A', loading: 'eager' }}`, `<img src="/img/a.jpg" alt="A" loading="eager">`},

		{"asset url", `{{ 'theme.css' | asset_url }}`, "/assets/theme.css"},
		{"absolute asset url", `{{ 'https://cdn.example.com/a.js' | asset_url }}`, "https://cdn.example.com/a.js"},
		{"stylesheet tag", `{{ 'theme.css' | asset_url | stylesheet_tag }}`, `<link href="/assets/theme.css" rel="stylesheet" type="text/css" media="all">`},
		{"script tag", `{{ 'app.js' | asset_url | script_tag }}`, `<script src="/assets/app.js" type="text/javascript"></script>`},
		{"translate without locale", `{{ 'cart.title' | t }}`, "cart.title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, render(t, e, tc.src, data)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFontFilters(t *testing.T) {
	e, _ := newEngine(t, fixtureFiles(), WithFontBase("/fonts"))
	face := render(t, e, `{{ 'Inter:wght=700' | font_face: font_display: 'block' }}`, nil)
	for _, fragment := range []string{`font-family: "Inter";`, "font-weight: 700;", "font-display: block;", `url("/fonts/inter/700-normal.woff2")`} {
		if !strings.Contains(face, fragment) {
			t.Fatalf("expected %q in\n%s", fragment, face)
		}
	}
	if got := render(t, e, `{{ 'Inter' | font_modify: 'weight', '700' | font_url }}`, nil); !strings.Contains(got, "Inter%3Awght%40700") {
		t.Fatalf("unexpected font url %q", got)
	}
	if got := render(t, e, `{{ 'Georgia' | font_url }}`, nil); got != "" {
		t.Fatalf("system fonts have no url, got %q", got)
	}
}

func TestPagination(t *testing.T) {
	got := Pagination(1, 10, 25, "/c")
	if got["pages"] != 3 || got["previous"] != nil || got["current_offset"] != 0 {
		t.Fatalf("unexpected first page %+v", got)
	}
	next := got["next"].(map[string]any)
	if next["url"] != "/c?page=2" {
		t.Fatalf("unexpected next link %+v", next)
	}
	last := Pagination(3, 10, 25, "/c")
	if last["next"] != nil || last["current_offset"] != 20 {
		t.Fatalf("unexpected last page %+v", last)
	}
}
