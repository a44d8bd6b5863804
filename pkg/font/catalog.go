package font

import (
	"strings"
)

// Variant is a single weight/style combination a family ships.
type Variant struct {
	Weight int    `json:"weight"`
	Style  string `json:"style"`
}

// Definition is a static catalog entry.
type Definition struct {
	Family   string    `json:"family"`
	Category string    `json:"category"`
	Fallback string    `json:"fallback"`
	Axes     []string  `json:"axes"`
	Variants []Variant `json:"variants"`
	System   bool      `json:"system,omitempty"`
}

func weights(style string, ws ...int) []Variant {
	out := make([]Variant, 0, len(ws))
	for _, w := range ws {
		out = append(out, Variant{Weight: w, Style: style})
	}
	return out
}

func both(ws ...int) []Variant {
	return append(weights(StyleNormal, ws...), weights(StyleItalic, ws...)...)
}

const (
	StyleNormal = "normal"
	StyleItalic = "italic"
)

var catalog = []Definition{
	{Family: "Assistant", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"wght"}, Variants: weights(StyleNormal, 200, 300, 400, 500, 600, 700, 800)},
	{Family: "Inter", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"wght"}, Variants: weights(StyleNormal, 100, 200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "Roboto", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 300, 400, 500, 700, 900)},
	{Family: "Open Sans", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(300, 400, 500, 600, 700, 800)},
	{Family: "Lato", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 300, 400, 700, 900)},
	{Family: "Montserrat", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "Poppins", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "Raleway", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "Nunito", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "Work Sans", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(100, 200, 300, 400, 500, 600, 700, 800, 900)},
	{Family: "DM Sans", Category: "sans-serif", Fallback: "sans-serif", Axes: []string{"ital", "wght"}, Variants: both(400, 500, 700)},
	{Family: "Playfair Display", Category: "serif", Fallback: "serif", Axes: []string{"ital", "wght"}, Variants: both(400, 500, 600, 700, 800, 900)},
	{Family: "Lora", Category: "serif", Fallback: "serif", Axes: []string{"ital", "wght"}, Variants: both(400, 500, 600, 700)},
	{Family: "Merriweather", Category: "serif", Fallback: "serif", Axes: []string{"ital", "wght"}, Variants: both(300, 400, 700, 900)},
	{Family: "Libre Baskerville", Category: "serif", Fallback: "serif", Axes: []string{"ital", "wght"}, Variants: append(both(400), Variant{Weight: 700, Style: StyleNormal})},
	{Family: "Space Mono", Category: "monospace", Fallback: "monospace", Axes: []string{"ital", "wght"}, Variants: both(400, 700)},
	{Family: "Arial", Category: "sans-serif", Fallback: "sans-serif", Variants: both(400, 700), System: true},
	{Family: "Helvetica", Category: "sans-serif", Fallback: "sans-serif", Variants: both(300, 400, 700), System: true},
	{Family: "Georgia", Category: "serif", Fallback: "serif", Variants: both(400, 700), System: true},
	{Family: "Times New Roman", Category: "serif", Fallback: "serif", Variants: both(400, 700), System: true},
	{Family: "Courier New", Category: "monospace", Fallback: "monospace", Variants: both(400, 700), System: true},
}

var byKey = func() map[string]*Definition {
	out := make(map[string]*Definition, len(catalog))
	for i := range catalog {
		out[Key(catalog[i].Family)] = &catalog[i]
	}
	return out
}()

// Key normalizes a family name for lookup: lowercase with spaces,
// underscores, and hyphens removed.
func Key(family string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "", "+", "").Replace(strings.ToLower(strings.TrimSpace(family)))
}

// Lookup finds a family in the catalog.
func Lookup(family string) (*Definition, bool) {
	def, ok := byKey[Key(family)]
	return def, ok
}

// Families returns every catalog family in declaration order.
func Families() []string {
	out := make([]string, 0, len(catalog))
	for _, def := range catalog {
		out = append(out, def.Family)
	}
	return out
}

// Closest returns the variant nearest to weight, preferring the requested
// style. Ties resolve to the lighter weight.
func (d *Definition) Closest(weight int, style string) Variant {
	if d == nil || len(d.Variants) == 0 {
		return Variant{Weight: weight, Style: style}
	}
	candidates := make([]Variant, 0, len(d.Variants))
	for _, v := range d.Variants {
		if v.Style == style {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		candidates = d.Variants
	}
	best := candidates[0]
	for _, v := range candidates[1:] {
		dv, db := abs(v.Weight-weight), abs(best.Weight-weight)
		if dv < db || (dv == db && v.Weight < best.Weight) {
			best = v
		}
	}
	return best
}

// Has reports whether the exact variant exists.
func (d *Definition) Has(weight int, style string) bool {
	if d == nil {
		return false
	}
	for _, v := range d.Variants {
		if v.Weight == weight && v.Style == style {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
