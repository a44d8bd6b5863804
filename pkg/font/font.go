// Package font resolves font_family setting values against a static catalog
// and renders the font_face, font_modify, and font_url filter outputs.
package font

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultFileBase prefixes self-hosted font file URLs in @font-face rules.
const DefaultFileBase = "/assets/fonts"

const googleCSS = "https://fonts.googleapis.com/css2"

// Value is a resolved font: a catalog family plus the selected variant.
type Value struct {
	Definition *Definition `json:"-"`
	Family     string      `json:"family"`
	Weight     int         `json:"weight"`
	Style      string      `json:"style"`
	Fallback   string      `json:"fallback"`
}

// Parse reads "Family", "Family:wght=700", or "Family:wght=400,ital=1" and
// resolves the closest catalog variant. Unknown families keep the requested
// name with a generic fallback.
func Parse(raw string) (*Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("font: empty value")
	}
	family, axes, _ := strings.Cut(raw, ":")
	weight, style := 400, StyleNormal
	for _, pair := range strings.FieldsFunc(axes, func(r rune) bool { return r == ',' || r == ';' }) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "wght":
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				weight = n
			}
		case "ital":
			if strings.TrimSpace(v) == "1" {
				style = StyleItalic
			}
		}
	}
	return Resolve(strings.ReplaceAll(family, "+", " "), weight, style), nil
}

// Resolve matches family+weight+style against the catalog.
func Resolve(family string, weight int, style string) *Value {
	if style != StyleItalic {
		style = StyleNormal
	}
	def, ok := Lookup(family)
	if !ok {
		return &Value{Family: strings.TrimSpace(family), Weight: weight, Style: style, Fallback: "sans-serif"}
	}
	v := def.Closest(weight, style)
	return &Value{Definition: def, Family: def.Family, Weight: v.Weight, Style: v.Style, Fallback: def.Fallback}
}

// String encodes the value in the setting format.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	ital := 0
	if v.Style == StyleItalic {
		ital = 1
	}
	return fmt.Sprintf("%s:wght=%d,ital=%d", v.Family, v.Weight, ital)
}

// CSSFamily renders the font-family declaration value.
func (v *Value) CSSFamily() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%q, %s", v.Family, v.Fallback)
}

// Modify returns the closest variant after changing weight or style.
// Weight accepts a number, normal, bold, lighter, bolder, +N, or -N.
func (v *Value) Modify(property, value string) (*Value, error) {
	if v == nil {
		return nil, fmt.Errorf("font: nil value")
	}
	value = strings.TrimSpace(strings.ToLower(value))
	weight, style := v.Weight, v.Style
	switch strings.ToLower(property) {
	case "weight":
		switch {
		case value == "normal":
			weight = 400
		case value == "bold":
			weight = 700
		case value == "lighter":
			weight = v.Weight - 100
		case value == "bolder":
			weight = v.Weight + 100
		case strings.HasPrefix(value, "+") || strings.HasPrefix(value, "-"):
			delta, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("font: invalid weight %q", value)
			}
			weight = v.Weight + delta
		default:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("font: invalid weight %q", value)
			}
			weight = n
		}
	case "style":
		switch value {
		case "italic", "oblique":
			style = StyleItalic
		case "normal":
			style = StyleNormal
		default:
			return nil, fmt.Errorf("font: invalid style %q", value)
		}
	default:
		return nil, fmt.Errorf("font: unknown property %q", property)
	}
	if v.Definition == nil {
		return &Value{Family: v.Family, Weight: weight, Style: style, Fallback: v.Fallback}, nil
	}
	variant := v.Definition.Closest(weight, style)
	return &Value{Definition: v.Definition, Family: v.Family, Weight: variant.Weight, Style: variant.Style, Fallback: v.Fallback}, nil
}

// URL returns the Google Fonts css2 stylesheet URL for the variant. System
// fonts have no URL.
func (v *Value) URL() string {
	if v == nil || (v.Definition != nil && v.Definition.System) {
		return ""
	}
	family := v.Family
	spec := fmt.Sprintf("%s:wght@%d", family, v.Weight)
	if v.Style == StyleItalic {
		spec = fmt.Sprintf("%s:ital,wght@1,%d", family, v.Weight)
	}
	q := url.Values{}
	q.Set("family", spec)
	q.Set("display", "swap")
	return googleCSS + "?" + q.Encode()
}

// Face renders an @font-face rule for the variant. System fonts render
// nothing.
func (v *Value) Face(fileBase, display string) string {
	if v == nil || (v.Definition != nil && v.Definition.System) {
		return ""
	}
	if fileBase == "" {
		fileBase = DefaultFileBase
	}
	if display == "" {
		display = "swap"
	}
	slug := strings.ReplaceAll(strings.ToLower(v.Family), " ", "-")
	file := fmt.Sprintf("%s/%s/%d-%s.woff2", strings.TrimSuffix(fileBase, "/"), slug, v.Weight, v.Style)

	var b strings.Builder
	b.WriteString("@font-face {\n")
	fmt.Fprintf(&b, "  font-family: %q;\n", v.Family)
	fmt.Fprintf(&b, "  font-weight: %d;\n", v.Weight)
	fmt.Fprintf(&b, "  font-style: %s;\n", v.Style)
	fmt.Fprintf(&b, "  font-display: %s;\n", display)
	fmt.Fprintf(&b, "  src: url(%q) format(\"woff2\");\n", file)
	b.WriteString("}")
	return b.String()
}

// Get exposes font properties to templates.
func (v *Value) Get(key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch key {
	case "family":
		return v.Family, true
	case "weight":
		return v.Weight, true
	case "style":
		return v.Style, true
	case "fallback_families":
		return v.Fallback, true
	case "system":
		return v.Definition != nil && v.Definition.System, true
	}
	return nil, false
}
