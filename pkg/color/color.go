// Package color implements the structured color value used by theme settings
// and the color_* template filters. Values are immutable; every operation
// returns a new Color so filters compose.
package color

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an sRGB color with alpha in [0..1].
type Color struct {
	rgb   colorful.Color
	alpha float64
}

// Black is returned when a setting value cannot be parsed.
var Black = Color{rgb: colorful.Color{}, alpha: 1}

var named = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"navy":    "#000080",
	"teal":    "#008080",
	"maroon":  "#800000",
	"olive":   "#808000",
	"lime":    "#00ff00",
	"aqua":    "#00ffff",
	"fuchsia": "#ff00ff",
	"pink":    "#ffc0cb",
}

// Parse reads #rgb, #rrggbb, #rrggbbaa, rgb()/rgba(), hsl()/hsla(), a basic
// color name, or "transparent".
func Parse(raw string) (Color, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Color{}, fmt.Errorf("color: empty value")
	}
	if s == "transparent" {
		return Color{alpha: 0}, nil
	}
	if hex, ok := named[s]; ok {
		s = hex
	}

	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgb"):
		return parseFunc(s, "rgb", func(v []float64) Color {
			return Color{rgb: colorful.Color{R: v[0] / 255, G: v[1] / 255, B: v[2] / 255}}
		})
	case strings.HasPrefix(s, "hsl"):
		return parseFunc(s, "hsl", func(v []float64) Color {
			return Color{rgb: colorful.Hsl(normalizeHue(v[0]), v[1]/100, v[2]/100)}
		})
	}
	return Color{}, fmt.Errorf("color: unrecognized value %q", raw)
}

// ParseOrBlack parses raw, degrading to opaque black on failure.
func ParseOrBlack(raw string) Color {
	c, err := Parse(raw)
	if err != nil {
		return Black
	}
	return c
}

// MustParse panics when raw is not a color.
func MustParse(raw string) Color {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func parseHex(s string) (Color, error) {
	alpha := 1.0
	switch len(s) {
	case 4, 7:
	case 5:
		a, err := strconv.ParseUint(s[4:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color: invalid hex %q", s)
		}
		alpha = float64(a) / 15
		s = s[:4]
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color: invalid hex %q", s)
		}
		alpha = float64(a) / 255
		s = s[:7]
	default:
		return Color{}, fmt.Errorf("color: invalid hex %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("color: invalid hex %q: %w", s, err)
	}
	return Color{rgb: c, alpha: alpha}, nil
}

func parseFunc(s, prefix string, build func([]float64) Color) (Color, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Color{}, fmt.Errorf("color: malformed %s value %q", prefix, s)
	}
	body := s[open+1 : len(s)-1]
	body = strings.NewReplacer("/", ",", " ", ",").Replace(body)
	var parts []string
	for _, p := range strings.Split(body, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("color: malformed %s value %q", prefix, s)
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		pct := strings.HasSuffix(p, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(p, "%"), "deg"), 64)
		if err != nil {
			return Color{}, fmt.Errorf("color: malformed %s value %q", prefix, s)
		}
		if i == 3 && pct {
			v /= 100
		}
		if prefix == "rgb" && i < 3 && pct {
			v = v * 255 / 100
		}
		values[i] = v
	}
	c := build(values)
	c.alpha = 1
	if len(values) == 4 {
		c.alpha = clamp(values[3], 0, 1)
	}
	c.rgb = c.rgb.Clamped()
	return c, nil
}

// FromRGBA builds a color from 0..255 channels and an alpha in [0..1].
func FromRGBA(r, g, b uint8, alpha float64) Color {
	return Color{
		rgb:   colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255},
		alpha: clamp(alpha, 0, 1),
	}
}

// FromHSL builds a color from hue [0..360], saturation and lightness [0..100].
func FromHSL(h, s, l, alpha float64) Color {
	return Color{
		rgb:   colorful.Hsl(normalizeHue(h), clamp(s, 0, 100)/100, clamp(l, 0, 100)/100).Clamped(),
		alpha: clamp(alpha, 0, 1),
	}
}

// RGB255 returns the rounded 0..255 channels.
func (c Color) RGB255() (r, g, b uint8) {
	cl := c.rgb.Clamped()
	return uint8(cl.R*255 + 0.5), uint8(cl.G*255 + 0.5), uint8(cl.B*255 + 0.5)
}

// HSL returns hue [0..360] with saturation and lightness as percentages.
func (c Color) HSL() (h, s, l float64) {
	h, s, l = c.rgb.Clamped().Hsl()
	return h, s * 100, l * 100
}

// Alpha returns the alpha channel in [0..1].
func (c Color) Alpha() float64 { return c.alpha }

// Hex returns #rrggbb, ignoring alpha.
func (c Color) Hex() string {
	return c.rgb.Clamped().Hex()
}

// RGB returns rgb(r, g, b), or rgba(r, g, b, a) when translucent.
func (c Color) RGB() string {
	r, g, b := c.RGB255()
	if c.alpha < 1 {
		return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, formatFloat(c.alpha, 2))
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
}

// HSLString returns hsl(h, s%, l%), or hsla(...) when translucent.
func (c Color) HSLString() string {
	h, s, l := c.HSL()
	hs, ss, ls := math.Round(h), math.Round(s), math.Round(l)
	if c.alpha < 1 {
		return fmt.Sprintf("hsla(%d, %d%%, %d%%, %s)", int(hs), int(ss), int(ls), formatFloat(c.alpha, 2))
	}
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", int(hs), int(ss), int(ls))
}

// String renders opaque colors as hex and translucent ones as rgba().
func (c Color) String() string {
	if c.alpha < 1 {
		return c.RGB()
	}
	return c.Hex()
}

// MarshalJSON encodes the color as its String form.
func (c Color) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// Lighten raises HSL lightness by amount percentage points.
func (c Color) Lighten(amount float64) Color {
	return c.adjustHSL(0, 0, amount)
}

// Darken lowers HSL lightness by amount percentage points.
func (c Color) Darken(amount float64) Color {
	return c.adjustHSL(0, 0, -amount)
}

// Saturate raises HSL saturation by amount percentage points.
func (c Color) Saturate(amount float64) Color {
	return c.adjustHSL(0, amount, 0)
}

// Desaturate lowers HSL saturation by amount percentage points.
func (c Color) Desaturate(amount float64) Color {
	return c.adjustHSL(0, -amount, 0)
}

func (c Color) adjustHSL(dh, ds, dl float64) Color {
	h, s, l := c.HSL()
	return FromHSL(h+dh, s+ds, l+dl, c.alpha)
}

// Mix blends c with other; weight is the percentage [0..100] of c.
func (c Color) Mix(other Color, weight float64) Color {
	w := clamp(weight, 0, 100) / 100
	r1, g1, b1 := c.RGB255()
	r2, g2, b2 := other.RGB255()
	blend := func(a, b uint8) uint8 {
		return uint8(math.Floor(float64(a)*w + float64(b)*(1-w) + 0.5))
	}
	return FromRGBA(blend(r1, r2), blend(g1, g2), blend(b1, b2), other.alpha+(c.alpha-other.alpha)*w)
}

// Brightness is the perceived brightness in [0..255].
func (c Color) Brightness() float64 {
	r, g, b := c.RGB255()
	v := (float64(r)*299 + float64(g)*587 + float64(b)*114) / 1000
	return math.Round(v*10) / 10
}

// Contrast is the WCAG contrast ratio between c and other, one decimal.
func (c Color) Contrast(other Color) float64 {
	l1, l2 := c.luminance(), other.luminance()
	if l2 > l1 {
		l1, l2 = l2, l1
	}
	ratio := (l1 + 0.05) / (l2 + 0.05)
	return math.Round(ratio*10) / 10
}

// Difference is the summed per-channel difference between c and other.
func (c Color) Difference(other Color) int {
	r1, g1, b1 := c.RGB255()
	r2, g2, b2 := other.RGB255()
	return absDiff(r1, r2) + absDiff(g1, g2) + absDiff(b1, b2)
}

func (c Color) luminance() float64 {
	r, g, b := c.rgb.Clamped().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Extract returns a single component: red, green, blue, alpha, hue,
// saturation, or lightness.
func (c Color) Extract(field string) (float64, error) {
	r, g, b := c.RGB255()
	h, s, l := c.HSL()
	switch strings.ToLower(field) {
	case "red":
		return float64(r), nil
	case "green":
		return float64(g), nil
	case "blue":
		return float64(b), nil
	case "alpha":
		return c.alpha, nil
	case "hue":
		return math.Round(h), nil
	case "saturation":
		return math.Round(s), nil
	case "lightness":
		return math.Round(l), nil
	}
	return 0, fmt.Errorf("color: unknown field %q", field)
}

// Modify replaces a single component with value.
func (c Color) Modify(field string, value float64) (Color, error) {
	r, g, b := c.RGB255()
	h, s, l := c.HSL()
	clampByte := func(v float64) uint8 { return uint8(math.Round(clamp(v, 0, 255))) }
	switch strings.ToLower(field) {
	case "red":
		return FromRGBA(clampByte(value), g, b, c.alpha), nil
	case "green":
		return FromRGBA(r, clampByte(value), b, c.alpha), nil
	case "blue":
		return FromRGBA(r, g, clampByte(value), c.alpha), nil
	case "alpha":
		return Color{rgb: c.rgb, alpha: clamp(value, 0, 1)}, nil
	case "hue":
		return FromHSL(value, s, l, c.alpha), nil
	case "saturation":
		return FromHSL(h, value, l, c.alpha), nil
	case "lightness":
		return FromHSL(h, s, value, c.alpha), nil
	}
	return c, fmt.Errorf("color: unknown field %q", field)
}

func normalizeHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(math.Round(v*math.Pow10(prec))/math.Pow10(prec), 'f', -1, 64)
}

// Get exposes color components to templates ({{ settings.accent.red }}).
func (c Color) Get(key string) (any, bool) {
	switch key {
	case "hex":
		return c.Hex(), true
	case "rgb":
		return c.RGB(), true
	case "hsl":
		return c.HSLString(), true
	}
	v, err := c.Extract(key)
	if err != nil {
		return nil, false
	}
	return v, true
}
