package engine

import (
	"fmt"
	"html"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/goliatone/go-storefront/pkg/color"
	"github.com/goliatone/go-storefront/pkg/font"
	"github.com/goliatone/go-storefront/pkg/liquid"
)

// MinSrcsetWidth is the smallest width image_tag adds to a srcset.
const MinSrcsetWidth = 256

// srcsetStep scales each successive srcset width.
const srcsetStep = 0.8

// DateFormats are the named formats accepted by the date filter.
var DateFormats = map[string]string{
	"abbreviated_date": "%b %d, %Y",
	"basic":            "%m/%d/%Y",
	"date":             "%B %d, %Y",
	"date_at_time":     "%B %d, %Y at %I:%M %p",
	"default":          "%a, %b %d, %Y at %I:%M %p %z",
	"iso8601":          "%Y-%m-%dT%H:%M:%S%z",
	"long":             "%B %d, %Y %H:%M",
	"on_date":          "on %B %d, %Y",
	"short":            "%d %b %H:%M",
	"time":             "%H:%M",
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func registerFilters(e *Engine) {
	filters := map[string]liquid.FilterFunc{
		"color_lighten":    colorAdjust(color.Color.Lighten),
		"color_darken":     colorAdjust(color.Color.Darken),
		"color_saturate":   colorAdjust(color.Color.Saturate),
		"color_desaturate": colorAdjust(color.Color.Desaturate),
		"color_mix": colorFilter(func(c color.Color, args []any) (any, error) {
			other, err := toColor(liquid.Arg(args, 0))
			if err != nil {
				return nil, err
			}
			return c.Mix(other, liquid.ArgNumber(args, 1, 50)), nil
		}),
		"color_contrast": colorFilter(func(c color.Color, args []any) (any, error) {
			other, err := toColor(liquid.Arg(args, 0))
			if err != nil {
				return nil, err
			}
			return c.Contrast(other), nil
		}),
		"color_difference": colorFilter(func(c color.Color, args []any) (any, error) {
			other, err := toColor(liquid.Arg(args, 0))
			if err != nil {
				return nil, err
			}
			return c.Difference(other), nil
		}),
		"color_brightness": colorFilter(func(c color.Color, _ []any) (any, error) {
			return c.Brightness(), nil
		}),
		"color_extract": colorFilter(func(c color.Color, args []any) (any, error) {
			return c.Extract(liquid.ArgString(args, 0, ""))
		}),
		"color_modify": colorFilter(func(c color.Color, args []any) (any, error) {
			return c.Modify(liquid.ArgString(args, 0, ""), liquid.ArgNumber(args, 1, 0))
		}),
		"color_to_hex": colorFilter(func(c color.Color, _ []any) (any, error) { return c.Hex(), nil }),
		"color_to_rgb": colorFilter(func(c color.Color, _ []any) (any, error) { return c.RGB(), nil }),
		"color_to_hsl": colorFilter(func(c color.Color, _ []any) (any, error) { return c.HSLString(), nil }),

		"date": filterDate,

		"font_face":   e.filterFontFace,
		"font_modify": filterFontModify,
		"font_url":    filterFontURL,

		"money":                        moneyFilter(func(f float64) string { return e.money.Money(f) }),
		"money_with_currency":          moneyFilter(func(f float64) string { return e.money.MoneyWithCurrency(f) }),
		"money_without_currency":       moneyFilter(func(f float64) string { return e.money.MoneyWithoutCurrency(f) }),
		"money_without_trailing_zeros": moneyFilter(func(f float64) string { return e.money.MoneyWithoutTrailingZeros(f) }),

		"image_url":          filterImageURL,
		"img_url":            filterImgURL,
		"image_tag":          filterImageTag,
		"asset_url":          e.filterAssetURL,
		"stylesheet_tag":     filterStylesheetTag,
		"script_tag":         filterScriptTag,
		"default_pagination": filterDefaultPagination,

		"t":         e.filterTranslate,
		"translate": e.filterTranslate,
	}
	for name, fn := range filters {
		e.liquid.MustRegisterFilter(name, fn)
	}
}

func toColor(v any) (color.Color, error) {
	switch c := v.(type) {
	case color.Color:
		return c, nil
	case *color.Color:
		if c != nil {
			return *c, nil
		}
	}
	return color.Parse(liquid.ToString(v))
}

// colorFilter passes values that are not colors through unchanged.
func colorFilter(fn func(c color.Color, args []any) (any, error)) liquid.FilterFunc {
	return func(_ *liquid.State, input any, args []any, _ map[string]any) (any, error) {
		c, err := toColor(input)
		if err != nil {
			return input, nil
		}
		return fn(c, args)
	}
}

func colorAdjust(fn func(c color.Color, amount float64) color.Color) liquid.FilterFunc {
	return colorFilter(func(c color.Color, args []any) (any, error) {
		return fn(c, liquid.ArgNumber(args, 0, 0)), nil
	})
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x != nil {
			return *x, true
		}
		return time.Time{}, false
	case string:
		s := strings.TrimSpace(x)
		if s == "now" || s == "today" {
			return time.Now(), true
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
		return time.Time{}, false
	}
	if n, ok := liquid.ToNumber(v); ok {
		return time.Unix(int64(n), 0).UTC(), true
	}
	return time.Time{}, false
}

// filterDate formats a time with a named format or a strftime pattern.
// Values that are not times pass through.
func filterDate(_ *liquid.State, input any, args []any, kwargs map[string]any) (any, error) {
	t, ok := toTime(input)
	if !ok {
		return input, nil
	}
	format := liquid.ArgString(args, 0, "")
	if f, ok := kwargs["format"]; ok {
		format = liquid.ToString(f)
	}
	if named, ok := DateFormats[format]; ok {
		format = named
	}
	if format == "" {
		format = DateFormats["default"]
	}
	return strftime.Format(format, t), nil
}

func toFont(v any) (*font.Value, bool) {
	switch f := v.(type) {
	case *font.Value:
		return f, f != nil
	case string:
		parsed, err := font.Parse(f)
		return parsed, err == nil
	}
	return nil, false
}

func (e *Engine) filterFontFace(_ *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	f, ok := toFont(input)
	if !ok {
		return "", nil
	}
	display := ""
	if v, ok := kwargs["font_display"]; ok {
		display = liquid.ToString(v)
	}
	return f.Face(e.fontBase, display), nil
}

func filterFontModify(_ *liquid.State, input any, args []any, _ map[string]any) (any, error) {
	f, ok := toFont(input)
	if !ok {
		return nil, nil
	}
	modified, err := f.Modify(liquid.ArgString(args, 0, ""), liquid.ArgString(args, 1, ""))
	if err != nil {
		return nil, nil
	}
	return modified, nil
}

func filterFontURL(_ *liquid.State, input any, _ []any, _ map[string]any) (any, error) {
	f, ok := toFont(input)
	if !ok {
		return "", nil
	}
	return f.URL(), nil
}

// moneyFilter formats decimal amounts. Non-numeric input passes through.
func moneyFilter(format func(float64) string) liquid.FilterFunc {
	return func(_ *liquid.State, input any, _ []any, _ map[string]any) (any, error) {
		amount, ok := liquid.ToNumber(input)
		if !ok {
			return input, nil
		}
		return format(amount), nil
	}
}

// imageSource reads the URL of an image value: a string, or an object with
// url, src, or file.url.
func imageSource(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	for _, key := range []string{"url", "src"} {
		if u, ok := liquid.Index(v, key); ok && u != nil {
			return liquid.ToString(u)
		}
	}
	if file, ok := liquid.Index(v, "file"); ok {
		if u, ok := liquid.Index(file, "url"); ok {
			return liquid.ToString(u)
		}
	}
	return ""
}

func withQuery(src string, params map[string]string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	for k, v := range params {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func intParam(v any) string {
	if n, ok := liquid.ToInt(v); ok && n > 0 {
		return strconv.Itoa(n)
	}
	return ""
}

// filterImageURL adds width, height, crop, and format query parameters.
func filterImageURL(_ *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	src := imageSource(input)
	if src == "" {
		return "", nil
	}
	params := map[string]string{
		"width":  intParam(kwargs["width"]),
		"height": intParam(kwargs["height"]),
	}
	for _, key := range []string{"crop", "format", "pad_color"} {
		if v, ok := kwargs[key]; ok {
			params[key] = liquid.ToString(v)
		}
	}
	return withQuery(src, params), nil
}

// filterImgURL accepts the legacy size argument: "300x", "x200",
// "300x200", or "master".
func filterImgURL(_ *liquid.State, input any, args []any, _ map[string]any) (any, error) {
	src := imageSource(input)
	if src == "" {
		return "", nil
	}
	size := liquid.ArgString(args, 0, "")
	if size == "" || size == "master" || size == "original" {
		return src, nil
	}
	w, h, _ := strings.Cut(size, "x")
	return withQuery(src, map[string]string{"width": intParam(w), "height": intParam(h)}), nil
}

// filterImageTag renders an img element. With a known width the source is
// requested at twice that width for high density screens, and the srcset
// steps down from there by srcsetStep while at least MinSrcsetWidth.
func filterImageTag(_ *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	src := imageSource(input)
	if src == "" {
		return "", nil
	}
	width, _ := liquid.ToInt(kwargs["width"])
	height, _ := liquid.ToInt(kwargs["height"])
	if u, err := url.Parse(src); err == nil {
		q := u.Query()
		if width == 0 {
			width, _ = strconv.Atoi(q.Get("width"))
		}
		if height == 0 {
			height, _ = strconv.Atoi(q.Get("height"))
		}
	}

	alt := ""
	if v, ok := kwargs["alt"]; ok {
		alt = liquid.ToString(v)
	} else if v, ok := liquid.Index(input, "alt"); ok {
		alt = liquid.ToString(v)
	}
	loading := "lazy"
	if v, ok := kwargs["loading"]; ok {
		loading = liquid.ToString(v)
	}

	var b strings.Builder
	if width > 0 {
		retinaHeight := 0
		if height > 0 {
			retinaHeight = height * 2
		}
		fmt.Fprintf(&b, `<img src="%s"`, html.EscapeString(sized(src, width*2, retinaHeight)))
		if srcset := srcsetFor(src, width*2, retinaHeight); srcset != "" {
			fmt.Fprintf(&b, ` srcset="%s"`, html.EscapeString(srcset))
		}
	} else {
		fmt.Fprintf(&b, `<img src="%s"`, html.EscapeString(src))
	}
	fmt.Fprintf(&b, ` alt="%s"`, html.EscapeString(alt))
	if width > 0 {
		fmt.Fprintf(&b, ` width="%d"`, width)
	}
	if height > 0 {
		fmt.Fprintf(&b, ` height="%d"`, height)
	}
	for _, key := range []string{"class", "sizes"} {
		if v, ok := kwargs[key]; ok {
			fmt.Fprintf(&b, ` %s="%s"`, key, html.EscapeString(liquid.ToString(v)))
		}
	}
	fmt.Fprintf(&b, ` loading="%s">`, html.EscapeString(loading))
	return b.String(), nil
}

func sized(src string, width, height int) string {
	return withQuery(src, map[string]string{"width": intParam(width), "height": intParam(height)})
}

// srcsetFor lists descending widths starting at widest.
func srcsetFor(src string, widest, height int) string {
	var parts []string
	for w := float64(widest); w >= MinSrcsetWidth; w *= srcsetStep {
		width := int(math.Round(w))
		h := 0
		if height > 0 {
			h = int(math.Round(float64(height) * w / float64(widest)))
		}
		parts = append(parts, fmt.Sprintf("%s %dw", sized(src, width, h), width))
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) filterAssetURL(_ *liquid.State, input any, _ []any, _ map[string]any) (any, error) {
	name := liquid.ToString(input)
	if name == "" || strings.Contains(name, "://") || strings.HasPrefix(name, "//") {
		return name, nil
	}
	if e.assets != nil {
		if resolved := e.assets(name); resolved != "" {
			return resolved, nil
		}
	}
	return strings.TrimSuffix(e.assetBase, "/") + "/" + strings.TrimPrefix(name, "/"), nil
}

func filterStylesheetTag(_ *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	media := "all"
	if v, ok := kwargs["media"]; ok {
		media = liquid.ToString(v)
	}
	return fmt.Sprintf(`<link href="%s" rel="stylesheet" type="text/css" media="%s">`,
		html.EscapeString(liquid.ToString(input)), html.EscapeString(media)), nil
}

func filterScriptTag(_ *liquid.State, input any, _ []any, _ map[string]any) (any, error) {
	return fmt.Sprintf(`<script src="%s" type="text/javascript"></script>`, html.EscapeString(liquid.ToString(input))), nil
}

// filterDefaultPagination renders the links of a paginate object.
func filterDefaultPagination(_ *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	previous, next := "&laquo; Previous", "Next &raquo;"
	if v, ok := kwargs["previous"]; ok {
		previous = html.EscapeString(liquid.ToString(v))
	}
	if v, ok := kwargs["next"]; ok {
		next = html.EscapeString(liquid.ToString(v))
	}
	linkURL := func(link any) string {
		u, _ := liquid.Index(link, "url")
		return html.EscapeString(liquid.ToString(u))
	}

	var parts []string
	if prev, ok := liquid.Index(input, "previous"); ok && prev != nil {
		parts = append(parts, fmt.Sprintf(`<span class="prev"><a href="%s">%s</a></span>`, linkURL(prev), previous))
	}
	list, _ := liquid.Index(input, "parts")
	for _, part := range liquid.Enumerate(list) {
		title, _ := liquid.Index(part, "title")
		isLink, _ := liquid.Index(part, "is_link")
		if liquid.Truthy(isLink) {
			parts = append(parts, fmt.Sprintf(`<span class="page"><a href="%s">%s</a></span>`, linkURL(part), html.EscapeString(liquid.ToString(title))))
		} else {
			parts = append(parts, fmt.Sprintf(`<span class="page current">%s</span>`, html.EscapeString(liquid.ToString(title))))
		}
	}
	if nxt, ok := liquid.Index(input, "next"); ok && nxt != nil {
		parts = append(parts, fmt.Sprintf(`<span class="next"><a href="%s">%s</a></span>`, linkURL(nxt), next))
	}
	return strings.Join(parts, " "), nil
}

// filterTranslate resolves a translation key; keyword arguments become the
// interpolation data. Without a locale resolver the key is returned.
func (e *Engine) filterTranslate(s *liquid.State, input any, _ []any, kwargs map[string]any) (any, error) {
	key := liquid.ToString(input)
	if e.locale == nil {
		return key, nil
	}
	return e.locale.Render(s.Ctx, key, kwargs), nil
}
