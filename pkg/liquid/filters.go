package liquid

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

func registerStandardFilters(e *Engine) {
	for name, fn := range map[string]FilterFunc{
		"append":         stringFilter2(func(a, b string) string { return a + b }),
		"prepend":        stringFilter2(func(a, b string) string { return b + a }),
		"upcase":         stringFilter(strings.ToUpper),
		"downcase":       stringFilter(strings.ToLower),
		"capitalize":     stringFilter(capitalize),
		"strip":          stringFilter(strings.TrimSpace),
		"lstrip":         stringFilter(func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
		"rstrip":         stringFilter(func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
		"strip_newlines": stringFilter(func(s string) string { return strings.NewReplacer("\r\n", "", "\n", "").Replace(s) }),
		"newline_to_br":  stringFilter(func(s string) string { return strings.NewReplacer("\r\n", "<br />\n", "\n", "<br />\n").Replace(s) }),
		"escape":         stringFilter(html.EscapeString),
		"escape_once":    stringFilter(func(s string) string { return html.EscapeString(html.UnescapeString(s)) }),
		"url_encode":     stringFilter(url.QueryEscape),
		"url_decode":     filterURLDecode,
		"handleize":      stringFilter(Handleize),
		"handle":         stringFilter(Handleize),
		"strip_html":     stringFilter(StripHTML),
		"replace":        filterReplace(-1),
		"replace_first":  filterReplace(1),
		"remove":         filterRemove(-1),
		"remove_first":   filterRemove(1),
		"truncate":       filterTruncate,
		"truncatewords":  filterTruncateWords,
		"split":          filterSplit,
		"pluralize":      filterPluralize,
		"slice":          filterSlice,
		"size":           filterSize,

		"join":         filterJoin,
		"first":        filterFirst,
		"last":         filterLast,
		"map":          filterMap,
		"where":        filterWhere,
		"sort":         filterSort(false),
		"sort_natural": filterSort(true),
		"reverse":      filterReverse,
		"uniq":         filterUniq,
		"compact":      filterCompact,
		"concat":       filterConcat,

		"plus":       mathFilter(func(a, b int) int { return a + b }, func(a, b float64) float64 { return a + b }),
		"minus":      mathFilter(func(a, b int) int { return a - b }, func(a, b float64) float64 { return a - b }),
		"times":      mathFilter(func(a, b int) int { return a * b }, func(a, b float64) float64 { return a * b }),
		"divided_by": filterDividedBy,
		"modulo":     filterModulo,
		"round":      filterRound,
		"ceil":       numberFilter(math.Ceil),
		"floor":      numberFilter(math.Floor),
		"abs":        numberFilter(math.Abs),
		"at_least":   filterBound(math.Max),
		"at_most":    filterBound(math.Min),

		"default": filterDefault,
		"json":    filterJSON,
	} {
		e.MustRegisterFilter(name, fn)
	}
}

// Arg returns args[i] or nil.
func Arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// ArgString returns args[i] as a string, or def when absent.
func ArgString(args []any, i int, def string) string {
	if i < len(args) && args[i] != nil {
		return ToString(args[i])
	}
	return def
}

// ArgNumber returns args[i] as a number, or def when absent or not numeric.
func ArgNumber(args []any, i int, def float64) float64 {
	if i < len(args) {
		if f, ok := ToNumber(args[i]); ok {
			return f
		}
	}
	return def
}

func stringFilter(fn func(string) string) FilterFunc {
	return func(_ *State, input any, _ []any, _ map[string]any) (any, error) {
		return fn(ToString(input)), nil
	}
}

func stringFilter2(fn func(a, b string) string) FilterFunc {
	return func(_ *State, input any, args []any, _ map[string]any) (any, error) {
		return fn(ToString(input), ArgString(args, 0, "")), nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

var handleSeparators = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Handleize lowercases s and joins its words with dashes.
func Handleize(s string) string {
	return strings.Trim(handleSeparators.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

var (
	stripPolicyOnce sync.Once
	stripPolicy     *bluemonday.Policy
)

// StripHTML removes every tag and returns the text content.
func StripHTML(s string) string {
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

func filterURLDecode(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	out, err := url.QueryUnescape(ToString(input))
	if err != nil {
		return ToString(input), nil
	}
	return out, nil
}

func filterReplace(n int) FilterFunc {
	return func(_ *State, input any, args []any, _ map[string]any) (any, error) {
		return strings.Replace(ToString(input), ArgString(args, 0, ""), ArgString(args, 1, ""), n), nil
	}
}

func filterRemove(n int) FilterFunc {
	return func(_ *State, input any, args []any, _ map[string]any) (any, error) {
		return strings.Replace(ToString(input), ArgString(args, 0, ""), "", n), nil
	}
}

func filterTruncate(_ *State, input any, args []any, _ map[string]any) (any, error) {
	s := []rune(ToString(input))
	length := int(ArgNumber(args, 0, 50))
	ellipsis := ArgString(args, 1, "...")
	if len(s) <= length {
		return string(s), nil
	}
	keep := length - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	return string(s[:keep]) + ellipsis, nil
}

func filterTruncateWords(_ *State, input any, args []any, _ map[string]any) (any, error) {
	words := strings.Fields(ToString(input))
	n := int(ArgNumber(args, 0, 15))
	if n < 1 {
		n = 1
	}
	if len(words) <= n {
		return strings.Join(words, " "), nil
	}
	return strings.Join(words[:n], " ") + ArgString(args, 1, "..."), nil
}

func filterSplit(_ *State, input any, args []any, _ map[string]any) (any, error) {
	s := ToString(input)
	if s == "" {
		return []any{}, nil
	}
	parts := strings.Split(s, ArgString(args, 0, " "))
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	return out, nil
}

func filterPluralize(_ *State, input any, args []any, _ map[string]any) (any, error) {
	n, _ := ToNumber(input)
	if n == 1 {
		return ArgString(args, 0, ""), nil
	}
	return ArgString(args, 1, ""), nil
}

func filterSlice(_ *State, input any, args []any, _ map[string]any) (any, error) {
	start := int(ArgNumber(args, 0, 0))
	length := int(ArgNumber(args, 1, 1))
	clamp := func(n int) (int, int) {
		from := start
		if from < 0 {
			from += n
		}
		if from < 0 {
			from = 0
		}
		if from > n {
			from = n
		}
		to := from + length
		if to > n {
			to = n
		}
		if to < from {
			to = from
		}
		return from, to
	}
	if items := ToSlice(input); items != nil {
		from, to := clamp(len(items))
		return items[from:to], nil
	}
	runes := []rune(ToString(input))
	from, to := clamp(len(runes))
	return string(runes[from:to]), nil
}

func filterSize(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	switch x := input.(type) {
	case string:
		return utf8.RuneCountInString(x), nil
	case map[string]any:
		return len(x), nil
	}
	if v, ok := Index(input, "size"); ok {
		return v, nil
	}
	return 0, nil
}

func filterJoin(_ *State, input any, args []any, _ map[string]any) (any, error) {
	items := ToSlice(input)
	if items == nil {
		return ToString(input), nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = ToString(item)
	}
	return strings.Join(parts, ArgString(args, 0, " ")), nil
}

func filterFirst(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	v, _ := Index(input, "first")
	return v, nil
}

func filterLast(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	v, _ := Index(input, "last")
	return v, nil
}

func property(s *State, item any, key string) (any, error) {
	resolved, err := Resolve(s.Ctx, item)
	if err != nil {
		return nil, err
	}
	v, _ := Index(resolved, key)
	return Resolve(s.Ctx, v)
}

func filterMap(s *State, input any, args []any, _ map[string]any) (any, error) {
	key := ArgString(args, 0, "")
	items := ToSlice(input)
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := property(s, item, key)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func filterWhere(s *State, input any, args []any, _ map[string]any) (any, error) {
	key := ArgString(args, 0, "")
	var out []any
	for _, item := range ToSlice(input) {
		v, err := property(s, item, key)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			if Truthy(v) {
				out = append(out, item)
			}
			continue
		}
		if Equal(v, args[1]) {
			out = append(out, item)
		}
	}
	return out, nil
}

func filterSort(natural bool) FilterFunc {
	return func(s *State, input any, args []any, _ map[string]any) (any, error) {
		items := append([]any(nil), ToSlice(input)...)
		keys := make([]any, len(items))
		for i, item := range items {
			keys[i] = item
			if len(args) > 0 {
				v, err := property(s, item, ToString(args[0]))
				if err != nil {
					return nil, err
				}
				keys[i] = v
			}
			if natural {
				keys[i] = strings.ToLower(ToString(keys[i]))
			}
		}
		idx := make([]int, len(items))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ka, kb := keys[idx[a]], keys[idx[b]]
			if ka == nil {
				return false
			}
			if kb == nil {
				return true
			}
			c, ok := Compare(ka, kb)
			return ok && c < 0
		})
		out := make([]any, len(items))
		for i, j := range idx {
			out[i] = items[j]
		}
		return out, nil
	}
}

func filterReverse(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	return Modifiers{Reversed: true}.Apply(ToSlice(input)), nil
}

func filterUniq(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	var out []any
	for _, item := range ToSlice(input) {
		dup := false
		for _, seen := range out {
			if Equal(seen, item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out, nil
}

func filterCompact(s *State, input any, args []any, _ map[string]any) (any, error) {
	var out []any
	for _, item := range ToSlice(input) {
		v := item
		if len(args) > 0 {
			var err error
			if v, err = property(s, item, ToString(args[0])); err != nil {
				return nil, err
			}
		}
		if v != nil {
			out = append(out, item)
		}
	}
	return out, nil
}

func filterConcat(_ *State, input any, args []any, _ map[string]any) (any, error) {
	out := append([]any(nil), ToSlice(input)...)
	return append(out, ToSlice(Arg(args, 0))...), nil
}

func bothIntegers(a, b any) bool {
	return isInteger(a) && isInteger(b)
}

func mathFilter(intOp func(a, b int) int, floatOp func(a, b float64) float64) FilterFunc {
	return func(_ *State, input any, args []any, _ map[string]any) (any, error) {
		arg := Arg(args, 0)
		if bothIntegers(input, arg) {
			a, _ := ToInt(input)
			b, _ := ToInt(arg)
			return intOp(a, b), nil
		}
		a, _ := ToNumber(input)
		b, _ := ToNumber(arg)
		return floatOp(a, b), nil
	}
}

func filterDividedBy(_ *State, input any, args []any, _ map[string]any) (any, error) {
	arg := Arg(args, 0)
	b, _ := ToNumber(arg)
	if b == 0 {
		return nil, fmt.Errorf("divided by 0")
	}
	if bothIntegers(input, arg) {
		x, _ := ToInt(input)
		return int(math.Floor(float64(x) / b)), nil
	}
	a, _ := ToNumber(input)
	return a / b, nil
}

func filterModulo(_ *State, input any, args []any, _ map[string]any) (any, error) {
	arg := Arg(args, 0)
	b, _ := ToNumber(arg)
	if b == 0 {
		return nil, fmt.Errorf("divided by 0")
	}
	if bothIntegers(input, arg) {
		x, _ := ToInt(input)
		return x % int(b), nil
	}
	a, _ := ToNumber(input)
	return math.Mod(a, b), nil
}

func filterRound(_ *State, input any, args []any, _ map[string]any) (any, error) {
	a, _ := ToNumber(input)
	digits := int(ArgNumber(args, 0, 0))
	if digits <= 0 {
		return int(math.Round(a)), nil
	}
	pow := math.Pow(10, float64(digits))
	return math.Round(a*pow) / pow, nil
}

func numberFilter(fn func(float64) float64) FilterFunc {
	return func(_ *State, input any, _ []any, _ map[string]any) (any, error) {
		a, _ := ToNumber(input)
		out := fn(a)
		if out == math.Trunc(out) {
			return int(out), nil
		}
		return out, nil
	}
}

func filterBound(fn func(a, b float64) float64) FilterFunc {
	return func(_ *State, input any, args []any, _ map[string]any) (any, error) {
		a, _ := ToNumber(input)
		out := fn(a, ArgNumber(args, 0, a))
		if bothIntegers(input, Arg(args, 0)) {
			return int(out), nil
		}
		return out, nil
	}
}

func filterDefault(_ *State, input any, args []any, kwargs map[string]any) (any, error) {
	allowFalse := Truthy(kwargs["allow_false"])
	if b, ok := input.(bool); ok && !b && allowFalse {
		return input, nil
	}
	if !Truthy(input) || isEmpty(input) {
		return Arg(args, 0), nil
	}
	return input, nil
}

func filterJSON(_ *State, input any, _ []any, _ map[string]any) (any, error) {
	raw, err := json.Marshal(jsonValue(input))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// jsonValue swaps template-only values for their JSON shape.
func jsonValue(v any) any {
	switch x := v.(type) {
	case *ForLoop:
		out := map[string]any{}
		for _, k := range []string{"index", "index0", "rindex", "rindex0", "first", "last", "length", "name"} {
			out[k], _ = x.Get(k)
		}
		return out
	case Range:
		return x.Items()
	case emptyLiteral, blankLiteral:
		return ""
	}
	return v
}
