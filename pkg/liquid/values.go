package liquid

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Lazy is a deferred value resolved on first access. Resource handles
// satisfy it.
type Lazy interface {
	Resolve(ctx context.Context) (any, error)
}

// Drop exposes named properties to templates.
type Drop interface {
	Get(key string) (any, bool)
}

// Iterable can be walked by for loops and the render tag.
type Iterable interface {
	Items() []any
}

// Range is the value of a (a..b) literal.
type Range struct {
	From, To int
}

func (r Range) Items() []any {
	if r.To < r.From {
		return nil
	}
	out := make([]any, 0, r.To-r.From+1)
	for i := r.From; i <= r.To; i++ {
		out = append(out, i)
	}
	return out
}

func (r Range) String() string { return fmt.Sprintf("%d..%d", r.From, r.To) }

type emptyLiteral struct{}
type blankLiteral struct{}

var (
	// Empty is the value of the `empty` literal.
	Empty = emptyLiteral{}
	// Blank is the value of the `blank` literal.
	Blank = blankLiteral{}
)

// Resolve forces Lazy values; other values pass through.
func Resolve(ctx context.Context, v any) (any, error) {
	for {
		lazy, ok := v.(Lazy)
		if !ok {
			return v, nil
		}
		resolved, err := lazy.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		v = resolved
	}
}

// Truthy applies template truthiness: only nil and false are falsy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case emptyLiteral, blankLiteral:
		return false
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
		return false
	}
	return true
}

// ToString renders a value for output.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatNumber(x)
	case float32:
		return formatNumber(float64(x))
	case json.Number:
		return x.String()
	case fmt.Stringer:
		if isNilPointer(v) {
			return ""
		}
		return x.String()
	case []any:
		var b strings.Builder
		for _, item := range x {
			b.WriteString(ToString(item))
		}
		return b.String()
	case []string:
		return strings.Join(x, "")
	case map[string]any, Drop, emptyLiteral, blankLiteral:
		return ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Slice, reflect.Array:
		return ToString(toSlice(rv))
	case reflect.Map, reflect.Struct, reflect.Pointer:
		return ""
	}
	return fmt.Sprint(v)
}

// whole floats print without a fraction since JSON settings decode every
// number as float64
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// ToNumber converts numeric values and numeric strings.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case uint, uint8, uint16, uint32, uint64, int8, int16:
		return float64(reflect.ValueOf(x).Convert(reflect.TypeOf(float64(0))).Float()), true
	}
	return 0, false
}

// ToInt converts to an int, truncating floats. ok is false for non-numbers.
func ToInt(v any) (int, bool) {
	if i, ok := v.(int); ok {
		return i, true
	}
	f, ok := ToNumber(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func isInteger(v any) bool {
	switch x := v.(type) {
	case int, int64, int32, int16, int8, uint, uint8, uint16, uint32, uint64:
		return true
	case string:
		_, err := strconv.Atoi(strings.TrimSpace(x))
		return err == nil
	case json.Number:
		_, err := x.Int64()
		return err == nil
	}
	return false
}

// Equal compares strictly: numbers compare by value, everything else by
// type and value. Strings never equal numbers.
func Equal(a, b any) bool {
	switch b.(type) {
	case emptyLiteral:
		return isEmpty(a)
	case blankLiteral:
		return isBlank(a)
	}
	switch a.(type) {
	case emptyLiteral:
		return isEmpty(b)
	case blankLiteral:
		return isBlank(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil || isNilPointer(a) && b == nil || a == nil && isNilPointer(b)
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	if !aStr && !bStr {
		if fa, ok := ToNumber(a); ok {
			if fb, ok := ToNumber(b); ok {
				return fa == fb
			}
		}
	}
	if sa, ok := a.(fmt.Stringer); ok && bStr {
		return sa.String() == b.(string)
	}
	if sb, ok := b.(fmt.Stringer); ok && aStr {
		return sb.String() == a.(string)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case Iterable:
		return len(x.Items()) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return strings.TrimSpace(x) == ""
	}
	return isEmpty(v)
}

// Compare orders numbers and strings; ok is false when the pair is not
// comparable.
func Compare(a, b any) (int, bool) {
	if fa, ok := ToNumber(a); ok {
		if _, isStr := a.(string); !isStr {
			if fb, ok := ToNumber(b); ok {
				if _, isStr := b.(string); !isStr {
					switch {
					case fa < fb:
						return -1, true
					case fa > fb:
						return 1, true
					}
					return 0, true
				}
			}
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// Contains implements the contains operator.
func Contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(h, ToString(needle))
	case map[string]any:
		_, ok := h[ToString(needle)]
		return ok
	}
	for _, item := range ToSlice(haystack) {
		if Equal(item, needle) {
			return true
		}
	}
	return false
}

// ToSlice converts arrays, slices, and iterables to []any. Scalars become
// nil.
func ToSlice(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case Iterable:
		return x.Items()
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return toSlice(rv)
	}
	return nil
}

func toSlice(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Enumerate normalizes a value for iteration: slices pass through, a
// non-empty string becomes a one-element slice, iterables spread, and plain
// objects become [{id: key, ...value}] ordered by key.
func Enumerate(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return []any{x}
	case []any:
		return x
	case Iterable:
		return x.Items()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			entry := map[string]any{"id": k}
			if inner, ok := x[k].(map[string]any); ok {
				for ik, iv := range inner {
					entry[ik] = iv
				}
				entry["id"] = k
			} else {
				entry["value"] = x[k]
			}
			out = append(out, entry)
		}
		return out
	}
	if s := ToSlice(v); s != nil {
		return s
	}
	return nil
}

// Index reads key from a container value. Arrays accept integer keys and
// the size/first/last properties; strings accept size.
func Index(v any, key any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		k := ToString(key)
		if val, ok := x[k]; ok {
			return val, true
		}
		if k == "size" {
			return len(x), true
		}
		return nil, false
	case Drop:
		return x.Get(ToString(key))
	case string:
		if ToString(key) == "size" {
			return len([]rune(x)), true
		}
		return nil, false
	}

	if slice := ToSlice(v); slice != nil || isSliceLike(v) {
		if i, ok := key.(int); ok {
			if i < 0 {
				i += len(slice)
			}
			if i >= 0 && i < len(slice) {
				return slice[i], true
			}
			return nil, false
		}
		switch ToString(key) {
		case "size":
			return len(slice), true
		case "first":
			if len(slice) > 0 {
				return slice[0], true
			}
			return nil, false
		case "last":
			if len(slice) > 0 {
				return slice[len(slice)-1], true
			}
			return nil, false
		}
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		val := rv.MapIndex(reflect.ValueOf(ToString(key)).Convert(rv.Type().Key()))
		if val.IsValid() {
			return val.Interface(), true
		}
	}
	return nil, false
}

func isSliceLike(v any) bool {
	if _, ok := v.(Iterable); ok {
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
