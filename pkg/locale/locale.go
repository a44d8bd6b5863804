// Package locale resolves dotted translation keys against a theme locale
// tree. Lookups walk a fallback chain (exact locale, short code, unqualified
// key) and always end in a string.
//
// A native tree carries per-locale overrides next to the default value:
//
//	{"cart": {"title": "Cart", "$locale": {"fr-FR": {"title": "Panier"}}}}
//
// Compatibility trees are already locale specific and resolve through the
// unqualified key.
package locale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
)

// OverridesKey holds the per-locale overrides of a tree node.
const OverridesKey = "$locale"

// LanguagePath is the native locale tree file.
var LanguagePath = store.ThemePath(store.CategoryConfig, "language.json")

// Renderer renders translation strings that contain template syntax.
type Renderer interface {
	RenderString(ctx context.Context, src string, data map[string]any) (string, error)
}

// MissingHandler returns the text used when key has no translation.
type MissingHandler func(locale, key string) string

// Resolver resolves keys for one locale.
type Resolver struct {
	tree      map[string]any
	code      string
	chain     []string
	renderer  Renderer
	recorder  diagnostics.Recorder
	onMissing MissingHandler
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRenderer renders translated strings through r.
func WithRenderer(r Renderer) Option {
	return func(res *Resolver) { res.renderer = r }
}

// WithRecorder reports missing translations to rec.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(res *Resolver) { res.recorder = rec }
}

// WithMissingHandler overrides the empty string returned for missing keys.
func WithMissingHandler(fn MissingHandler) Option {
	return func(res *Resolver) { res.onMissing = fn }
}

// New builds a Resolver over tree for the locale code.
func New(tree map[string]any, code string, opts ...Option) *Resolver {
	r := &Resolver{tree: tree, code: strings.TrimSpace(code)}
	r.chain = Chain(r.code)
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.recorder = diagnostics.OrNop(r.recorder)
	if r.onMissing == nil {
		r.onMissing = func(string, string) string { return "" }
	}
	return r
}

// WithRenderer returns a copy of r rendering through renderer.
func (r *Resolver) WithRenderer(renderer Renderer) *Resolver {
	clone := *r
	clone.renderer = renderer
	return &clone
}

// Locale returns the locale code.
func (r *Resolver) Locale() string { return r.code }

// Chain returns the locale codes tried before the unqualified key: the exact
// code, then its first hyphen segment.
func Chain(code string) []string {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	out := []string{code}
	if short, _, ok := strings.Cut(code, "-"); ok && short != "" {
		out = append(out, short)
	}
	return out
}

// Lookup returns the raw value for key following the fallback chain.
func (r *Resolver) Lookup(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	parts := strings.Split(strings.TrimSpace(key), ".")
	leaf := parts[len(parts)-1]
	if leaf == "" {
		return nil, false
	}
	var node any = r.tree
	for _, part := range parts[:len(parts)-1] {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node = m[part]
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	if overrides, ok := m[OverridesKey].(map[string]any); ok {
		for _, code := range r.chain {
			if values, ok := overrides[code].(map[string]any); ok {
				if v, ok := values[leaf]; ok && v != nil {
					return v, true
				}
			}
		}
	}
	v, ok := m[leaf]
	return v, ok && v != nil
}

// Render translates key. Plural forms {one, other} are picked by
// data["count"]; string results are rendered as templates with data. Render
// never fails: missing or non-string values yield the missing handler's text.
func (r *Resolver) Render(ctx context.Context, key string, data map[string]any) string {
	v, ok := r.Lookup(key)
	if !ok {
		r.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindMissingTranslation,
			Message: fmt.Sprintf("missing translation %q", key),
			Attrs:   map[string]string{"key": key, "locale": r.code},
		})
		return r.onMissing(r.code, key)
	}
	if forms, ok := v.(map[string]any); ok {
		if count, ok := number(data["count"]); ok {
			if count == 1 {
				v = forms["one"]
			} else {
				v = forms["other"]
			}
		}
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if r.renderer == nil || (!strings.Contains(s, "{{") && !strings.Contains(s, "{%")) {
		return s
	}
	out, err := r.renderer.RenderString(ctx, s, data)
	if err != nil {
		r.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindRenderError,
			Message: fmt.Sprintf("translation %q", key),
			Err:     err,
			Attrs:   map[string]string{"key": key, "locale": r.code},
		})
		return s
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// LoadTree loads the locale tree for code. Native themes read LanguagePath;
// an active adapter switches to the compatibility locale files. Missing or
// malformed files yield an empty tree.
func LoadTree(ctx context.Context, st store.Store, code string, adapter *compat.Adapter, rec diagnostics.Recorder) map[string]any {
	if adapter != nil {
		return adapter.LocaleConfig(ctx, st, code)
	}
	rec = diagnostics.OrNop(rec)
	cfg, err := st.GetConfig(ctx, LanguagePath)
	if err != nil {
		rec.Record(ctx, diagnostics.Event{Kind: diagnostics.KindResourceError, Path: LanguagePath, Message: "locale fetch failed", Err: err})
		return map[string]any{}
	}
	if cfg == nil {
		return map[string]any{}
	}
	tree := map[string]any{}
	if err := json.Unmarshal([]byte(cfg.FileData), &tree); err != nil {
		rec.Record(ctx, diagnostics.Event{Kind: diagnostics.KindConfigParseError, Path: LanguagePath, Message: "malformed locale file", Err: err})
		return map[string]any{}
	}
	return tree
}
