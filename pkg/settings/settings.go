// Package settings types raw theme settings trees against field schemas.
//
// Resolve never mutates its input. Leaves whose id matches a schema field are
// coerced by the field type: colors become color.Color, font families become
// *font.Value, lookups become deferred resource handles, and menus resolve
// against the request menus. Everything else passes through.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-storefront/pkg/color"
	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/font"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/schema"
)

// Kind tags a resolved setting value.
type Kind string

const (
	KindPlain      Kind = "plain"
	KindColor      Kind = "color"
	KindFont       Kind = "font"
	KindRecord     Kind = "lookup_record"
	KindCollection Kind = "lookup_collection"
	KindMenu       Kind = "menu"
)

// KindOf reports the tag of a resolved value.
func KindOf(v any) Kind {
	switch v.(type) {
	case color.Color:
		return KindColor
	case *font.Value:
		return KindFont
	case *resource.Record:
		return KindRecord
	case *resource.Collection:
		return KindCollection
	case *Menu:
		return KindMenu
	}
	return KindPlain
}

// Menu is a navigation menu resolved from a menu setting.
type Menu struct {
	ID   string
	Data map[string]any
}

// Get exposes the menu record to templates.
func (m *Menu) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if key == "id" && m.ID != "" {
		return m.ID, true
	}
	v, ok := m.Data[key]
	return v, ok
}

func (m *Menu) String() string {
	if m == nil {
		return ""
	}
	return m.ID
}

var (
	richTextPolicy     *bluemonday.Policy
	richTextPolicyOnce sync.Once
)

func richText() *bluemonday.Policy {
	richTextPolicyOnce.Do(func() {
		richTextPolicy = bluemonday.UGCPolicy()
	})
	return richTextPolicy
}

// Resolver coerces settings trees for one request.
type Resolver struct {
	fetcher  resource.Fetcher
	menus    map[string]any
	compat   *compat.Adapter
	recorder diagnostics.Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMenus sets the menus available to menu fields, keyed by id.
func WithMenus(menus map[string]any) Option {
	return func(r *Resolver) { r.menus = menus }
}

// WithCompat enables compatibility font handles and object adaptation of
// lookups.
func WithCompat(a *compat.Adapter) Option {
	return func(r *Resolver) { r.compat = a }
}

// WithRecorder reports values that could not be coerced.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// New builds a Resolver fetching lookups through f.
func New(f resource.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{fetcher: f}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.recorder = diagnostics.OrNop(r.recorder)
	return r
}

// Resolve returns a typed copy of tree. Fields are looked up by id across
// all sections.
func (r *Resolver) Resolve(ctx context.Context, tree map[string]any, sections []schema.Section) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = r.resolveEntry(ctx, key, value, sections)
	}
	return out
}

func (r *Resolver) resolveEntry(ctx context.Context, key string, value any, sections []schema.Section) any {
	if field, ok := schema.Lookup(sections, key); ok && field.Type != "" {
		return r.coerce(ctx, field, value)
	}
	switch v := value.(type) {
	case map[string]any:
		return r.Resolve(ctx, v, sections)
	case []any:
		return cloneValue(v)
	}
	return value
}

func (r *Resolver) coerce(ctx context.Context, field schema.Field, value any) any {
	switch field.Type {
	case schema.TypeColor:
		return coerceColor(value)
	case schema.TypeFontFamily:
		return r.coerceFont(ctx, field, value)
	case schema.TypeLookup, schema.TypeProductLookup, schema.TypeCategoryLookup, schema.TypeCustomerLookup:
		return r.coerceLookup(field, value)
	case schema.TypeMenu:
		return r.coerceMenu(value)
	case schema.TypeColorSchemeGroup:
		return coerceSchemeGroup(field, value)
	case schema.TypeRichText:
		if s, ok := value.(string); ok {
			return richText().Sanitize(s)
		}
	}
	return cloneValue(value)
}

func coerceColor(value any) any {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return cloneValue(value)
	}
	return color.ParseOrBlack(s)
}

func (r *Resolver) coerceFont(ctx context.Context, field schema.Field, value any) any {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return value
	}
	if r.compat != nil {
		if converted, ok := compat.FontHandle(s); ok {
			s = converted
		}
	}
	v, err := font.Parse(s)
	if err != nil {
		r.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindResourceError,
			Message: fmt.Sprintf("font setting %q", field.ID),
			Err:     err,
		})
		return nil
	}
	return v
}

var adapterTypes = map[string]string{
	"products":   "product",
	"categories": "category",
	"accounts":   "account",
}

func (r *Resolver) coerceLookup(field schema.Field, value any) any {
	model := field.LookupModel()
	var out any
	if field.Multi {
		ids := lookupIDs(value)
		if len(ids) == 0 {
			return nil
		}
		limit := field.Limit
		if limit <= 0 {
			limit = resource.DefaultPageSize
		}
		out = resource.NewCollection(r.fetcher, model, resource.ListQuery{IDs: ids, Limit: limit})
	} else {
		id := lookupID(value)
		if id == "" {
			return nil
		}
		out = resource.NewRecord(r.fetcher, model, id)
	}
	if r.compat != nil {
		if typ, ok := adapterTypes[model]; ok {
			return compat.AdaptValue(typ, out)
		}
	}
	return out
}

func lookupID(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if id, ok := v["id"]; ok && id != nil {
			return strings.TrimSpace(fmt.Sprint(id))
		}
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func lookupIDs(value any) []string {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			items = append(items, s)
		}
	}
	var out []string
	for _, item := range items {
		if id := lookupID(item); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (r *Resolver) coerceMenu(value any) any {
	id, ok := value.(string)
	if !ok || id == "" {
		return nil
	}
	for _, candidate := range []string{id, strings.ReplaceAll(id, "_", "-"), strings.ReplaceAll(id, "-", "_")} {
		raw, ok := r.menus[candidate]
		if !ok || raw == nil {
			continue
		}
		data, _ := raw.(map[string]any)
		if r.compat != nil {
			data = compat.AdaptObject("menu", data)
		}
		return &Menu{ID: candidate, Data: data}
	}
	return nil
}

// coerceSchemeGroup types each scheme of a color scheme group. Entries
// declared as colors by the field definition are parsed; without a
// definition every string entry is.
func coerceSchemeGroup(field schema.Field, value any) any {
	schemes, ok := value.(map[string]any)
	if !ok {
		return cloneValue(value)
	}
	colorIDs := map[string]bool{}
	for _, def := range field.Definition {
		if def.Type == schema.TypeColor {
			colorIDs[def.ID] = true
		}
	}
	isColor := func(id string) bool {
		return len(field.Definition) == 0 || colorIDs[id]
	}
	coerceEntries := func(entries map[string]any) map[string]any {
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			if isColor(k) {
				out[k] = coerceColor(v)
			} else {
				out[k] = cloneValue(v)
			}
		}
		return out
	}

	out := make(map[string]any, len(schemes))
	for id, raw := range schemes {
		scheme, ok := raw.(map[string]any)
		if !ok {
			out[id] = cloneValue(raw)
			continue
		}
		if inner, ok := scheme["settings"].(map[string]any); ok {
			copied := cloneMap(scheme)
			copied["settings"] = coerceEntries(inner)
			out[id] = copied
			continue
		}
		out[id] = coerceEntries(scheme)
	}
	return out
}

// MergeDefaults returns tree with the schema defaults filled in for missing
// keys.
func MergeDefaults(tree map[string]any, sections []schema.Section) map[string]any {
	out := schema.Defaults(sections)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range tree {
		out[k] = v
	}
	return out
}

// ResolveAll forces every deferred value in a resolved tree concurrently.
// Values memoize, so later template access does no I/O.
func ResolveAll(ctx context.Context, tree map[string]any) error {
	var pending []deferred
	collect(tree, &pending)
	if len(pending) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, res := range pending {
		g.Go(func() error {
			if _, err := res.Resolve(ctx); err != nil {
				return fmt.Errorf("settings: resolve deferred value: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

type deferred interface {
	Resolve(ctx context.Context) (any, error)
}

func collect(v any, out *[]deferred) {
	switch x := v.(type) {
	case deferred:
		*out = append(*out, x)
	case map[string]any:
		for _, item := range x {
			collect(item, out)
		}
	case []any:
		for _, item := range x {
			collect(item, out)
		}
	}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}
