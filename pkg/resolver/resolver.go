// Package resolver maps logical template names to theme config records.
package resolver

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
)

// Extensions lists the native file extensions tried in order when a name
// carries none.
var Extensions = []string{".json", ".liquid"}

// Resolver finds the config for a category and name.
type Resolver struct {
	store    store.Store
	compat   *compat.Adapter
	recorder diagnostics.Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCompat enables the compatibility path fallback. A nil adapter keeps it
// off.
func WithCompat(a *compat.Adapter) Option {
	return func(r *Resolver) { r.compat = a }
}

// WithRecorder reports compatibility fallbacks to rec.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// New builds a Resolver over st.
func New(st store.Store, opts ...Option) *Resolver {
	r := &Resolver{store: st}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.recorder = diagnostics.OrNop(r.recorder)
	return r
}

// Store exposes the underlying config store.
func (r *Resolver) Store() store.Store { return r.store }

// Compat returns the active adapter or nil.
func (r *Resolver) Compat() *compat.Adapter { return r.compat }

// Candidates lists the native paths tried for name, in order.
func Candidates(category store.Category, name string) []string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if ext := path.Ext(name); ext == ".json" || ext == ".liquid" {
		return []string{store.ThemePath(category, name)}
	}
	out := make([]string, 0, len(Extensions))
	for _, ext := range Extensions {
		out = append(out, store.ThemePath(category, name+ext))
	}
	return out
}

// Resolve returns the first config found for name: the explicit extension
// when given, then .json, then .liquid, then the compatibility paths when
// compatibility mode is active. A total miss returns nil, nil.
func (r *Resolver) Resolve(ctx context.Context, category store.Category, name string) (*store.Config, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("resolver: store is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	for _, p := range Candidates(category, name) {
		cfg, err := r.get(ctx, p)
		if err != nil || cfg != nil {
			return cfg, err
		}
	}
	if r.compat == nil {
		return nil, nil
	}

	base, ext := name, ""
	if e := path.Ext(name); e == ".json" || e == ".liquid" {
		base, ext = strings.TrimSuffix(name, e), e
	}
	for _, p := range r.compat.Paths(category, base) {
		if ext != "" && !strings.HasSuffix(p, ext) {
			continue
		}
		cfg, err := r.get(ctx, p)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			r.recorder.Record(ctx, diagnostics.Event{
				Kind:    diagnostics.KindCompatibilityFallback,
				Path:    p,
				Message: fmt.Sprintf("resolved %s/%s through compatibility path", category, name),
			})
			return cfg, nil
		}
	}
	return nil, nil
}

// GetConfigByType is Resolve keyed by config type ("section", "pages", ...).
// An unknown type is a miss, reported to the recorder.
func (r *Resolver) GetConfigByType(ctx context.Context, typ, name string) (*store.Config, error) {
	category, ok := store.ParseCategory(typ)
	if !ok {
		r.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindResourceError,
			Message: fmt.Sprintf("unknown config type %q for %q", typ, name),
		})
		return nil, nil
	}
	return r.Resolve(ctx, category, name)
}

func (r *Resolver) get(ctx context.Context, p string) (*store.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, err := r.store.GetConfig(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("resolver: get %s: %w", p, err)
	}
	return cfg, nil
}
