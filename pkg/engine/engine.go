// Package engine extends the liquid interpreter with the theme dialect:
// section, layout, include, render, form, paginate, javascript, style,
// schema, and sections tags plus the color, date, font, money, image, and
// translation filters.
//
// An Engine belongs to one request. It carries the request globals and the
// collaborators the tags need (template resolver, section assembler, locale
// resolver, money formatter). Parsed templates are cached by path and
// content, so an engine can be reused while configs stay unchanged.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/liquid"
	"github.com/goliatone/go-storefront/pkg/locale"
	"github.com/goliatone/go-storefront/pkg/money"
	"github.com/goliatone/go-storefront/pkg/resolver"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// DefaultAssetBase prefixes asset_url output.
const DefaultAssetBase = "/assets"

// Engine renders theme templates.
type Engine struct {
	liquid   *liquid.Engine
	resolver *resolver.Resolver
	recorder diagnostics.Recorder
	globals  map[string]any
	editor   bool

	assembler *sections.Assembler
	locale    *locale.Resolver
	money     *money.Formatter
	assetBase string
	assets    func(string) string
	fontBase  string

	mu        sync.RWMutex
	templates map[string]*liquid.Template
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder reports degraded renders and warnings to rec.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithGlobals sets the values visible from every template scope, including
// isolated render partials.
func WithGlobals(globals map[string]any) Option {
	return func(e *Engine) { e.globals = globals }
}

// WithEditorMode renders markup for the visual editor.
func WithEditorMode(enabled bool) Option {
	return func(e *Engine) { e.editor = enabled }
}

// WithAssembler installs the section assembler used by the section and
// sections tags.
func WithAssembler(a *sections.Assembler) Option {
	return func(e *Engine) { e.assembler = a }
}

// WithLocale installs the translation resolver behind the t filter.
func WithLocale(l *locale.Resolver) Option {
	return func(e *Engine) { e.locale = l }
}

// WithMoney sets the money formatter. The default formats USD for en-US.
func WithMoney(f *money.Formatter) Option {
	return func(e *Engine) { e.money = f }
}

// WithAssetBase sets the prefix used by asset_url.
func WithAssetBase(base string) Option {
	return func(e *Engine) { e.assetBase = base }
}

// WithAssetResolver maps asset_url inputs to URLs before the asset base
// applies. An empty result falls through to the base.
func WithAssetResolver(fn func(string) string) Option {
	return func(e *Engine) { e.assets = fn }
}

// WithFontBase sets the prefix of self-hosted font files in font_face.
func WithFontBase(base string) Option {
	return func(e *Engine) { e.fontBase = base }
}

// New builds an engine resolving includes and sections through res.
func New(res *resolver.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  res,
		assetBase: DefaultAssetBase,
		templates: make(map[string]*liquid.Template),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.recorder = diagnostics.OrNop(e.recorder)
	if e.globals == nil {
		e.globals = map[string]any{}
	}
	if e.money == nil {
		e.money = money.MustNew("USD", "en-US")
	}
	e.liquid = liquid.New(liquid.WithWarningHandler(func(ctx context.Context, file, message string) {
		e.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindRenderError, Path: file, Message: message})
	}))
	registerTags(e)
	registerFilters(e)
	return e
}

// SetAssembler installs the assembler after construction; the assembler
// itself renders through the engine.
func (e *Engine) SetAssembler(a *sections.Assembler) { e.assembler = a }

// SetLocale installs the translation resolver after construction.
func (e *Engine) SetLocale(l *locale.Resolver) { e.locale = l }

// Liquid exposes the underlying interpreter for registering extra tags or
// filters.
func (e *Engine) Liquid() *liquid.Engine { return e.liquid }

// Globals returns the request globals.
func (e *Engine) Globals() map[string]any { return e.globals }

// EditorMode reports whether renders target the visual editor.
func (e *Engine) EditorMode() bool { return e.editor }

// Render renders text and never fails: errors degrade to an HTML comment
// and are recorded as diagnostics.
func (e *Engine) Render(ctx context.Context, text string, data map[string]any) string {
	out, err := e.RenderE(ctx, text, data)
	if err != nil {
		e.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindRenderError, Message: "inline template", Err: err})
		return sections.Comment("render error", err)
	}
	return out
}

// RenderE renders text and returns the failure, if any, as a
// *themeerr.RenderError.
func (e *Engine) RenderE(ctx context.Context, text string, data map[string]any) (string, error) {
	res, err := e.render(ctx, "", text, data)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// RenderString renders a template string, as used for translation values.
func (e *Engine) RenderString(ctx context.Context, src string, data map[string]any) (string, error) {
	return e.RenderE(ctx, src, data)
}

// RenderConfig renders a template config. The result carries the chosen
// layout and captured schema alongside the output. Each call uses fresh
// registers so concurrent section renders never share state.
func (e *Engine) RenderConfig(ctx context.Context, cfg *store.Config, data map[string]any) (*liquid.Result, error) {
	if cfg == nil {
		return nil, themeerr.NotFound("template", "")
	}
	return e.render(ctx, cfg.FilePath, cfg.FileData, data)
}

func (e *Engine) render(ctx context.Context, path, src string, data map[string]any) (*liquid.Result, error) {
	ctx, err := enter(ctx)
	if err != nil {
		return nil, &themeerr.RenderError{Path: path, Err: err}
	}
	tpl, err := e.parse(path, src)
	if err != nil {
		return nil, renderError(path, err)
	}
	res, err := tpl.Render(ctx, data, liquid.RenderOptions{
		Globals:    e.globals,
		Registers:  map[string]any{},
		EditorMode: e.editor,
	})
	if err != nil {
		return res, renderError(path, err)
	}
	return res, nil
}

// parse returns the cached template for path and src.
func (e *Engine) parse(path, src string) (*liquid.Template, error) {
	key := path + "\x00" + contentHash(src)
	e.mu.RLock()
	tpl, ok := e.templates[key]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}
	tpl, err := e.liquid.Parse(src, path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.templates[key] = tpl
	e.mu.Unlock()
	return tpl, nil
}

// component resolves and parses a component template for include and
// render.
func (e *Engine) component(ctx context.Context, name string) (*liquid.Template, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("engine: resolver is not configured")
	}
	cfg, err := e.resolver.Resolve(ctx, store.CategoryComponents, name+".liquid")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, themeerr.NotFound("component", name)
	}
	return e.parse(cfg.FilePath, cfg.FileData)
}

// renderError converts interpreter failures into a RenderError, keeping
// fatal errors untouched so callers can still match them.
func renderError(path string, err error) error {
	if themeerr.IsFatal(err) {
		return err
	}
	var existing *themeerr.RenderError
	if errors.As(err, &existing) {
		return err
	}
	out := &themeerr.RenderError{Path: path, Err: err}
	var lineErr *liquid.LineError
	if errors.As(err, &lineErr) {
		out.Line = lineErr.Line
		out.Err = lineErr.Err
	}
	return out
}

type depthKey struct{}

// enter bounds nested renders started through RenderConfig, such as a
// section tag inside a section.
func enter(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= liquid.MaxDepth {
		return ctx, fmt.Errorf("engine: nesting deeper than %d", liquid.MaxDepth)
	}
	return context.WithValue(ctx, depthKey{}, depth+1), nil
}

func contentHash(src string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(src))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

func (e *Engine) warn(s *liquid.State, err error) {
	e.recorder.Record(s.Ctx, diagnostics.Event{
		Kind: diagnostics.KindRenderError,
		Path: s.File(),
		Err:  err,
	})
}
