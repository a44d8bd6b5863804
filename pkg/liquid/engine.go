// Package liquid is the template interpreter for theme files: a Liquid
// dialect with per-engine tag and filter registries, lazy values, and
// explicit render results.
//
// The interpreter ships the control-flow core (if, unless, case, for,
// assign, capture, cycle, increment, raw, comment, echo, liquid) and the
// standard filters. Theme-specific tags and filters are registered on top by
// the engine package.
package liquid

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TagParser builds a node from a tag token. Block tags consume their body
// through the parser.
type TagParser func(p *Parser, tok *Token) (Node, error)

// FilterFunc transforms an input value. Lazy inputs and arguments are
// resolved before the call.
type FilterFunc func(s *State, input any, args []any, kwargs map[string]any) (any, error)

type tagDef struct {
	parse TagParser
	raw   bool
}

// Options configure an Engine.
type Options struct {
	// StrictFilters turns unknown filters into render errors instead of
	// warnings.
	StrictFilters bool
	// OnWarning receives non-fatal problems such as unknown filters.
	OnWarning func(ctx context.Context, file, message string)
}

// Option mutates Options.
type Option func(*Options)

// WithStrictFilters enables strict filter lookup.
func WithStrictFilters() Option {
	return func(o *Options) { o.StrictFilters = true }
}

// WithWarningHandler installs a warning hook.
func WithWarningHandler(fn func(ctx context.Context, file, message string)) Option {
	return func(o *Options) { o.OnWarning = fn }
}

// Engine owns tag and filter registries. Registries are per engine; nothing
// is registered process-wide.
type Engine struct {
	opts Options

	mu      sync.RWMutex
	tags    map[string]tagDef
	filters map[string]FilterFunc
}

// New creates an engine with the core tags and standard filters.
func New(options ...Option) *Engine {
	e := &Engine{
		tags:    make(map[string]tagDef),
		filters: make(map[string]FilterFunc),
	}
	for _, opt := range options {
		if opt != nil {
			opt(&e.opts)
		}
	}
	registerCoreTags(e)
	registerStandardFilters(e)
	return e
}

// RegisterTag adds a tag. Duplicate names return an error.
func (e *Engine) RegisterTag(name string, parse TagParser) error {
	return e.registerTag(name, tagDef{parse: parse})
}

// RegisterRawTag adds a tag whose body is captured verbatim into Token.Body
// and never parsed.
func (e *Engine) RegisterRawTag(name string, parse TagParser) error {
	return e.registerTag(name, tagDef{parse: parse, raw: true})
}

func (e *Engine) registerTag(name string, def tagDef) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("liquid: tag name is required")
	}
	if def.parse == nil {
		return fmt.Errorf("liquid: tag %q parser is required", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tags[name]; exists {
		return fmt.Errorf("liquid: tag %q already registered", name)
	}
	e.tags[name] = def
	return nil
}

// MustRegisterTag panics on registration failure.
func (e *Engine) MustRegisterTag(name string, parse TagParser) {
	if err := e.RegisterTag(name, parse); err != nil {
		panic(err)
	}
}

// RegisterFilter adds a filter. Duplicate names return an error.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("liquid: filter name is required")
	}
	if fn == nil {
		return fmt.Errorf("liquid: filter %q function is required", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.filters[name]; exists {
		return fmt.Errorf("liquid: filter %q already registered", name)
	}
	e.filters[name] = fn
	return nil
}

// MustRegisterFilter panics on registration failure.
func (e *Engine) MustRegisterFilter(name string, fn FilterFunc) {
	if err := e.RegisterFilter(name, fn); err != nil {
		panic(err)
	}
}

// HasTag reports whether a tag is registered.
func (e *Engine) HasTag(name string) bool {
	_, ok := e.tag(name)
	return ok
}

// Filters returns the sorted filter names.
func (e *Engine) Filters() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.filters))
	for name := range e.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) tag(name string) (tagDef, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.tags[name]
	return def, ok
}

func (e *Engine) filter(name string) (FilterFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.filters[name]
	return fn, ok
}

func (e *Engine) rawTags() map[string]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]bool)
	for name, def := range e.tags {
		if def.raw {
			out[name] = true
		}
	}
	return out
}

// Template is a parsed template. It is immutable and safe to render
// concurrently.
type Template struct {
	engine *Engine
	path   string
	nodes  []Node
}

// Path returns the file path the template was parsed from.
func (t *Template) Path() string { return t.path }

// Parse parses src; path is used for error messages and as the render's
// current file.
func (e *Engine) Parse(src, path string) (*Template, error) {
	tokens, err := lex(src, e.rawTags())
	if err != nil {
		return nil, err
	}
	p := &Parser{engine: e, tokens: tokens}
	nodes, _, err := p.ParseBody()
	if err != nil {
		return nil, err
	}
	return &Template{engine: e, path: path, nodes: nodes}, nil
}

// RenderOptions configure one render.
type RenderOptions struct {
	// Globals are visible from every scope, including isolated renders.
	Globals map[string]any
	// Registers are shared with child states.
	Registers  map[string]any
	EditorMode bool
	// File overrides the template path as the current file.
	File string

	depth int
}

// Render evaluates the template with data as the base scope.
func (t *Template) Render(ctx context.Context, data map[string]any, opts RenderOptions) (*Result, error) {
	if opts.File == "" {
		opts.File = t.path
	}
	s := newState(ctx, t.engine, opts, data)
	out, err := RenderToString(s, t.nodes)
	if err == errBreak || err == errContinue {
		err = nil
	}
	s.result.Output = out
	return s.result, err
}

// Nodes returns the parsed nodes for embedding into another render.
func (t *Template) Nodes() []Node { return t.nodes }

// RenderString parses and renders src in one step.
func (e *Engine) RenderString(ctx context.Context, src string, data map[string]any, opts RenderOptions) (*Result, error) {
	tpl, err := e.Parse(src, opts.File)
	if err != nil {
		return nil, err
	}
	return tpl.Render(ctx, data, opts)
}

// RenderIn renders the template inside an existing state, sharing its scope
// stack.
func (t *Template) RenderIn(s *State, w *strings.Builder) error {
	return s.WithFile(t.path, func() error {
		return RenderNodes(s, w, t.nodes)
	})
}
