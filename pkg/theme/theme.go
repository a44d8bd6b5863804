// Package theme coordinates one storefront request: it loads the theme
// settings, wires the template engine, section assembler, settings resolver,
// locale resolver, and compatibility adapter, and exposes the page, layout,
// and section operations used by the storefront and the visual editor.
//
// A Theme serves a single request. It is created cheaply; the first
// operation loads the settings and locale configs and builds the globals.
package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	gotheme "github.com/goliatone/go-theme"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/engine"
	"github.com/goliatone/go-storefront/pkg/locale"
	"github.com/goliatone/go-storefront/pkg/money"
	"github.com/goliatone/go-storefront/pkg/resolver"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/schema"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/settings"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

const tracerName = "github.com/goliatone/go-storefront/pkg/theme"

const (
	// DefaultLayout is used by pages without a layout tag.
	DefaultLayout = "theme"
	// DefaultLocale applies when neither the request nor the store names one.
	DefaultLocale = "en-US"
	// DefaultCurrency applies when neither the request nor the store names one.
	DefaultCurrency = "USD"
)

// Request describes the storefront request being served.
type Request struct {
	Path     string
	Host     string
	Query    map[string]string
	Page     int
	Locale   string
	Currency string
}

// Map exposes the request to templates as `request`.
func (r Request) Map() map[string]any {
	query := make(map[string]any, len(r.Query))
	for k, v := range r.Query {
		query[k] = v
	}
	page := r.Page
	if page < 1 {
		page = 1
	}
	return map[string]any{
		"path":     r.Path,
		"host":     r.Host,
		"query":    query,
		"page":     page,
		"locale":   r.Locale,
		"currency": r.Currency,
	}
}

// Globals is the per-request value bag visible to every template.
type Globals struct {
	RequestID string
	Store     map[string]any
	Settings  map[string]any
	Menus     map[string]any
	Page      map[string]any
	Configs   map[string]any
	Theme     map[string]any
	Request   Request
}

// Map returns the template view of the globals.
func (g *Globals) Map() map[string]any {
	return map[string]any{
		"request_id": g.RequestID,
		"store":      g.Store,
		"settings":   g.Settings,
		"menus":      g.Menus,
		"page":       g.Page,
		"configs":    g.Configs,
		"theme":      g.Theme,
		"request":    g.Request.Map(),
		"locale":     g.Request.Locale,
		"currency":   g.Request.Currency,
	}
}

// Option customises a Theme.
type Option func(*Theme)

// WithFetcher sets the storefront fetcher behind lookup settings.
func WithFetcher(f resource.Fetcher) Option {
	return func(t *Theme) { t.fetcher = f }
}

// WithRecorder reports every degraded render and swallowed error to rec.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(t *Theme) { t.recorder = rec }
}

// WithStoreSettings sets the store record exposed as `store`. Its
// shopify_compatibility flag enables compatibility mode unless
// WithCompatibility overrides it.
func WithStoreSettings(values map[string]any) Option {
	return func(t *Theme) { t.storeSettings = values }
}

// WithMenus sets the navigation menus keyed by id.
func WithMenus(menus map[string]any) Option {
	return func(t *Theme) { t.menus = menus }
}

// WithRequest describes the request being served.
func WithRequest(r Request) Option {
	return func(t *Theme) { t.request = r }
}

// WithCompatibility forces compatibility mode on or off.
func WithCompatibility(enabled bool) Option {
	return func(t *Theme) { t.compatMode = &enabled }
}

// WithEditorMode renders markup for the visual editor.
func WithEditorMode(enabled bool) Option {
	return func(t *Theme) { t.editor = enabled }
}

// WithTracerProvider sets the provider for render spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Theme) {
		if tp != nil {
			t.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMoney overrides the formatter derived from the request currency and
// locale.
func WithMoney(f *money.Formatter) Option {
	return func(t *Theme) { t.money = f }
}

// WithAssetBase sets the prefix used by asset_url.
func WithAssetBase(base string) Option {
	return func(t *Theme) { t.assetBase = base }
}

// WithRequestID sets the request id instead of generating one.
func WithRequestID(id string) Option {
	return func(t *Theme) { t.requestID = id }
}

// Theme renders one storefront request.
type Theme struct {
	store         store.Store
	fetcher       resource.Fetcher
	recorder      diagnostics.Recorder
	tracer        trace.Tracer
	storeSettings map[string]any
	menus         map[string]any
	request       Request
	compatMode    *bool
	editor        bool
	money         *money.Formatter
	assetBase     string
	requestID     string
	selector      gotheme.ThemeSelector
	themeName     string
	themeVariant  string

	once           sync.Once
	initialiseErr  error
	globals        *Globals
	scope          map[string]any
	compat         *compat.Adapter
	resolver       *resolver.Resolver
	settings       *settings.Resolver
	engine         *engine.Engine
	assembler      *sections.Assembler
	locale         *locale.Resolver
	settingsSchema []schema.Section
	appearance     *gotheme.RendererConfig
}

// New constructs a Theme reading configs from st.
func New(st store.Store, options ...Option) *Theme {
	t := &Theme{store: st}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(t)
	}
	t.recorder = diagnostics.OrNop(t.recorder)
	if t.tracer == nil {
		t.tracer = otel.Tracer(tracerName)
	}
	if t.storeSettings == nil {
		t.storeSettings = map[string]any{}
	}
	if t.menus == nil {
		t.menus = map[string]any{}
	}
	if t.requestID == "" {
		t.requestID = uuid.NewString()
	}
	t.request.Locale = firstNonEmpty(t.request.Locale, stringSetting(t.storeSettings, "locale"), DefaultLocale)
	t.request.Currency = firstNonEmpty(t.request.Currency, stringSetting(t.storeSettings, "currency"), DefaultCurrency)
	return t
}

// Load performs the one-time setup. Operations call it implicitly; calling
// it first surfaces config errors early.
func (t *Theme) Load(ctx context.Context) error {
	t.once.Do(func() {
		t.initialiseErr = t.initialise(ctx)
	})
	return t.initialiseErr
}

func (t *Theme) initialise(ctx context.Context) error {
	if t.store == nil {
		return fmt.Errorf("theme: store is required")
	}
	ctx, span := t.tracer.Start(ctx, "theme.Load")
	defer span.End()

	switch {
	case t.compatMode != nil && *t.compatMode:
		t.compat = compat.New(compat.WithRecorder(t.recorder))
	case t.compatMode == nil:
		t.compat = compat.FromSettings(t.storeSettings, compat.WithRecorder(t.recorder))
	}
	span.SetAttributes(attribute.Bool("theme.compatibility", t.compat != nil))

	t.resolver = resolver.New(t.store, resolver.WithCompat(t.compat), resolver.WithRecorder(t.recorder))
	t.settings = settings.New(t.fetcher,
		settings.WithMenus(t.menus),
		settings.WithCompat(t.compat),
		settings.WithRecorder(t.recorder),
	)

	t.appearance = t.selectAppearance(ctx)

	fields, err := t.loadSettingsSchema(ctx)
	if err != nil {
		return fail(span, err)
	}
	t.settingsSchema = fields
	data, err := t.loadSettingsData(ctx)
	if err != nil {
		return fail(span, err)
	}

	t.globals = &Globals{
		RequestID: t.requestID,
		Store:     t.storeSettings,
		Settings:  t.settings.Resolve(ctx, settings.MergeDefaults(data, fields), fields),
		Menus:     t.menus,
		Page:      map[string]any{},
		Configs:   map[string]any{"settings_data": data},
		Theme:     appearanceMap(t.appearance),
		Request:   t.request,
	}
	t.scope = t.globals.Map()

	if t.money == nil {
		t.money, err = money.New(t.request.Currency, t.request.Locale)
		if err != nil {
			t.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindResourceError, Message: "money formatter", Err: err})
			t.money = money.MustNew(DefaultCurrency, DefaultLocale)
		}
	}
	engineOpts := []engine.Option{
		engine.WithRecorder(t.recorder),
		engine.WithGlobals(t.scope),
		engine.WithEditorMode(t.editor),
		engine.WithMoney(t.money),
	}
	if t.assetBase != "" {
		engineOpts = append(engineOpts, engine.WithAssetBase(t.assetBase))
	}
	if t.appearance != nil {
		engineOpts = append(engineOpts, engine.WithAssetResolver(t.appearance.AssetURL))
	}
	t.engine = engine.New(t.resolver, engineOpts...)
	t.assembler = sections.NewAssembler(t.resolver, t.settings, t.engine,
		sections.WithCompat(t.compat),
		sections.WithRecorder(t.recorder),
		sections.WithLocale(t.request.Locale),
	)
	t.engine.SetAssembler(t.assembler)

	tree := locale.LoadTree(ctx, t.store, t.request.Locale, t.compat, t.recorder)
	t.locale = locale.New(tree, t.request.Locale,
		locale.WithRenderer(t.engine),
		locale.WithRecorder(t.recorder),
	)
	t.engine.SetLocale(t.locale)
	return nil
}

func (t *Theme) loadSettingsSchema(ctx context.Context) ([]schema.Section, error) {
	cfg, err := t.resolver.Resolve(ctx, store.CategoryConfig, "settings_schema.json")
	if err != nil || cfg == nil {
		return nil, err
	}
	var fields []schema.Section
	if t.compat != nil {
		translate := t.compat.SchemaTranslator(ctx, t.store, t.request.Locale)
		fields, err = t.compat.ConvertSettingsSchema(ctx, cfg.FilePath, []byte(cfg.FileData), translate)
	} else {
		fields, err = schema.ParseSettingsSchema([]byte(cfg.FileData))
	}
	if err != nil {
		return nil, &themeerr.ConfigParseError{Path: cfg.FilePath, Err: err}
	}
	return fields, nil
}

// loadSettingsData reads the saved settings. A preset named after the
// selected theme variant wins; otherwise a "current" object is used as is and
// a "current" name selects one of the presets.
func (t *Theme) loadSettingsData(ctx context.Context) (map[string]any, error) {
	cfg, err := t.resolver.Resolve(ctx, store.CategoryConfig, "settings_data.json")
	if err != nil {
		return nil, err
	}
	if cfg == nil || strings.TrimSpace(cfg.FileData) == "" {
		return map[string]any{}, nil
	}
	doc := map[string]any{}
	if err := json.Unmarshal([]byte(cfg.FileData), &doc); err != nil {
		return nil, &themeerr.ConfigParseError{Path: cfg.FilePath, Err: err}
	}
	presets, _ := doc["presets"].(map[string]any)
	if t.appearance != nil && t.appearance.Variant != "" {
		if preset, ok := presets[t.appearance.Variant].(map[string]any); ok {
			return preset, nil
		}
	}
	current, ok := doc["current"]
	if !ok {
		return doc, nil
	}
	switch v := current.(type) {
	case map[string]any:
		return v, nil
	case string:
		if preset, ok := presets[v].(map[string]any); ok {
			return preset, nil
		}
		t.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindConfigParseError,
			Path:    cfg.FilePath,
			Message: fmt.Sprintf("settings preset %q not found", v),
		})
	}
	return map[string]any{}, nil
}

// Globals returns the request globals, loading the theme if needed.
func (t *Theme) Globals(ctx context.Context) (*Globals, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t.globals, nil
}

// Engine returns the request's template engine.
func (t *Theme) Engine(ctx context.Context) (*engine.Engine, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t.engine, nil
}

// Compatible reports whether compatibility mode is active.
func (t *Theme) Compatible(ctx context.Context) bool {
	return t.Load(ctx) == nil && t.compat != nil
}

// SettingsSchema returns the theme settings field schema.
func (t *Theme) SettingsSchema(ctx context.Context) ([]schema.Section, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t.settingsSchema, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func stringSetting(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}
