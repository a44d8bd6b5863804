package sections

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/liquid"
	"github.com/goliatone/go-storefront/pkg/resolver"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/schema"
	"github.com/goliatone/go-storefront/pkg/settings"
	"github.com/goliatone/go-storefront/pkg/store"
)

// Renderer renders a template config. The engine package provides it.
type Renderer interface {
	RenderConfig(ctx context.Context, cfg *store.Config, data map[string]any) (*liquid.Result, error)
}

// SchemaLookup returns the schema for a section type, or nil when the type
// has none.
type SchemaLookup func(ctx context.Context, typ string) (*schema.SectionSchema, error)

// Assembled is a section ready to render.
type Assembled struct {
	ID      string
	Section Section
	Schema  *schema.SectionSchema
	// Settings resolves the object templates see as `section`: id, type,
	// typed settings, and typed blocks. It runs once, on first use.
	Settings *resource.Lazy[map[string]any]
	Tag      string
	Class    string
}

// Assembler builds and renders sections for one request.
type Assembler struct {
	resolver *resolver.Resolver
	settings *settings.Resolver
	renderer Renderer
	compat   *compat.Adapter
	recorder diagnostics.Recorder
	locale   string

	mu      sync.Mutex
	schemas map[string]*resource.Lazy[*schema.SectionSchema]

	translatorOnce sync.Once
	translator     compat.Translator
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCompat enables compatibility wrappers and schema translation.
func WithCompat(a *compat.Adapter) Option {
	return func(as *Assembler) { as.compat = a }
}

// WithRecorder reports section failures to rec.
func WithRecorder(rec diagnostics.Recorder) Option {
	return func(as *Assembler) { as.recorder = rec }
}

// WithLocale sets the locale used for schema label translation.
func WithLocale(code string) Option {
	return func(as *Assembler) { as.locale = code }
}

// NewAssembler wires an Assembler.
func NewAssembler(res *resolver.Resolver, set *settings.Resolver, renderer Renderer, opts ...Option) *Assembler {
	a := &Assembler{
		resolver: res,
		settings: set,
		renderer: renderer,
		schemas:  map[string]*resource.Lazy[*schema.SectionSchema]{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.recorder = diagnostics.OrNop(a.recorder)
	if a.settings == nil {
		a.settings = settings.New(nil)
	}
	return a
}

// SetRenderer installs the renderer after construction, for engines that
// need the assembler themselves.
func (a *Assembler) SetRenderer(r Renderer) { a.renderer = r }

// Compat returns the active adapter or nil.
func (a *Assembler) Compat() *compat.Adapter { return a.compat }

// Schema returns the cached schema for typ. Native sections keep it in
// sections/<type>.json; template-only sections carry it in a schema tag and
// are converted from the foreign format.
func (a *Assembler) Schema(ctx context.Context, typ string) (*schema.SectionSchema, error) {
	a.mu.Lock()
	lazy, ok := a.schemas[typ]
	if !ok {
		lazy = resource.NewLazy(func(ctx context.Context) (*schema.SectionSchema, error) {
			return a.loadSchema(ctx, typ)
		})
		a.schemas[typ] = lazy
	}
	a.mu.Unlock()
	return lazy.Get(ctx)
}

func (a *Assembler) loadSchema(ctx context.Context, typ string) (*schema.SectionSchema, error) {
	if typ == "" || a.resolver == nil {
		return nil, nil
	}
	cfg, err := a.resolver.Resolve(ctx, store.CategorySections, typ+".json")
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		out, err := schema.ParseSectionSchema([]byte(cfg.FileData))
		if err != nil {
			return nil, fmt.Errorf("sections: schema %s: %w", cfg.FilePath, err)
		}
		return out, nil
	}

	tpl, err := a.resolver.Resolve(ctx, store.CategorySections, typ+".liquid")
	if err != nil || tpl == nil || a.renderer == nil {
		return nil, err
	}
	// Each extraction renders into a fresh result, so no schema from an
	// earlier render can leak in.
	res, err := a.renderer.RenderConfig(ctx, tpl, nil)
	if err != nil {
		// a schema captured before the failure is still usable
		a.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindRenderError, Path: tpl.FilePath, Message: "schema extraction", Err: err})
	}
	if res == nil || !res.HasSchema {
		return nil, nil
	}
	adapter := a.compat
	if adapter == nil {
		adapter = compat.New(compat.WithRecorder(a.recorder))
	}
	out, err := adapter.ConvertSectionSchema(ctx, tpl.FilePath, []byte(res.Schema), a.schemaTranslator(ctx))
	if err != nil {
		a.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindConfigParseError, Path: tpl.FilePath, Message: "malformed section schema", Err: err})
		return nil, nil
	}
	return out, nil
}

func (a *Assembler) schemaTranslator(ctx context.Context) compat.Translator {
	a.translatorOnce.Do(func() {
		if a.compat == nil || a.resolver == nil {
			return
		}
		a.translator = a.compat.SchemaTranslator(ctx, a.resolver.Store(), a.locale)
	})
	return a.translator
}

// Assemble returns the group's sections in group order with their schemas.
// Settings stay unresolved until first use. lookup defaults to a.Schema.
func (a *Assembler) Assemble(ctx context.Context, group *Group, lookup SchemaLookup) ([]Assembled, error) {
	if group == nil {
		return nil, nil
	}
	if lookup == nil {
		lookup = a.Schema
	}
	for _, id := range group.Missing {
		a.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindSectionError,
			Message: fmt.Sprintf("group %q orders unknown section %q", group.Name, id),
		})
	}
	out := make([]Assembled, 0, len(group.Sections))
	for _, section := range group.Sections {
		sch, err := lookup(ctx, section.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, a.assembled(section, sch))
	}
	return out, nil
}

func (a *Assembler) assembled(section Section, sch *schema.SectionSchema) Assembled {
	tag, class := "div", ""
	if sch != nil {
		if sch.Tag != "" {
			tag = sch.Tag
		}
		class = sch.Class
	}
	return Assembled{
		ID:      section.ID,
		Section: section,
		Schema:  sch,
		Tag:     tag,
		Class:   class,
		Settings: resource.NewLazy(func(ctx context.Context) (map[string]any, error) {
			return a.resolveSection(ctx, section, sch), nil
		}),
	}
}

func (a *Assembler) resolveSection(ctx context.Context, section Section, sch *schema.SectionSchema) map[string]any {
	fields := sch.SettingsSections()
	blocks := make([]any, 0, len(section.Blocks))
	for _, b := range section.Blocks {
		if b.Disabled {
			continue
		}
		var blockFields []schema.Section
		if sch != nil {
			if bs, ok := sch.Block(b.Type); ok {
				blockFields = []schema.Section{{Label: bs.Label, Fields: bs.Fields}}
			}
		}
		block := map[string]any{
			"id":       b.ID,
			"type":     b.Type,
			"settings": a.settings.Resolve(ctx, settings.MergeDefaults(b.Settings, blockFields), blockFields),
		}
		if a.compat != nil {
			block["shopify_attributes"] = fmt.Sprintf(`data-block-id="%s"`, b.ID)
		}
		blocks = append(blocks, block)
	}
	return map[string]any{
		"id":       section.ID,
		"type":     section.Type,
		"settings": a.settings.Resolve(ctx, settings.MergeDefaults(section.Settings, fields), fields),
		"blocks":   blocks,
	}
}

// Static assembles a single section of typ with schema defaults only, as
// rendered by the section tag.
func (a *Assembler) Static(ctx context.Context, typ string) (Assembled, error) {
	sch, err := a.Schema(ctx, typ)
	if err != nil {
		return Assembled{}, err
	}
	return a.assembled(Section{ID: typ, Type: typ}, sch), nil
}

// WrapperPrefix is the id and class prefix of section wrappers.
func (a *Assembler) WrapperPrefix() string {
	if a.compat != nil {
		return "shopify-section"
	}
	return "swell-section"
}

func wrapperClass(prefix, class string) string {
	return strings.TrimSpace(prefix + " " + class)
}
