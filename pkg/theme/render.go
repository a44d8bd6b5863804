package theme

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// Content types of rendered output.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// Output is a rendered page or page template.
type Output struct {
	Body        string
	ContentType string
	// Layout names the layout chosen by the page; empty means none.
	Layout string
}

// RenderPage renders a page and wraps it in its layout.
func (t *Theme) RenderPage(ctx context.Context, pageID string, data map[string]any) (*Output, error) {
	ctx, span := t.tracer.Start(ctx, "theme.RenderPage", trace.WithAttributes(attribute.String("page.id", pageID)))
	defer span.End()

	out, err := t.RenderPageTemplate(ctx, pageID, data)
	if err != nil {
		return nil, fail(span, err)
	}
	if out.ContentType != ContentTypeHTML || out.Layout == "" {
		return out, nil
	}
	body, err := t.RenderLayout(ctx, out.Layout, out.Body, t.pageData(pageID, data))
	if err != nil {
		return nil, fail(span, err)
	}
	out.Body = body
	return out, nil
}

// RenderPageTemplate renders a page without its layout. Section group pages
// render their allowed sections; template pages render through the engine;
// other JSON pages render as JSON.
func (t *Theme) RenderPageTemplate(ctx context.Context, pageID string, data map[string]any) (*Output, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	ctx, span := t.tracer.Start(ctx, "theme.RenderPageTemplate", trace.WithAttributes(attribute.String("page.id", pageID)))
	defer span.End()

	cfg, err := t.pageConfig(ctx, pageID)
	if err != nil {
		return nil, fail(span, err)
	}
	t.globals.Page["id"] = pageID
	data = t.pageData(pageID, data)

	if cfg.IsJSON() {
		if !gjson.Valid(cfg.FileData) {
			return nil, fail(span, &themeerr.ConfigParseError{Path: cfg.FilePath, Err: errors.New("malformed json")})
		}
		if isSectionGroup(cfg) {
			return t.renderGroupPage(ctx, pageID, cfg, data)
		}
		res, err := t.engine.RenderConfig(ctx, cfg, data)
		if err != nil {
			return nil, fail(span, err)
		}
		return &Output{Body: res.Output, ContentType: ContentTypeJSON}, nil
	}

	res, err := t.engine.RenderConfig(ctx, cfg, data)
	if err != nil {
		if themeerr.IsFatal(err) {
			return nil, fail(span, err)
		}
		t.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindRenderError, Path: cfg.FilePath, Err: err})
		return &Output{Body: sections.Comment("render error", err), ContentType: ContentTypeHTML, Layout: DefaultLayout}, nil
	}
	layout := DefaultLayout
	if res.LayoutSet {
		layout = res.Layout
	}
	return &Output{Body: res.Output, ContentType: ContentTypeHTML, Layout: layout}, nil
}

func (t *Theme) renderGroupPage(ctx context.Context, pageID string, cfg *store.Config, data map[string]any) (*Output, error) {
	list, err := t.pageSections(ctx, pageID, cfg)
	if err != nil {
		return nil, err
	}
	parts, err := t.assembler.RenderAll(ctx, list, data)
	if err != nil {
		return nil, err
	}
	return &Output{Body: strings.Join(parts, ""), ContentType: ContentTypeHTML, Layout: groupLayout(cfg)}, nil
}

// RenderLayout renders the named layout around content. Layout failures
// degrade to the bare content preceded by an HTML comment.
func (t *Theme) RenderLayout(ctx context.Context, name, content string, data map[string]any) (string, error) {
	if err := t.Load(ctx); err != nil {
		return "", err
	}
	ctx, span := t.tracer.Start(ctx, "theme.RenderLayout", trace.WithAttributes(attribute.String("layout.name", name)))
	defer span.End()

	cfg, err := t.resolver.Resolve(ctx, store.CategoryLayouts, name+".liquid")
	if err != nil {
		return "", fail(span, err)
	}
	if cfg == nil {
		return "", fail(span, themeerr.NotFound("layout", name))
	}
	scope := make(map[string]any, len(data)+2)
	for k, v := range data {
		scope[k] = v
	}
	scope["content_for_layout"] = content
	if t.compat != nil {
		scope["content_for_header"] = ""
	}
	res, err := t.engine.RenderConfig(ctx, cfg, scope)
	if err != nil {
		if themeerr.IsFatal(err) {
			return "", fail(span, err)
		}
		t.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindRenderError, Path: cfg.FilePath, Message: "layout", Err: err})
		return sections.Comment("layout error", err) + content, nil
	}
	return res.Output, nil
}

// pageConfig resolves a page, reporting a miss as NotFound.
func (t *Theme) pageConfig(ctx context.Context, pageID string) (*store.Config, error) {
	cfg, err := t.resolver.Resolve(ctx, store.CategoryPages, pageID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, themeerr.NotFound("page", pageID)
	}
	return cfg, nil
}

// pageData copies data, adapting page resources in compatibility mode.
func (t *Theme) pageData(pageID string, data map[string]any) map[string]any {
	if t.compat != nil {
		return t.compat.AdaptPageData(pageID, data)
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func isSectionGroup(cfg *store.Config) bool {
	return gjson.Get(cfg.FileData, "sections").Exists()
}

// groupLayout reads the layout of a section group page: a name, false for
// none, or the default when absent.
func groupLayout(cfg *store.Config) string {
	layout := gjson.Get(cfg.FileData, "layout")
	switch layout.Type {
	case gjson.String:
		return layout.String()
	case gjson.False:
		return ""
	}
	return DefaultLayout
}
