package engine

import (
	"context"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-storefront/pkg/compat"
	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/liquid"
	"github.com/goliatone/go-storefront/pkg/resource"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

func registerTags(e *Engine) {
	e.liquid.MustRegisterTag("section", e.parseSection)
	e.liquid.MustRegisterTag("sections", e.parseSections)
	e.liquid.MustRegisterTag("layout", parseLayout)
	e.liquid.MustRegisterTag("include", e.parsePartial(false))
	e.liquid.MustRegisterTag("render", e.parsePartial(true))
	e.liquid.MustRegisterTag("form", parseForm)
	e.liquid.MustRegisterTag("paginate", parsePaginate)
	e.liquid.MustRegisterTag("javascript", wrapBlock(`<script data-swell>`, `</script>`))
	e.liquid.MustRegisterTag("style", wrapBlock(`<style data-swell>`, `</style>`))
	if err := e.liquid.RegisterRawTag("schema", parseSchema); err != nil {
		panic(err)
	}
}

func nameMarkup(tok *liquid.Token) (string, error) {
	m, err := liquid.NewMarkup(tok.Markup)
	if err != nil {
		return "", err
	}
	name, err := m.Name()
	if err != nil {
		return "", fmt.Errorf("%s: %w", tok.Name, err)
	}
	return name, m.Expect()
}

// section renders one section with schema defaults and the globals only.
func (e *Engine) parseSection(_ *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	name, err := nameMarkup(tok)
	if err != nil {
		return nil, err
	}
	return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
		if e.assembler == nil {
			return fmt.Errorf("section %q: assembler is not configured", name)
		}
		static, err := e.assembler.Static(s.Ctx, name)
		if err != nil {
			return err
		}
		out, err := e.assembler.RenderSection(s.Ctx, static, nil)
		if err != nil {
			return err
		}
		w.WriteString(out)
		return nil
	}), nil
}

var layoutPrefixes = []string{
	store.Root + "/" + string(store.CategoryLayouts) + "/",
	store.Root + "/" + compat.CategoryDirs[store.CategoryLayouts] + "/",
}

func inLayout(file string) bool {
	for _, prefix := range layoutPrefixes {
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	return false
}

// sections renders a section group file inside a layout.
func (e *Engine) parseSections(_ *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	name, err := nameMarkup(tok)
	if err != nil {
		return nil, err
	}
	return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
		if !inLayout(s.File()) {
			return fmt.Errorf("sections %q: only valid inside a layout, not %q", name, s.File())
		}
		if e.assembler == nil || e.resolver == nil {
			return fmt.Errorf("sections %q: assembler is not configured", name)
		}
		cfg, err := e.resolver.Resolve(s.Ctx, store.CategorySections, name+".json")
		if err != nil {
			return err
		}
		if cfg == nil {
			e.warn(s, themeerr.NotFound("section group", name))
			return nil
		}
		group, err := sections.ParseGroupConfig(cfg)
		if err != nil {
			e.recorder.Record(s.Ctx, diagnostics.Event{Kind: diagnostics.KindConfigParseError, Path: cfg.FilePath, Err: err})
			return nil
		}
		out, err := e.assembler.RenderGroup(s.Ctx, group, nil)
		if err != nil {
			return err
		}
		id, class := GroupWrapper(e.assembler.Compat() != nil, cfg.FileData, name)
		fmt.Fprintf(w, `<div id="%s" class="%s">%s</div>`, html.EscapeString(id), html.EscapeString(class), out)
		return nil
	}), nil
}

// GroupWrapper returns the id and class of a section group container. The
// id encodes a hash of the group content, so it changes when the group is
// edited.
func GroupWrapper(compatible bool, content, group string) (id, class string) {
	hash := contentHash(content)
	if compatible {
		return "shopify-section-sections--" + hash + "__" + group, "shopify-section-group-" + group
	}
	return "swell-section-group--" + hash + "__" + group, "swell-section-group-" + group
}

func parseLayout(_ *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	name, err := nameMarkup(tok)
	if err != nil {
		return nil, err
	}
	if name == "none" {
		name = ""
	}
	return liquid.NodeFunc(func(s *liquid.State, _ *strings.Builder) error {
		s.SetLayout(name)
		return nil
	}), nil
}

func parseSchema(_ *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	body := tok.Body
	return liquid.NodeFunc(func(s *liquid.State, _ *strings.Builder) error {
		s.SetSchema(body)
		return nil
	}), nil
}

func wrapBlock(open, closing string) liquid.TagParser {
	return func(p *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
		body, err := p.ParseBlock(tok)
		if err != nil {
			return nil, err
		}
		return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
			w.WriteString(open)
			if err := liquid.RenderNodes(s, w, body); err != nil {
				return err
			}
			w.WriteString(closing)
			return nil
		}), nil
	}
}

// partial is the parsed markup of include and render:
// 'name' [with X [as alias]] [for X [as alias]] [, k: v...]
type partial struct {
	name     string
	alias    string
	with     liquid.Expr
	each     liquid.Expr
	args     []liquid.KeywordArg
	isolated bool
}

func (e *Engine) parsePartial(isolated bool) liquid.TagParser {
	return func(_ *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
		m, err := liquid.NewMarkup(tok.Markup)
		if err != nil {
			return nil, err
		}
		pt := &partial{isolated: isolated}
		if pt.name, err = m.Name(); err != nil {
			return nil, fmt.Errorf("%s: %w", tok.Name, err)
		}
	bindings:
		for {
			switch {
			case m.AcceptWord("with"):
				if pt.with, err = m.Value(); err != nil {
					return nil, err
				}
			case isolated && m.AcceptWord("for"):
				if pt.each, err = m.Value(); err != nil {
					return nil, err
				}
			default:
				break bindings
			}
			if m.AcceptWord("as") {
				if pt.alias, err = m.Ident(); err != nil {
					return nil, err
				}
			}
		}
		if pt.args, err = m.KeywordArgs(); err != nil {
			return nil, err
		}
		if err := m.Expect(); err != nil {
			return nil, err
		}
		if pt.alias == "" {
			pt.alias = path.Base(pt.name)
		}
		return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
			return e.renderPartial(s, w, pt)
		}), nil
	}
}

func (e *Engine) renderPartial(s *liquid.State, w *strings.Builder, pt *partial) error {
	if s.Depth() >= liquid.MaxDepth {
		return fmt.Errorf("%s %q: nesting deeper than %d", pt.kind(), pt.name, liquid.MaxDepth)
	}
	tpl, err := e.component(s.Ctx, pt.name)
	if err != nil {
		if themeerr.IsNotFound(err) {
			e.warn(s, err)
			return nil
		}
		return err
	}
	args := make(map[string]any, len(pt.args)+2)
	for _, kw := range pt.args {
		v, err := s.Eval(kw.Value)
		if err != nil {
			return err
		}
		args[kw.Name] = v
	}
	if pt.with != nil {
		v, err := s.Eval(pt.with)
		if err != nil {
			return err
		}
		args[pt.alias] = v
	}

	if !pt.isolated {
		s.Push(args)
		defer s.Pop()
		return tpl.RenderIn(s, w)
	}
	if pt.each == nil {
		return liquid.RenderNodes(s.Isolated(args, tpl.Path()), w, tpl.Nodes())
	}

	coll, err := s.EvalResolved(pt.each)
	if err != nil {
		return err
	}
	items := liquid.Enumerate(coll)
	loop := liquid.NewForLoop(pt.name, len(items), nil)
	for _, item := range items {
		loop.Advance()
		scope := make(map[string]any, len(args)+2)
		for k, v := range args {
			scope[k] = v
		}
		scope[pt.alias] = item
		scope["forloop"] = loop
		if err := liquid.RenderNodes(s.Isolated(scope, tpl.Path()), w, tpl.Nodes()); err != nil {
			return err
		}
	}
	return nil
}

func (pt *partial) kind() string {
	if pt.isolated {
		return "render"
	}
	return "include"
}

// form wraps its body in a form posting to the static descriptor of the
// named form. Unknown form ids fail at parse time.
func parseForm(p *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	m, err := liquid.NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	id, err := m.Name()
	if err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}
	form, err := compat.LookupForm(id)
	if err != nil {
		return nil, err
	}
	var object liquid.Expr
	if m.AcceptComma() && !m.PeekKeyword() && !m.Done() {
		if object, err = m.Value(); err != nil {
			return nil, err
		}
	}
	attrs, err := m.KeywordArgs()
	if err != nil {
		return nil, err
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	body, err := p.ParseBlock(tok)
	if err != nil {
		return nil, err
	}
	return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
		values := map[string]string{}
		for _, kw := range attrs {
			v, err := s.EvalResolved(kw.Value)
			if err != nil {
				return err
			}
			values[kw.Name] = liquid.ToString(v)
		}
		returnTo, hasReturn := values["return_to"]
		delete(values, "return_to")

		fmt.Fprintf(w, `<form action="%s" method="post" accept-charset="UTF-8"`, html.EscapeString(form.Action))
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, ` %s="%s"`, k, html.EscapeString(values[k]))
		}
		fmt.Fprintf(w, `><input type="hidden" name="form_type" value="%s">`, html.EscapeString(form.ID))
		if hasReturn {
			fmt.Fprintf(w, `<input type="hidden" name="return_to" value="%s">`, html.EscapeString(returnTo))
		}

		current := map[string]any{"id": form.ID, "action": form.Action}
		if object != nil {
			v, err := s.Eval(object)
			if err != nil {
				return err
			}
			current["object"] = v
		}
		s.Push(map[string]any{"form": current})
		err := liquid.RenderNodes(s, w, body)
		s.Pop()
		if err != nil {
			return err
		}
		w.WriteString("</form>")
		return nil
	}), nil
}

type paginator interface {
	Paginate(ctx context.Context, page, limit int) (*resource.Page, error)
}

var (
	requestPage = mustExpr("request.page")
	requestPath = mustExpr("request.path")
)

func mustExpr(src string) liquid.Expr {
	expr, err := liquid.ParseExpression(src)
	if err != nil {
		panic(err)
	}
	return expr
}

// paginate fetches the requested page of a deferred collection before
// rendering its body with a paginate object in scope.
func parsePaginate(p *liquid.Parser, tok *liquid.Token) (liquid.Node, error) {
	m, err := liquid.NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	target, err := m.Value()
	if err != nil {
		return nil, err
	}
	if !m.AcceptWord("by") {
		return nil, fmt.Errorf("paginate: expected 'by' in %q", tok.Markup)
	}
	size, err := m.Value()
	if err != nil {
		return nil, err
	}
	if _, err := m.KeywordArgs(); err != nil {
		return nil, err
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	body, err := p.ParseBlock(tok)
	if err != nil {
		return nil, err
	}
	return liquid.NodeFunc(func(s *liquid.State, w *strings.Builder) error {
		raw, err := s.Eval(target)
		if err != nil {
			return err
		}
		sizeValue, err := s.EvalResolved(size)
		if err != nil {
			return err
		}
		limit, _ := liquid.ToInt(sizeValue)
		if limit <= 0 {
			limit = resource.DefaultPageSize
		}
		current := 1
		if v, err := s.EvalResolved(requestPage); err == nil {
			if n, ok := liquid.ToInt(v); ok && n > 0 {
				current = n
			}
		}

		var count int
		if pg, ok := raw.(paginator); ok {
			page, err := pg.Paginate(s.Ctx, current, limit)
			if err != nil {
				return err
			}
			count = page.Count
		} else {
			resolved, err := liquid.Resolve(s.Ctx, raw)
			if err != nil {
				return err
			}
			if page, ok := resolved.(*resource.Page); ok {
				count = page.Count
			} else {
				count = len(liquid.Enumerate(resolved))
			}
		}
		base, _ := s.EvalResolved(requestPath)
		s.Push(map[string]any{"paginate": Pagination(current, limit, count, liquid.ToString(base))})
		defer s.Pop()
		return liquid.RenderNodes(s, w, body)
	}), nil
}

// Pagination builds the paginate object for page current of size items per
// page out of count items. Page links are relative to base.
func Pagination(current, size, count int, base string) map[string]any {
	pages := 0
	if size > 0 {
		pages = (count + size - 1) / size
	}
	link := func(n int) map[string]any {
		return map[string]any{
			"title":   n,
			"url":     fmt.Sprintf("%s?page=%d", base, n),
			"is_link": n != current,
		}
	}
	parts := make([]any, 0, pages)
	for n := 1; n <= pages; n++ {
		parts = append(parts, link(n))
	}
	out := map[string]any{
		"current_page":   current,
		"current_offset": (current - 1) * size,
		"page_size":      size,
		"items":          count,
		"pages":          pages,
		"parts":          parts,
	}
	if current > 1 {
		out["previous"] = link(current - 1)
	}
	if current < pages {
		out["next"] = link(current + 1)
	}
	return out
}
