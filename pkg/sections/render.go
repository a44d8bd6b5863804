package sections

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// RenderSection renders one assembled section inside its wrapper. Render
// failures degrade to an HTML comment; only fatal errors are returned.
func (a *Assembler) RenderSection(ctx context.Context, s Assembled, data map[string]any) (string, error) {
	if s.Section.Disabled {
		a.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindSectionDisabled,
			Message: fmt.Sprintf("section %q is disabled", s.ID),
		})
		return "", nil
	}
	body, err := a.renderBody(ctx, s, data)
	if err != nil {
		if themeerr.IsFatal(err) {
			return "", err
		}
		a.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindSectionError,
			Message: fmt.Sprintf("section %q (%s)", s.ID, s.Section.Type),
			Err:     err,
			Attrs:   map[string]string{"section": s.ID, "type": s.Section.Type},
		})
		body = Comment("section error", err)
	}
	prefix := a.WrapperPrefix()
	return fmt.Sprintf(`<%s id="%s-%s" class="%s">%s</%s>`,
		s.Tag, prefix, html.EscapeString(s.ID), html.EscapeString(wrapperClass(prefix, s.Class)), body, s.Tag), nil
}

func (a *Assembler) renderBody(ctx context.Context, s Assembled, data map[string]any) (string, error) {
	if a.renderer == nil || a.resolver == nil {
		return "", fmt.Errorf("sections: renderer is not configured")
	}
	cfg, err := a.resolver.Resolve(ctx, store.CategorySections, s.Section.Type+".liquid")
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return "", themeerr.NotFound("section", s.Section.Type)
	}
	section, err := s.Settings.Get(ctx)
	if err != nil {
		return "", err
	}
	scope := make(map[string]any, len(data)+1)
	for k, v := range data {
		scope[k] = v
	}
	scope["section"] = section
	res, err := a.renderer.RenderConfig(ctx, cfg, scope)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// RenderAll renders sections concurrently and returns their outputs in
// order.
func (a *Assembler) RenderAll(ctx context.Context, list []Assembled, data map[string]any) ([]string, error) {
	out := make([]string, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range list {
		g.Go(func() error {
			rendered, err := a.RenderSection(gctx, s, data)
			if err != nil {
				return err
			}
			out[i] = rendered
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderGroup assembles and renders a group, concatenating the outputs.
func (a *Assembler) RenderGroup(ctx context.Context, group *Group, data map[string]any) (string, error) {
	list, err := a.Assemble(ctx, group, nil)
	if err != nil {
		return "", err
	}
	parts, err := a.RenderAll(ctx, list, data)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

// Comment renders err as an HTML comment safe to embed in a page.
func Comment(label string, err error) string {
	msg := strings.ReplaceAll(err.Error(), "--", "- -")
	return fmt.Sprintf("<!-- %s: %s -->", label, msg)
}
