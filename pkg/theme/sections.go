package theme

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/sections"
	"github.com/goliatone/go-storefront/pkg/store"
)

// RenderedSection is the output of one section render.
type RenderedSection struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	HTML string `json:"html"`
}

// GetSectionGroupConfigs assembles the sections of a group in group order.
// Settings stay deferred until render.
func (t *Theme) GetSectionGroupConfigs(ctx context.Context, group *sections.Group) ([]sections.Assembled, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t.assembler.Assemble(ctx, group, nil)
}

// GetPageSections assembles the sections of a section group page. Sections
// whose schema excludes the page are skipped and reported. Template pages
// have no sections.
func (t *Theme) GetPageSections(ctx context.Context, pageID string) ([]sections.Assembled, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	cfg, err := t.pageConfig(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsJSON() || !isSectionGroup(cfg) {
		return nil, nil
	}
	return t.pageSections(ctx, pageID, cfg)
}

func (t *Theme) pageSections(ctx context.Context, pageID string, cfg *store.Config) ([]sections.Assembled, error) {
	group, err := sections.ParseGroupConfig(cfg)
	if err != nil {
		return nil, err
	}
	list, err := t.assembler.Assemble(ctx, group, nil)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, s := range list {
		if !s.Schema.AllowedOn(pageID, "") {
			t.recorder.Record(ctx, diagnostics.Event{
				Kind:    diagnostics.KindSectionDisabled,
				Path:    cfg.FilePath,
				Message: fmt.Sprintf("section %q (%s) is not enabled on %q", s.ID, s.Section.Type, pageID),
			})
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

var sectionsTagPattern = regexp.MustCompile(`\{%-?\s*sections\s+['"]([^'"]+)['"]`)

// GetLayoutSectionGroups returns the section groups a layout renders, in the
// order its sections tags appear. Missing or malformed groups are reported
// and skipped.
func (t *Theme) GetLayoutSectionGroups(ctx context.Context, layout string) ([]*sections.Group, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	cfg, err := t.resolver.Resolve(ctx, store.CategoryLayouts, layout+".liquid")
	if err != nil || cfg == nil {
		return nil, err
	}
	var out []*sections.Group
	seen := map[string]bool{}
	for _, match := range sectionsTagPattern.FindAllStringSubmatch(cfg.FileData, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		groupCfg, err := t.resolver.Resolve(ctx, store.CategorySections, name+".json")
		if err != nil {
			return nil, err
		}
		if groupCfg == nil {
			t.recorder.Record(ctx, diagnostics.Event{
				Kind:    diagnostics.KindSectionError,
				Path:    cfg.FilePath,
				Message: fmt.Sprintf("layout renders missing section group %q", name),
			})
			continue
		}
		group, err := sections.ParseGroupConfig(groupCfg)
		if err != nil {
			t.recorder.Record(ctx, diagnostics.Event{Kind: diagnostics.KindConfigParseError, Path: groupCfg.FilePath, Err: err})
			continue
		}
		group.Name = name
		out = append(out, group)
	}
	return out, nil
}

// RenderSectionConfigs renders assembled sections concurrently, keeping
// their order.
func (t *Theme) RenderSectionConfigs(ctx context.Context, list []sections.Assembled, data map[string]any) ([]RenderedSection, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	ctx, span := t.tracer.Start(ctx, "theme.RenderSectionConfigs", trace.WithAttributes(attribute.Int("sections.count", len(list))))
	defer span.End()

	parts, err := t.assembler.RenderAll(ctx, list, data)
	if err != nil {
		return nil, fail(span, err)
	}
	out := make([]RenderedSection, len(list))
	for i, s := range list {
		out[i] = RenderedSection{ID: s.ID, Type: s.Section.Type, HTML: parts[i]}
	}
	return out, nil
}
