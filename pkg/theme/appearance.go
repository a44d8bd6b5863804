package theme

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gotheme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
)

// WithThemeSelector resolves the named theme and variant through sel when the
// theme loads. Templates see the selection as `theme`, asset_url resolves the
// manifest's asset keys, and a variant naming a settings preset selects it.
func WithThemeSelector(sel gotheme.ThemeSelector, name, variant string) Option {
	return func(t *Theme) {
		t.selector = sel
		t.themeName = name
		t.themeVariant = variant
	}
}

// WithThemeManifest selects variant of m without a registry.
func WithThemeManifest(m *gotheme.Manifest, variant string) Option {
	if m == nil {
		return nil
	}
	return WithThemeSelector(manifestSelector{manifest: m}, m.Name, variant)
}

type manifestSelector struct {
	manifest *gotheme.Manifest
}

func (s manifestSelector) Select(name, variant string, _ ...gotheme.QueryOption) (*gotheme.Selection, error) {
	if name != "" && name != s.manifest.Name {
		return nil, fmt.Errorf("theme %q not found", name)
	}
	return &gotheme.Selection{Theme: s.manifest.Name, Variant: variant, Manifest: s.manifest}, nil
}

// selectAppearance runs the selector. A failed selection is recorded and the
// request renders without manifest tokens.
func (t *Theme) selectAppearance(ctx context.Context) *gotheme.RendererConfig {
	if t.selector == nil {
		return nil
	}
	sel, err := t.selector.Select(t.themeName, t.themeVariant)
	if err == nil && (sel == nil || sel.Manifest == nil) {
		err = fmt.Errorf("no manifest selected")
	}
	if err != nil {
		t.recorder.Record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindResourceError,
			Message: fmt.Sprintf("theme selection %q variant %q", t.themeName, t.themeVariant),
			Err:     err,
		})
		return nil
	}
	cfg := rendererConfig(sel)
	return &cfg
}

// rendererConfig flattens a selection: variant tokens, templates, and asset
// files override the manifest's own.
func rendererConfig(sel *gotheme.Selection) gotheme.RendererConfig {
	m := sel.Manifest
	tokens := map[string]string{}
	partials := map[string]string{}
	files := map[string]string{}
	for k, v := range m.Tokens {
		tokens[k] = v
	}
	for k, v := range m.Templates {
		partials[k] = v
	}
	for k, v := range m.Assets.Files {
		files[k] = v
	}
	prefix := m.Assets.Prefix
	if variant, ok := m.Variants[sel.Variant]; ok {
		for k, v := range variant.Tokens {
			tokens[k] = v
		}
		for k, v := range variant.Templates {
			partials[k] = v
		}
		for k, v := range variant.Assets.Files {
			files[k] = v
		}
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
	}
	cssVars := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cssVars["--"+k] = v
	}
	return gotheme.RendererConfig{
		Theme:    sel.Theme,
		Variant:  sel.Variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
		AssetURL: func(key string) string {
			file := files[key]
			if file == "" || prefix == "" || strings.Contains(file, "://") {
				return file
			}
			return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
		},
	}
}

// appearanceMap is the `theme` template global.
func appearanceMap(cfg *gotheme.RendererConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":          cfg.Theme,
		"variant":       cfg.Variant,
		"tokens":        stringMapAny(cfg.Tokens),
		"css_variables": cssVarsStyle(cfg.CSSVars),
	}
}

func stringMapAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}
