package compat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
)

// CategoryDirs maps native categories to the directories foreign themes use.
var CategoryDirs = map[store.Category]string{
	store.CategoryAssets:     "assets",
	store.CategoryComponents: "snippets",
	store.CategoryConfig:     "config",
	store.CategoryLayouts:    "layout",
	store.CategoryPages:      "templates",
	store.CategorySections:   "sections",
	store.CategoryLocales:    "locales",
}

// PageNames maps native page ids to foreign template names.
var PageNames = map[string]string{
	"index":               "index",
	"products/index":      "collection",
	"products/product":    "product",
	"categories/index":    "list-collections",
	"categories/category": "collection",
	"cart":                "cart",
	"search":              "search",
	"404":                 "404",
	"pages/page":          "page",
	"blogs/blog":          "blog",
	"blogs/post":          "article",
	"account/index":       "customers/account",
	"account/login":       "customers/login",
	"account/signup":      "customers/register",
	"account/order":       "customers/order",
	"account/addresses":   "customers/addresses",
	"gift_card":           "gift_card",
	"password":            "password",
}

var nativePages = func() map[string]string {
	out := make(map[string]string, len(PageNames))
	for native, foreign := range PageNames {
		out[foreign] = native
	}
	// products/index shares the collection template
	out["collection"] = "categories/category"
	return out
}()

// ForeignPageName returns the foreign template for a native page id. Ids
// without a mapping are returned unchanged.
func ForeignPageName(native string) string {
	if name, ok := PageNames[native]; ok {
		return name
	}
	return native
}

// NativePageName is the inverse of ForeignPageName.
func NativePageName(foreign string) string {
	if name, ok := nativePages[foreign]; ok {
		return name
	}
	return foreign
}

// Paths returns the foreign paths tried for name after the native ones
// miss. Paths equal to a native path are omitted.
func (a *Adapter) Paths(category store.Category, name string) []string {
	dir, ok := CategoryDirs[category]
	if !ok {
		return nil
	}
	foreign := name
	if category == store.CategoryPages {
		foreign = ForeignPageName(name)
	}
	var out []string
	for _, ext := range []string{".json", ".liquid"} {
		p := strings.Join([]string{store.Root, dir, foreign + ext}, "/")
		if p == store.ThemePath(category, name+ext) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LocaleFiles lists the locale files tried for code: the exact locale, its
// short code, then the designated default file.
func (a *Adapter) LocaleFiles(code string) []string {
	return localeFiles(code, a.defaultLocale, ".json")
}

// SchemaLocaleFiles lists the schema translation files tried for code.
func (a *Adapter) SchemaLocaleFiles(code string) []string {
	return localeFiles(code, a.defaultLocale, ".schema.json")
}

func localeFiles(code, def, suffix string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, store.ThemePath(store.CategoryLocales, name+suffix))
	}
	code = strings.TrimSpace(code)
	add(code)
	if short, _, ok := strings.Cut(code, "-"); ok {
		add(short)
	}
	add(def + ".default")
	return out
}

// LocaleConfig loads the first existing locale file for code. A parse
// failure or a total miss yields an empty tree.
func (a *Adapter) LocaleConfig(ctx context.Context, st store.Store, code string) map[string]any {
	return a.loadFirst(ctx, st, a.LocaleFiles(code))
}

// SchemaTranslator builds a Translator from the schema locale files.
func (a *Adapter) SchemaTranslator(ctx context.Context, st store.Store, code string) Translator {
	tree := a.loadFirst(ctx, st, a.SchemaLocaleFiles(code))
	return func(key string) string {
		var node any = tree
		for _, part := range strings.Split(key, ".") {
			m, ok := node.(map[string]any)
			if !ok {
				return ""
			}
			node = m[part]
		}
		s, _ := node.(string)
		return s
	}
}

func (a *Adapter) loadFirst(ctx context.Context, st store.Store, paths []string) map[string]any {
	for _, p := range paths {
		cfg, err := st.GetConfig(ctx, p)
		if err != nil {
			a.record(ctx, diagnostics.Event{Kind: diagnostics.KindResourceError, Path: p, Message: "locale fetch failed", Err: err})
			continue
		}
		if cfg == nil {
			continue
		}
		out := map[string]any{}
		if err := json.Unmarshal([]byte(cfg.FileData), &out); err != nil {
			a.record(ctx, diagnostics.Event{Kind: diagnostics.KindConfigParseError, Path: p, Message: "malformed locale file", Err: err})
			return map[string]any{}
		}
		return out
	}
	return map[string]any{}
}
