// Package store defines the theme config record and the collaborators that
// fetch it. A Store answers GetConfig(path) with nil, nil on a miss so
// callers can decide whether a miss is a 404 or "render nothing".
package store

import (
	"context"
	"path"
	"strings"
)

// Config is an immutable raw theme file record.
type Config struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
	FileData string `json:"file_data"`
}

// Category is a top-level directory under theme/.
type Category string

const (
	CategoryAssets     Category = "assets"
	CategoryComponents Category = "components"
	CategoryConfig     Category = "config"
	CategoryLayouts    Category = "layouts"
	CategoryPages      Category = "pages"
	CategorySections   Category = "sections"
	CategoryLocales    Category = "locales"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryAssets,
	CategoryComponents,
	CategoryConfig,
	CategoryLayouts,
	CategoryPages,
	CategorySections,
	CategoryLocales,
}

// ParseCategory accepts a category or its singular form ("section").
func ParseCategory(raw string) (Category, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, c := range Categories {
		if raw == string(c) || raw+"s" == string(c) {
			return c, true
		}
	}
	return "", false
}

const Root = "theme"

// ThemePath joins theme/<category>/<file>.
func ThemePath(category Category, file string) string {
	return path.Join(Root, string(category), file)
}

// Describe derives the Type and Name of a config from its file path.
func Describe(filePath string) (typ, name string) {
	trimmed := strings.TrimPrefix(filePath, Root+"/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		typ = trimmed[:idx]
		trimmed = trimmed[idx+1:]
	}
	name = strings.TrimSuffix(trimmed, path.Ext(trimmed))
	return typ, name
}

// IsJSON reports whether the config holds JSON data.
func (c *Config) IsJSON() bool {
	return c != nil && strings.HasSuffix(c.FilePath, ".json")
}

// IsLiquid reports whether the config holds template text.
func (c *Config) IsLiquid() bool {
	return c != nil && strings.HasSuffix(c.FilePath, ".liquid")
}

// Store fetches configs by path.
type Store interface {
	GetConfig(ctx context.Context, path string) (*Config, error)
}

// Lister enumerates configs under a path prefix, sorted by path.
type Lister interface {
	ListConfigs(ctx context.Context, prefix string) ([]*Config, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, path string) (*Config, error)

func (f StoreFunc) GetConfig(ctx context.Context, path string) (*Config, error) {
	return f(ctx, path)
}
