package storefront

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/theme"
)

// Theme is exported from the root package for convenience.
type Theme = theme.Theme

// Option aliases theme.Option.
type Option = theme.Option

// Request describes the storefront request being rendered.
type Request = theme.Request

// Output is a rendered page.
type Output = theme.Output

// Store is the config source a theme renders from.
type Store = store.Store

// NewTheme builds a theme over st.
func NewTheme(st Store, options ...Option) *Theme {
	return theme.New(st, options...)
}

// NewThemeFS builds a theme over a filesystem containing the theme/ tree.
// Configs are cached for the lifetime of the theme.
func NewThemeFS(fsys fs.FS, options ...Option) *Theme {
	return theme.New(store.NewCached(store.NewFS(fsys)), options...)
}

// RenderPage is the simplest entry point: it renders one page of the theme
// in fsys, layout included.
func RenderPage(ctx context.Context, fsys fs.FS, pageID string, data map[string]any, options ...Option) (*Output, error) {
	return NewThemeFS(fsys, options...).RenderPage(ctx, pageID, data)
}
