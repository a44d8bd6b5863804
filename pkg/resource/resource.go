// Package resource provides deferred storefront data handles. A Resource is
// cheap to construct; the backing fetch happens on the first Resolve and the
// result is memoized for the rest of the render.
package resource

import (
	"context"
	"fmt"
	"sync"
)

// DefaultPageSize is used by collections whose schema sets no limit.
const DefaultPageSize = 15

// Kind tags a Resource variant.
type Kind string

const (
	KindRecord     Kind = "record"
	KindCollection Kind = "collection"
	KindSingleton  Kind = "singleton"
)

// Resource is the uniform capability of deferred handles.
type Resource interface {
	Kind() Kind
	Resolve(ctx context.Context) (any, error)
}

// ListQuery narrows a collection fetch.
type ListQuery struct {
	IDs    []string       `json:"ids,omitempty"`
	Limit  int            `json:"limit"`
	Page   int            `json:"page"`
	Params map[string]any `json:"params,omitempty"`
}

// Fetcher is the storefront data collaborator behind Records and
// Collections.
type Fetcher interface {
	Get(ctx context.Context, model, id string) (map[string]any, error)
	List(ctx context.Context, model string, query ListQuery) (*Page, error)
}

// Page is one fetched page of a collection.
type Page struct {
	Results []any `json:"results"`
	Count   int   `json:"count"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
}

// Pages returns the total number of pages.
func (p *Page) Pages() int {
	if p == nil || p.Limit <= 0 {
		return 0
	}
	return (p.Count + p.Limit - 1) / p.Limit
}

// Get exposes page fields to templates.
func (p *Page) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	switch key {
	case "results":
		return p.Results, true
	case "count":
		return p.Count, true
	case "page":
		return p.Page, true
	case "limit":
		return p.Limit, true
	case "pages":
		return p.Pages(), true
	case "size":
		return len(p.Results), true
	}
	return nil, false
}

// Items lets templates iterate a page directly.
func (p *Page) Items() []any {
	if p == nil {
		return nil
	}
	return p.Results
}

// Record is a deferred single-record handle.
type Record struct {
	Model string
	ID    string
	lazy  *Lazy[map[string]any]
}

// NewRecord builds a Record fetched through f.
func NewRecord(f Fetcher, model, id string) *Record {
	r := &Record{Model: model, ID: id}
	r.lazy = NewLazy(func(ctx context.Context) (map[string]any, error) {
		if f == nil || id == "" {
			return nil, nil
		}
		rec, err := f.Get(ctx, model, id)
		if err != nil {
			return nil, fmt.Errorf("resource: get %s %s: %w", model, id, err)
		}
		return rec, nil
	})
	return r
}

func (r *Record) Kind() Kind { return KindRecord }

func (r *Record) Resolve(ctx context.Context) (any, error) {
	rec, err := r.lazy.Get(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

// IsResolved reports whether the record was fetched.
func (r *Record) IsResolved() bool { return r.lazy.IsResolved() }

// Collection is a deferred list handle that can be re-fetched with a
// different page size by the paginate tag.
type Collection struct {
	Model   string
	fetcher Fetcher

	mu    sync.Mutex
	query ListQuery
	lazy  *Lazy[*Page]
}

// NewCollection builds a Collection; limit <= 0 selects DefaultPageSize.
func NewCollection(f Fetcher, model string, query ListQuery) *Collection {
	if query.Limit <= 0 {
		query.Limit = DefaultPageSize
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	c := &Collection{Model: model, fetcher: f, query: query}
	c.lazy = c.newLazy(query)
	return c
}

func (c *Collection) newLazy(q ListQuery) *Lazy[*Page] {
	return NewLazy(func(ctx context.Context) (*Page, error) {
		if c.fetcher == nil {
			return &Page{Page: q.Page, Limit: q.Limit}, nil
		}
		page, err := c.fetcher.List(ctx, c.Model, q)
		if err != nil {
			return nil, fmt.Errorf("resource: list %s: %w", c.Model, err)
		}
		if page == nil {
			page = &Page{}
		}
		if page.Limit == 0 {
			page.Limit = q.Limit
		}
		if page.Page == 0 {
			page.Page = q.Page
		}
		return page, nil
	})
}

func (c *Collection) Kind() Kind { return KindCollection }

// Limit returns the page size the collection will fetch.
func (c *Collection) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.Limit
}

// IsResolved reports whether the current page was fetched.
func (c *Collection) IsResolved() bool {
	c.mu.Lock()
	lazy := c.lazy
	c.mu.Unlock()
	return lazy.IsResolved()
}

func (c *Collection) Resolve(ctx context.Context) (any, error) {
	c.mu.Lock()
	lazy := c.lazy
	c.mu.Unlock()
	return lazy.Get(ctx)
}

// Paginate fetches page with limit items. A collection already resolved
// with the same size and page is returned as is.
func (c *Collection) Paginate(ctx context.Context, page, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	c.mu.Lock()
	if !c.lazy.IsResolved() || c.query.Limit != limit || c.query.Page != page {
		c.query.Limit = limit
		c.query.Page = page
		c.lazy = c.newLazy(c.query)
	}
	lazy := c.lazy
	c.mu.Unlock()
	return lazy.Get(ctx)
}

// Singleton is a deferred handle for one-off objects such as the cart.
type Singleton struct {
	Name string
	lazy *Lazy[any]
}

// NewSingleton wraps fn.
func NewSingleton(name string, fn func(ctx context.Context) (any, error)) *Singleton {
	return &Singleton{Name: name, lazy: NewLazy(fn)}
}

func (s *Singleton) Kind() Kind { return KindSingleton }

func (s *Singleton) Resolve(ctx context.Context) (any, error) {
	return s.lazy.Get(ctx)
}
