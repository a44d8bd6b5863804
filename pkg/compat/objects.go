package compat

import (
	"context"
	"fmt"

	"github.com/goliatone/go-storefront/pkg/resource"
)

// ObjectAdapter rewrites one native object into the foreign shape. Native
// keys are kept so templates may mix both vocabularies.
type ObjectAdapter func(native map[string]any) map[string]any

// ObjectAdapters is the flat type to adapter table.
var ObjectAdapters = map[string]ObjectAdapter{
	"product":  adaptProduct,
	"variant":  adaptVariant,
	"category": adaptCollection,
	"image":    adaptImage,
	"account":  adaptCustomer,
	"cart":     adaptCart,
	"menu":     adaptMenu,
	"page":     adaptPage,
	"blog":     adaptBlog,
	"post":     adaptArticle,
}

// ResourceAdapter names the foreign key and adapter type for one page
// resource.
type ResourceAdapter struct {
	Key  string
	Type string
}

// PageResources maps a native page id to the page data keys to adapt.
var PageResources = map[string]map[string]ResourceAdapter{
	"products/product":    {"product": {Key: "product", Type: "product"}},
	"categories/category": {"category": {Key: "collection", Type: "category"}},
	"categories/index":    {"categories": {Key: "collections", Type: "category"}},
	"pages/page":          {"page": {Key: "page", Type: "page"}},
	"blogs/blog":          {"blog": {Key: "blog", Type: "blog"}},
	"blogs/post":          {"post": {Key: "article", Type: "post"}},
	"account/index":       {"account": {Key: "customer", Type: "account"}},
	"account/order":       {"order": {Key: "order", Type: "cart"}},
	"cart":                {"cart": {Key: "cart", Type: "cart"}},
}

// GlobalResources are adapted on every page.
var GlobalResources = map[string]ResourceAdapter{
	"cart":    {Key: "cart", Type: "cart"},
	"account": {Key: "customer", Type: "account"},
}

// AdaptPageData returns a copy of data with the page's resources rewritten
// into foreign shapes. Deferred values stay deferred.
func (a *Adapter) AdaptPageData(pageID string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	apply := func(key string, ra ResourceAdapter) {
		v, ok := data[key]
		if !ok || v == nil {
			return
		}
		out[ra.Key] = AdaptValue(ra.Type, v)
	}
	for key, ra := range GlobalResources {
		apply(key, ra)
	}
	for key, ra := range PageResources[pageID] {
		apply(key, ra)
	}
	return out
}

// AdaptObject applies the adapter registered for typ. Unknown types are
// returned unchanged.
func AdaptObject(typ string, native map[string]any) map[string]any {
	fn, ok := ObjectAdapters[typ]
	if !ok || native == nil {
		return native
	}
	return fn(native)
}

type resolver interface {
	Resolve(ctx context.Context) (any, error)
}

// adapted defers adaptation until the wrapped value resolves.
type adapted struct {
	lazy *resource.Lazy[any]
}

func (a *adapted) Resolve(ctx context.Context) (any, error) { return a.lazy.Get(ctx) }

// AdaptValue adapts maps, lists, pages, and deferred values of typ.
func AdaptValue(typ string, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return AdaptObject(typ, x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = AdaptValue(typ, item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = AdaptObject(typ, item)
		}
		return out
	case *resource.Page:
		page := *x
		page.Results = AdaptValue(typ, x.Results).([]any)
		return &page
	case resolver:
		return &adapted{lazy: resource.NewLazy(func(ctx context.Context) (any, error) {
			resolved, err := x.Resolve(ctx)
			if err != nil {
				return nil, fmt.Errorf("compat: adapt %s: %w", typ, err)
			}
			return AdaptValue(typ, resolved), nil
		})}
	}
	return v
}

func clone(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+8)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// listOf unwraps native {results: [...]} lists.
func listOf(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case map[string]any:
		if r, ok := x["results"].([]any); ok {
			return r
		}
	}
	return nil
}

func adaptImage(in map[string]any) map[string]any {
	out := clone(in)
	file, _ := in["file"].(map[string]any)
	if file == nil {
		file = in
	}
	src := firstOf(file, "url", "src")
	out["src"] = src
	out["url"] = src
	out["width"] = firstOf(file, "width")
	out["height"] = firstOf(file, "height")
	out["alt"] = firstOf(in, "alt", "caption")
	return out
}

func adaptImages(v any) []any {
	items := listOf(v)
	out := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, adaptImage(m))
		}
	}
	return out
}

func available(in map[string]any) bool {
	if tracking, ok := in["stock_tracking"].(bool); ok && !tracking {
		return true
	}
	switch in["stock_status"] {
	case "out_of_stock", "discontinued":
		return false
	case nil:
		return true
	}
	return true
}

func adaptVariant(in map[string]any) map[string]any {
	out := clone(in)
	out["title"] = firstOf(in, "name", "title")
	out["available"] = available(in)
	out["compare_at_price"] = firstOf(in, "orig_price", "compare_at_price")
	return out
}

func adaptProduct(in map[string]any) map[string]any {
	out := clone(in)
	out["title"] = firstOf(in, "name", "title")
	out["handle"] = firstOf(in, "slug", "handle")
	out["compare_at_price"] = firstOf(in, "orig_price", "compare_at_price")
	out["available"] = available(in)
	out["url"] = "/products/" + str(in, "slug")
	images := adaptImages(in["images"])
	out["images"] = images
	if len(images) > 0 {
		out["featured_image"] = images[0]
	}
	var variants []any
	for _, v := range listOf(in["variants"]) {
		if m, ok := v.(map[string]any); ok {
			variants = append(variants, adaptVariant(m))
		}
	}
	out["variants"] = variants
	out["has_only_default_variant"] = len(variants) == 0
	return out
}

func adaptCollection(in map[string]any) map[string]any {
	out := clone(in)
	out["title"] = firstOf(in, "name", "title")
	out["handle"] = firstOf(in, "slug", "handle")
	out["url"] = "/categories/" + str(in, "slug")
	if img, ok := in["images"]; ok {
		if images := adaptImages(img); len(images) > 0 {
			out["image"] = images[0]
		}
	}
	return out
}

func adaptCustomer(in map[string]any) map[string]any {
	out := clone(in)
	out["name"] = firstOf(in, "name", "first_name")
	out["orders_count"] = firstOf(in, "order_count", "orders_count")
	return out
}

func adaptCart(in map[string]any) map[string]any {
	out := clone(in)
	var items []any
	count := 0
	for _, raw := range listOf(in["items"]) {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		line := clone(item)
		if product, ok := item["product"].(map[string]any); ok {
			line["product"] = adaptProduct(product)
			line["title"] = firstOf(product, "name", "title")
		}
		line["line_price"] = firstOf(item, "price_total", "line_price")
		if q, ok := item["quantity"].(float64); ok {
			count += int(q)
		} else if q, ok := item["quantity"].(int); ok {
			count += q
		}
		items = append(items, line)
	}
	out["items"] = items
	out["item_count"] = count
	out["total_price"] = firstOf(in, "grand_total", "total_price")
	return out
}

func adaptMenuItems(v any) []any {
	var out []any
	for _, raw := range listOf(v) {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		link := clone(item)
		link["title"] = firstOf(item, "name", "title")
		link["links"] = adaptMenuItems(item["items"])
		out = append(out, link)
	}
	return out
}

func adaptMenu(in map[string]any) map[string]any {
	out := clone(in)
	out["handle"] = firstOf(in, "id", "handle")
	out["title"] = firstOf(in, "name", "title")
	out["links"] = adaptMenuItems(in["items"])
	return out
}

func adaptPage(in map[string]any) map[string]any {
	out := clone(in)
	out["title"] = firstOf(in, "name", "title")
	out["handle"] = firstOf(in, "slug", "handle")
	out["url"] = "/pages/" + str(in, "slug")
	return out
}

func adaptBlog(in map[string]any) map[string]any {
	out := adaptPage(in)
	out["url"] = "/blogs/" + str(in, "slug")
	return out
}

func adaptArticle(in map[string]any) map[string]any {
	out := clone(in)
	out["title"] = firstOf(in, "title", "name")
	out["handle"] = firstOf(in, "slug", "handle")
	out["published_at"] = firstOf(in, "date_published", "published_at")
	out["author"] = firstOf(in, "author")
	return out
}
