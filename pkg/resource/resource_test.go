package resource

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func products(n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, map[string]any{"id": string(rune('a' - 1 + i)), "slug": "p" + string(rune('0'+i))})
	}
	return out
}

func TestLazyMemoizes(t *testing.T) {
	calls := 0
	lazy := NewLazy(func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if lazy.IsResolved() {
		t.Fatalf("construction must not resolve")
	}
	for i := 0; i < 3; i++ {
		v, err := lazy.Get(context.Background())
		if err != nil || v != 42 {
			t.Fatalf("get: %v %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestLazyMemoizesErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	lazy := NewLazy(func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	_, err1 := lazy.Get(context.Background())
	_, err2 := lazy.Get(context.Background())
	if !errors.Is(err1, boom) || !errors.Is(err2, boom) || calls != 1 {
		t.Fatalf("expected memoized error, calls=%d", calls)
	}
}

func TestLazyConcurrentGet(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	lazy := NewLazy(func(context.Context) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 1, nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = lazy.Get(context.Background())
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestRecordDefersFetch(t *testing.T) {
	fetcher := NewMemoryFetcher(map[string][]map[string]any{"products": products(3)})
	rec := NewRecord(fetcher, "products", "b")
	if fetcher.Calls() != 0 {
		t.Fatalf("construction must not fetch")
	}
	v, err := rec.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"id": "b", "slug": "p2"}, v); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	_, _ = rec.Resolve(context.Background())
	if fetcher.Calls() != 1 {
		t.Fatalf("expected memoized fetch, got %d calls", fetcher.Calls())
	}

	missing, err := NewRecord(fetcher, "products", "zz").Resolve(context.Background())
	if err != nil || missing != nil {
		t.Fatalf("expected nil record, got %v %v", missing, err)
	}
}

func TestCollectionDefaultsAndPaginate(t *testing.T) {
	ctx := context.Background()
	fetcher := NewMemoryFetcher(map[string][]map[string]any{"products": products(20)})
	col := NewCollection(fetcher, "products", ListQuery{})
	if col.Limit() != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", col.Limit())
	}

	v, err := col.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	page := v.(*Page)
	if len(page.Results) != 15 || page.Count != 20 || page.Pages() != 2 {
		t.Fatalf("unexpected page %+v", page)
	}

	same, _ := col.Paginate(ctx, 1, 15)
	if same != page || fetcher.Calls() != 1 {
		t.Fatalf("same-size paginate must reuse fetched page")
	}

	resized, _ := col.Paginate(ctx, 2, 4)
	if len(resized.Results) != 4 || resized.Page != 2 || fetcher.Calls() != 2 {
		t.Fatalf("expected refetch with new size, got %+v calls=%d", resized, fetcher.Calls())
	}
	if size, _ := resized.Get("pages"); size != 5 {
		t.Fatalf("pages: %v", size)
	}
}

func TestCollectionByIDsKeepsOrder(t *testing.T) {
	fetcher := NewMemoryFetcher(map[string][]map[string]any{"products": products(5)})
	col := NewCollection(fetcher, "products", ListQuery{IDs: []string{"e", "a", "zz", "c"}})
	v, _ := col.Resolve(context.Background())
	var ids []any
	for _, item := range v.(*Page).Items() {
		ids = append(ids, item.(map[string]any)["id"])
	}
	if diff := cmp.Diff([]any{"e", "a", "c"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleton(t *testing.T) {
	calls := 0
	s := NewSingleton("cart", func(context.Context) (any, error) {
		calls++
		return map[string]any{"item_count": 2}, nil
	})
	var _ Resource = s
	_, _ = s.Resolve(context.Background())
	v, _ := s.Resolve(context.Background())
	if calls != 1 || v.(map[string]any)["item_count"] != 2 {
		t.Fatalf("unexpected singleton state calls=%d v=%v", calls, v)
	}
}
