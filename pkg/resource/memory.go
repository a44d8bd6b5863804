package resource

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MemoryFetcher serves records from in-process data keyed by model. Records
// match Get by their "id" or "slug" field.
type MemoryFetcher struct {
	Records map[string][]map[string]any
	calls   atomic.Int64
}

// NewMemoryFetcher wraps records.
func NewMemoryFetcher(records map[string][]map[string]any) *MemoryFetcher {
	return &MemoryFetcher{Records: records}
}

// Calls counts Get and List invocations.
func (m *MemoryFetcher) Calls() int64 { return m.calls.Load() }

func (m *MemoryFetcher) Get(ctx context.Context, model, id string) (map[string]any, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rec := range m.Records[model] {
		if fmt.Sprint(rec["id"]) == id || fmt.Sprint(rec["slug"]) == id {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *MemoryFetcher) List(ctx context.Context, model string, query ListQuery) (*Page, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := m.Records[model]
	if len(query.IDs) > 0 {
		wanted := make(map[string]int, len(query.IDs))
		for i, id := range query.IDs {
			wanted[id] = i
		}
		picked := make([]map[string]any, len(query.IDs))
		for _, rec := range all {
			if i, ok := wanted[fmt.Sprint(rec["id"])]; ok {
				picked[i] = rec
			}
		}
		all = all[:0:0]
		for _, rec := range picked {
			if rec != nil {
				all = append(all, rec)
			}
		}
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	results := make([]any, 0, end-start)
	for _, rec := range all[start:end] {
		results = append(results, rec)
	}
	return &Page{Results: results, Count: len(all), Page: page, Limit: limit}, nil
}
