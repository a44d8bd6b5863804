// Package sections turns section group configs into ordered, schema-typed
// sections and renders them.
//
// Group order is the explicit order array when present, else the document
// key order of the sections object. It is never resorted. Blocks follow the
// same rule through block_order.
package sections

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// Block is one block of a section with raw settings.
type Block struct {
	ID       string
	Type     string
	Settings map[string]any
	Disabled bool
}

// Section is one section instance with raw settings and ordered blocks.
type Section struct {
	ID       string
	Type     string
	Settings map[string]any
	Blocks   []Block
	Disabled bool
}

// Group is an ordered section list built per render.
type Group struct {
	Name     string
	Type     string
	Sections []Section
	// Missing lists order ids without a matching section.
	Missing []string
}

// IDs returns the section ids in order.
func (g *Group) IDs() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.Sections))
	for _, s := range g.Sections {
		out = append(out, s.ID)
	}
	return out
}

// ParseGroup reads a section group document. The sections value may be an
// object keyed by id or an array of entries.
func ParseGroup(data []byte) (*Group, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("sections: malformed group json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("sections: group must be an object")
	}
	g := &Group{
		Name: root.Get("name").String(),
		Type: root.Get("type").String(),
	}
	entries, keys := entriesOf(root.Get("sections"), "section")
	order := orderOf(root.Get("order"))
	if order == nil {
		order = keys
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, ok := entries[id]
		if !ok {
			g.Missing = append(g.Missing, id)
			continue
		}
		g.Sections = append(g.Sections, parseSection(id, entry))
	}
	return g, nil
}

// ParseGroupConfig parses cfg, reporting malformed data as a
// themeerr.ConfigParseError.
func ParseGroupConfig(cfg *store.Config) (*Group, error) {
	if cfg == nil {
		return nil, nil
	}
	g, err := ParseGroup([]byte(cfg.FileData))
	if err != nil {
		return nil, &themeerr.ConfigParseError{Path: cfg.FilePath, Err: err}
	}
	if g.Name == "" {
		_, g.Name = store.Describe(cfg.FilePath)
	}
	return g, nil
}

func parseSection(id string, r gjson.Result) Section {
	s := Section{
		ID:       id,
		Type:     r.Get("type").String(),
		Settings: objectOf(r.Get("settings")),
		Disabled: r.Get("disabled").Bool(),
	}
	blocks, keys := entriesOf(r.Get("blocks"), id+"-block")
	order := orderOf(r.Get("block_order"))
	if order == nil {
		order = keys
	}
	seen := make(map[string]bool, len(order))
	for _, blockID := range order {
		b, ok := blocks[blockID]
		if !ok || seen[blockID] {
			continue
		}
		seen[blockID] = true
		s.Blocks = append(s.Blocks, Block{
			ID:       blockID,
			Type:     b.Get("type").String(),
			Settings: objectOf(b.Get("settings")),
			Disabled: b.Get("disabled").Bool(),
		})
	}
	return s
}

// entriesOf indexes an object by key or an array by its entries' id (or a
// positional id), returning the keys in document order.
func entriesOf(r gjson.Result, prefix string) (map[string]gjson.Result, []string) {
	out := map[string]gjson.Result{}
	var keys []string
	switch {
	case r.IsObject():
		r.ForEach(func(key, value gjson.Result) bool {
			if _, dup := out[key.String()]; !dup {
				keys = append(keys, key.String())
			}
			out[key.String()] = value
			return true
		})
	case r.IsArray():
		for i, value := range r.Array() {
			id := value.Get("id").String()
			if id == "" {
				id = prefix + "-" + strconv.Itoa(i+1)
			}
			if _, dup := out[id]; !dup {
				keys = append(keys, id)
			}
			out[id] = value
		}
	}
	return out, keys
}

func orderOf(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	out := []string{}
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func objectOf(r gjson.Result) map[string]any {
	if m, ok := r.Value().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
