// Package schema holds the native settings and section schema model shared by
// the settings resolver, the section assembler, the compatibility converter,
// and the editor schema export.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field types with coercion or container semantics. Every other type is a
// plain value.
const (
	TypeColor            = "color"
	TypeColorScheme      = "color_scheme"
	TypeColorSchemeGroup = "color_scheme_group"
	TypeFontFamily       = "font_family"
	TypeLookup           = "lookup"
	TypeProductLookup    = "product_lookup"
	TypeCategoryLookup   = "category_lookup"
	TypeCustomerLookup   = "customer_lookup"
	TypeMenu             = "menu"

	TypeText      = "text"
	TypeTextarea  = "textarea"
	TypeNumber    = "number"
	TypeToggle    = "toggle"
	TypeSelect    = "select"
	TypeRadio     = "radio"
	TypeImage     = "image"
	TypeVideo     = "video"
	TypeURL       = "url"
	TypeRichText  = "rich_text"
	TypeRichHTML  = "rich_html"
	TypeHTML      = "html"
	TypeLiquid    = "liquid"
	TypeHeader    = "header"
	TypeParagraph = "paragraph"
)

// Option is one choice of a select or radio field.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label,omitempty"`
}

// Field describes one setting.
type Field struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Increment   *float64 `json:"increment,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	// Collection is the model a lookup field fetches from.
	Collection string `json:"collection,omitempty"`
	Multi      bool   `json:"multi,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	// Definition lists the entries of each scheme in a color scheme group.
	Definition []Field `json:"definition,omitempty"`
}

// IsLookup reports whether the field yields a deferred resource.
func (f Field) IsLookup() bool {
	switch f.Type {
	case TypeLookup, TypeProductLookup, TypeCategoryLookup, TypeCustomerLookup:
		return true
	}
	return false
}

// LookupModel returns the model a lookup field fetches, defaulting by type.
func (f Field) LookupModel() string {
	if f.Collection != "" {
		return f.Collection
	}
	switch f.Type {
	case TypeProductLookup:
		return "products"
	case TypeCategoryLookup:
		return "categories"
	case TypeCustomerLookup:
		return "accounts"
	}
	return ""
}

// Section is a labelled group of fields, as in the theme settings schema.
type Section struct {
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// Lookup finds a field by id across every section. The search is flat: the
// first field with a matching id wins regardless of nesting.
func Lookup(sections []Section, id string) (Field, bool) {
	for _, s := range sections {
		for _, f := range s.Fields {
			if f.ID != "" && f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Defaults collects field defaults keyed by id.
func Defaults(sections []Section) map[string]any {
	out := map[string]any{}
	for _, s := range sections {
		for _, f := range s.Fields {
			if f.ID != "" && f.Default != nil {
				out[f.ID] = f.Default
			}
		}
	}
	return out
}

// PageFilter restricts where a section may be placed.
type PageFilter struct {
	Templates []string `json:"templates,omitempty"`
	Groups    []string `json:"groups,omitempty"`
}

// Matches reports whether pageType or group is named by the filter. "*"
// matches everything.
func (p *PageFilter) Matches(pageType, group string) bool {
	if p == nil {
		return false
	}
	for _, t := range p.Templates {
		if t == "*" || (pageType != "" && t == pageType) {
			return true
		}
	}
	for _, g := range p.Groups {
		if g == "*" || (group != "" && g == group) {
			return true
		}
	}
	return false
}

// BlockSchema describes one block type of a section.
type BlockSchema struct {
	Type   string  `json:"type"`
	Label  string  `json:"label,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}

// PresetBlock is a block inside a preset.
type PresetBlock struct {
	Type     string         `json:"type"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Preset is a ready-made section configuration offered by the editor.
type Preset struct {
	Label    string         `json:"label"`
	Settings map[string]any `json:"settings,omitempty"`
	Blocks   []PresetBlock  `json:"blocks,omitempty"`
}

// SectionSchema is the schema of one section type. It is loaded once per
// type and shared read-only.
type SectionSchema struct {
	Label      string        `json:"label,omitempty"`
	Tag        string        `json:"tag,omitempty"`
	Class      string        `json:"class,omitempty"`
	Limit      int           `json:"limit,omitempty"`
	MaxBlocks  int           `json:"max_blocks,omitempty"`
	Fields     []Field       `json:"fields,omitempty"`
	Blocks     []BlockSchema `json:"blocks,omitempty"`
	Presets    []Preset      `json:"presets,omitempty"`
	EnabledOn  *PageFilter   `json:"enabled_on,omitempty"`
	DisabledOn *PageFilter   `json:"disabled_on,omitempty"`
}

// SettingsSections wraps the section fields for the settings resolver.
func (s *SectionSchema) SettingsSections() []Section {
	if s == nil {
		return nil
	}
	return []Section{{Label: s.Label, Fields: s.Fields}}
}

// Block returns the schema for a block type. A "@app" or "@theme" entry
// accepts any type.
func (s *SectionSchema) Block(typ string) (BlockSchema, bool) {
	if s == nil {
		return BlockSchema{}, false
	}
	for _, b := range s.Blocks {
		if b.Type == typ {
			return b, true
		}
	}
	for _, b := range s.Blocks {
		if b.Type == "@app" || b.Type == "@theme" {
			return BlockSchema{Type: typ}, true
		}
	}
	return BlockSchema{}, false
}

// AllowedOn reports whether the section may render on pageType within group.
// disabled_on wins over enabled_on; no filter at all allows everything.
func (s *SectionSchema) AllowedOn(pageType, group string) bool {
	if s == nil {
		return true
	}
	if s.DisabledOn.Matches(pageType, group) {
		return false
	}
	if s.EnabledOn != nil {
		return s.EnabledOn.Matches(pageType, group)
	}
	return true
}

// ParseSectionSchema decodes a native section schema.
func ParseSectionSchema(data []byte) (*SectionSchema, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return &SectionSchema{}, nil
	}
	var s SectionSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse section schema: %w", err)
	}
	return &s, nil
}

// ParseSettingsSchema decodes a theme settings schema: a list of sections.
func ParseSettingsSchema(data []byte) ([]Section, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var out []Section
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("schema: parse settings schema: %w", err)
	}
	return out, nil
}
