package compat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/schema"
)

// TypeMapping is the native rendition of one foreign setting type.
type TypeMapping struct {
	Type       string
	Collection string
	Multi      bool
	Options    []schema.Option
}

// SettingTypes maps every supported foreign input type to its native type.
// Types missing here convert to an empty field.
var SettingTypes = map[string]TypeMapping{
	"article":            {Type: schema.TypeLookup, Collection: "content/blog-posts"},
	"blog":               {Type: schema.TypeLookup, Collection: "content/blogs"},
	"checkbox":           {Type: schema.TypeToggle},
	"collection":         {Type: schema.TypeCategoryLookup},
	"collection_list":    {Type: schema.TypeCategoryLookup, Multi: true},
	"color":              {Type: schema.TypeColor},
	"color_background":   {Type: schema.TypeText},
	"color_scheme":       {Type: schema.TypeColorScheme},
	"color_scheme_group": {Type: schema.TypeColorSchemeGroup},
	"font_picker":        {Type: schema.TypeFontFamily},
	"header":             {Type: schema.TypeHeader},
	"html":               {Type: schema.TypeHTML},
	"image_picker":       {Type: schema.TypeImage},
	"inline_richtext":    {Type: schema.TypeRichHTML},
	"link_list":          {Type: schema.TypeMenu},
	"liquid":             {Type: schema.TypeLiquid},
	"number":             {Type: schema.TypeNumber},
	"page":               {Type: schema.TypeLookup, Collection: "content/pages"},
	"paragraph":          {Type: schema.TypeParagraph},
	"product":            {Type: schema.TypeProductLookup},
	"product_list":       {Type: schema.TypeProductLookup, Multi: true},
	"radio":              {Type: schema.TypeRadio},
	"range":              {Type: schema.TypeNumber},
	"richtext":           {Type: schema.TypeRichText},
	"select":             {Type: schema.TypeSelect},
	"text":               {Type: schema.TypeText},
	"text_alignment": {Type: schema.TypeSelect, Options: []schema.Option{
		{Value: "left", Label: "Left"},
		{Value: "center", Label: "Center"},
		{Value: "right", Label: "Right"},
	}},
	"textarea":  {Type: schema.TypeTextarea},
	"url":       {Type: schema.TypeURL},
	"video":     {Type: schema.TypeVideo},
	"video_url": {Type: schema.TypeURL},
}

// Unsupported names a foreign setting whose type has no native mapping.
type Unsupported struct {
	Scope string
	ID    string
	Type  string
}

// Translator resolves "t:" label keys. A nil Translator leaves keys as is.
type Translator func(key string) string

type foreignOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

type foreignSetting struct {
	Type        string           `json:"type"`
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Info        string           `json:"info"`
	Content     string           `json:"content"`
	Default     any              `json:"default"`
	Placeholder string           `json:"placeholder"`
	Options     []foreignOption  `json:"options"`
	Min         *float64         `json:"min"`
	Max         *float64         `json:"max"`
	Step        *float64         `json:"step"`
	Unit        string           `json:"unit"`
	Limit       int              `json:"limit"`
	Definition  []foreignSetting `json:"definition"`
}

type foreignBlock struct {
	Type     string           `json:"type"`
	Name     string           `json:"name"`
	Limit    int              `json:"limit"`
	Settings []foreignSetting `json:"settings"`
}

type foreignPreset struct {
	Name     string               `json:"name"`
	Settings map[string]any       `json:"settings"`
	Blocks   []schema.PresetBlock `json:"blocks"`
}

type foreignFilter struct {
	Templates []string `json:"templates"`
	Groups    []string `json:"groups"`
}

type foreignSchema struct {
	Name       string           `json:"name"`
	Tag        string           `json:"tag"`
	Class      string           `json:"class"`
	Limit      int              `json:"limit"`
	MaxBlocks  int              `json:"max_blocks"`
	Settings   []foreignSetting `json:"settings"`
	Blocks     []foreignBlock   `json:"blocks"`
	Presets    []foreignPreset  `json:"presets"`
	EnabledOn  *foreignFilter   `json:"enabled_on"`
	DisabledOn *foreignFilter   `json:"disabled_on"`
}

type foreignSettingsSection struct {
	Name     string           `json:"name"`
	Settings []foreignSetting `json:"settings"`
}

type converter struct {
	translate   Translator
	unsupported []Unsupported
}

func (c *converter) label(raw string) string {
	if c.translate != nil && strings.HasPrefix(raw, "t:") {
		if out := c.translate(strings.TrimPrefix(raw, "t:")); out != "" {
			return out
		}
	}
	return raw
}

func (c *converter) fields(scope string, in []foreignSetting) []schema.Field {
	if len(in) == 0 {
		return nil
	}
	out := make([]schema.Field, 0, len(in))
	for _, s := range in {
		out = append(out, c.field(scope, s))
	}
	return out
}

func (c *converter) field(scope string, s foreignSetting) schema.Field {
	mapping, ok := SettingTypes[s.Type]
	if !ok {
		c.unsupported = append(c.unsupported, Unsupported{Scope: scope, ID: s.ID, Type: s.Type})
		return schema.Field{ID: s.ID}
	}
	f := schema.Field{
		ID:          s.ID,
		Type:        mapping.Type,
		Label:       c.label(s.Label),
		Description: c.label(s.Info),
		Default:     s.Default,
		Placeholder: c.label(s.Placeholder),
		Collection:  mapping.Collection,
		Multi:       mapping.Multi,
		Limit:       s.Limit,
		Min:         s.Min,
		Max:         s.Max,
		Increment:   s.Step,
		Unit:        s.Unit,
	}
	switch s.Type {
	case "header", "paragraph":
		f.Label = c.label(s.Content)
	case "font_picker":
		if handle, ok := s.Default.(string); ok {
			if converted, ok := FontHandle(handle); ok {
				f.Default = converted
			}
		}
	case "color_scheme_group":
		f.Definition = c.fields(scope+"."+s.ID, s.Definition)
	}
	if len(mapping.Options) > 0 {
		f.Options = append([]schema.Option(nil), mapping.Options...)
	}
	for _, o := range s.Options {
		f.Options = append(f.Options, schema.Option{Value: o.Value, Label: c.label(o.Label)})
	}
	return f
}

func nativeFilter(in *foreignFilter) *schema.PageFilter {
	if in == nil {
		return nil
	}
	out := &schema.PageFilter{Groups: append([]string(nil), in.Groups...)}
	for _, t := range in.Templates {
		out.Templates = append(out.Templates, NativePageName(t))
	}
	return out
}

// ConvertSectionSchema converts a foreign section schema. It is a pure
// function of its inputs.
func ConvertSectionSchema(raw []byte, translate Translator) (*schema.SectionSchema, []Unsupported, error) {
	var in foreignSchema
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("compat: parse section schema: %w", err)
	}
	c := &converter{translate: translate}
	out := &schema.SectionSchema{
		Label:      c.label(in.Name),
		Tag:        in.Tag,
		Class:      in.Class,
		Limit:      in.Limit,
		MaxBlocks:  in.MaxBlocks,
		Fields:     c.fields("section", in.Settings),
		EnabledOn:  nativeFilter(in.EnabledOn),
		DisabledOn: nativeFilter(in.DisabledOn),
	}
	for _, b := range in.Blocks {
		out.Blocks = append(out.Blocks, schema.BlockSchema{
			Type:   b.Type,
			Label:  c.label(b.Name),
			Limit:  b.Limit,
			Fields: c.fields("block."+b.Type, b.Settings),
		})
	}
	for _, p := range in.Presets {
		out.Presets = append(out.Presets, schema.Preset{
			Label:    c.label(p.Name),
			Settings: p.Settings,
			Blocks:   p.Blocks,
		})
	}
	return out, c.unsupported, nil
}

// ConvertSettingsSchema converts a foreign theme settings schema. Entries
// without settings (theme_info) are skipped.
func ConvertSettingsSchema(raw []byte, translate Translator) ([]schema.Section, []Unsupported, error) {
	var in []foreignSettingsSection
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("compat: parse settings schema: %w", err)
	}
	c := &converter{translate: translate}
	var out []schema.Section
	for _, s := range in {
		if len(s.Settings) == 0 {
			continue
		}
		out = append(out, schema.Section{Label: c.label(s.Name), Fields: c.fields(s.Name, s.Settings)})
	}
	return out, c.unsupported, nil
}

// ConvertSectionSchema converts raw and records every unsupported type.
func (a *Adapter) ConvertSectionSchema(ctx context.Context, path string, raw []byte, translate Translator) (*schema.SectionSchema, error) {
	out, unsupported, err := ConvertSectionSchema(raw, translate)
	if err != nil {
		return nil, err
	}
	a.reportUnsupported(ctx, path, unsupported)
	return out, nil
}

// ConvertSettingsSchema converts raw and records every unsupported type.
func (a *Adapter) ConvertSettingsSchema(ctx context.Context, path string, raw []byte, translate Translator) ([]schema.Section, error) {
	out, unsupported, err := ConvertSettingsSchema(raw, translate)
	if err != nil {
		return nil, err
	}
	a.reportUnsupported(ctx, path, unsupported)
	return out, nil
}

func (a *Adapter) reportUnsupported(ctx context.Context, path string, unsupported []Unsupported) {
	for _, u := range unsupported {
		a.record(ctx, diagnostics.Event{
			Kind:    diagnostics.KindUnsupportedSetting,
			Path:    path,
			Message: fmt.Sprintf("setting %q has unsupported type %q", u.ID, u.Type),
			Attrs:   map[string]string{"scope": u.Scope, "setting": u.ID, "type": u.Type},
		})
	}
}
