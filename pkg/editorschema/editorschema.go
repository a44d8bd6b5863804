// Package editorschema exports theme setting schemas as OpenAPI 3 schema
// objects for the visual editor and validates editor writes against them.
//
// Every field becomes a nullable property so editors can clear a value.
// Field types without a wire constraint (images, single lookups, unknown
// types) become open schemas carrying only their metadata.
package editorschema

import (
	"errors"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-storefront/pkg/schema"
)

// TypeExtension carries the theme field type on every exported property.
const TypeExtension = "x-storefront-type"

// Field converts one setting field.
func Field(f schema.Field) *openapi3.Schema {
	var out *openapi3.Schema
	switch f.Type {
	case schema.TypeText, schema.TypeTextarea, schema.TypeRichText, schema.TypeRichHTML,
		schema.TypeHTML, schema.TypeLiquid, schema.TypeColor, schema.TypeFontFamily,
		schema.TypeMenu, schema.TypeColorScheme, schema.TypeURL:
		out = openapi3.NewStringSchema()
	case schema.TypeNumber:
		out = openapi3.NewFloat64Schema()
		if f.Min != nil {
			out = out.WithMin(*f.Min)
		}
		if f.Max != nil {
			out = out.WithMax(*f.Max)
		}
	case schema.TypeToggle:
		out = openapi3.NewBoolSchema()
	case schema.TypeSelect, schema.TypeRadio:
		out = &openapi3.Schema{}
		if len(f.Options) > 0 {
			values := make([]any, 0, len(f.Options))
			for _, opt := range f.Options {
				values = append(values, opt.Value)
			}
			out = out.WithEnum(values...)
		}
	case schema.TypeColorSchemeGroup:
		out = openapi3.NewObjectSchema()
		if len(f.Definition) > 0 {
			out.AdditionalProperties = openapi3.AdditionalProperties{
				Schema: openapi3.NewSchemaRef("", Object(f.Definition)),
			}
		}
	default:
		if f.IsLookup() && f.Multi {
			out = openapi3.NewArraySchema()
			if f.Limit > 0 {
				out = out.WithMaxItems(int64(f.Limit))
			}
			break
		}
		out = &openapi3.Schema{}
	}
	out.Nullable = true
	out.Title = f.Label
	out.Description = f.Description
	if f.Default != nil {
		out.Default = f.Default
	}
	out.Extensions = map[string]any{TypeExtension: f.Type}
	return out
}

// Object converts a field list into an object schema. Fields without an id
// (headers, paragraphs) only label the editor and are skipped.
func Object(fields []schema.Field) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	for _, f := range fields {
		if f.ID == "" || f.Type == schema.TypeHeader || f.Type == schema.TypeParagraph {
			continue
		}
		out = out.WithProperty(f.ID, Field(f))
	}
	return out
}

// Settings converts the theme settings schema.
func Settings(sections []schema.Section) *openapi3.Schema {
	var fields []schema.Field
	for _, s := range sections {
		fields = append(fields, s.Fields...)
	}
	out := Object(fields)
	out.Title = "Theme settings"
	return out
}

// Block converts one block schema into {type, settings}.
func Block(b schema.BlockSchema) *openapi3.Schema {
	settings := Object(b.Fields)
	out := openapi3.NewObjectSchema().
		WithProperty("type", openapi3.NewStringSchema().WithEnum(b.Type)).
		WithProperty("settings", settings)
	out.Title = b.Label
	out.Required = []string{"type"}
	return out
}

// Section converts a section schema into {type, settings, blocks}. Blocks
// must match exactly one declared block type unless the section accepts
// app or theme blocks of any type.
func Section(typ string, s *schema.SectionSchema) *openapi3.Schema {
	if s == nil {
		s = &schema.SectionSchema{}
	}
	items := openapi3.NewObjectSchema()
	if !acceptsAnyBlock(s) && len(s.Blocks) > 0 {
		items = &openapi3.Schema{}
		for _, b := range s.Blocks {
			items.OneOf = append(items.OneOf, openapi3.NewSchemaRef("", Block(b)))
		}
	}
	blocks := openapi3.NewArraySchema().WithItems(items)
	if s.MaxBlocks > 0 {
		blocks = blocks.WithMaxItems(int64(s.MaxBlocks))
	}

	out := openapi3.NewObjectSchema().
		WithProperty("type", openapi3.NewStringSchema().WithEnum(typ)).
		WithProperty("settings", Object(s.Fields)).
		WithProperty("blocks", blocks)
	out.Title = s.Label
	return out
}

func acceptsAnyBlock(s *schema.SectionSchema) bool {
	for _, b := range s.Blocks {
		if b.Type == "@app" || b.Type == "@theme" {
			return true
		}
	}
	return false
}

// Components collects section schemas keyed by type, ready to place under
// components.schemas of an OpenAPI document.
func Components(sections map[string]*schema.SectionSchema) openapi3.Schemas {
	out := make(openapi3.Schemas, len(sections))
	for typ, s := range sections {
		out[typ] = openapi3.NewSchemaRef("", Section(typ, s))
	}
	return out
}

// Issue is one validation failure.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Validate.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Validate checks value against s and reports every failure.
func Validate(s *openapi3.Schema, value any) Result {
	if s == nil {
		return Result{Valid: true}
	}
	err := s.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return Result{Valid: true}
	}
	var issues []Issue
	collectIssues(err, &issues)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return Result{Valid: false, Issues: issues}
}

func collectIssues(err error, out *[]Issue) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, inner := range multi {
			collectIssues(inner, out)
		}
		return
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		pointer := schemaErr.JSONPointer()
		*out = append(*out, Issue{
			Path:    "/" + strings.Join(pointer, "/"),
			Field:   strings.Join(pointer, "."),
			Message: strings.TrimSpace(schemaErr.Reason),
		})
		return
	}
	*out = append(*out, Issue{Message: strings.TrimSpace(err.Error())})
}
