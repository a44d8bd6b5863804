package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/goliatone/go-storefront/pkg/editorschema"
	"github.com/goliatone/go-storefront/pkg/schema"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// ValidationError reports editor settings rejected by the section schema.
type ValidationError struct {
	Section string
	Result  editorschema.Result
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Issues))
	for _, issue := range e.Result.Issues {
		if issue.Field != "" {
			msgs = append(msgs, issue.Field+": "+issue.Message)
			continue
		}
		msgs = append(msgs, issue.Message)
	}
	return fmt.Sprintf("theme: invalid settings for section %q: %s", e.Section, strings.Join(msgs, "; "))
}

// ValidateSectionSettings checks raw settings against the schema of the
// section type.
func (t *Theme) ValidateSectionSettings(ctx context.Context, typ string, values map[string]any) (editorschema.Result, error) {
	if err := t.Load(ctx); err != nil {
		return editorschema.Result{}, err
	}
	sch, err := t.assembler.Schema(ctx, typ)
	if err != nil {
		return editorschema.Result{}, err
	}
	if sch == nil {
		return editorschema.Result{}, themeerr.NotFound("section schema", typ)
	}
	return editorschema.Validate(editorschema.Object(sch.Fields), values), nil
}

// UpdateSectionSettings writes values into the settings of one section of
// a group document and returns the updated document. Key order and
// untouched content are preserved. The merged settings are validated first;
// a rejection is returned as a *ValidationError.
func (t *Theme) UpdateSectionSettings(ctx context.Context, doc []byte, sectionID string, values map[string]any) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, &themeerr.ConfigParseError{Path: sectionID, Err: fmt.Errorf("malformed group json")}
	}
	base := sectionPath(doc, sectionID)
	if base == "" {
		return nil, themeerr.NotFound("section", sectionID)
	}
	typ := gjson.GetBytes(doc, base+".type").String()

	merged := map[string]any{}
	if raw := gjson.GetBytes(doc, base+".settings"); raw.IsObject() {
		if err := json.Unmarshal([]byte(raw.Raw), &merged); err != nil {
			return nil, &themeerr.ConfigParseError{Path: sectionID, Err: err}
		}
	}
	for k, v := range values {
		merged[k] = v
	}
	res, err := t.ValidateSectionSettings(ctx, typ, normalizeJSON(merged))
	if err != nil && !themeerr.IsNotFound(err) {
		return nil, err
	}
	if err == nil && !res.Valid {
		return nil, &ValidationError{Section: sectionID, Result: res}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := doc
	for _, k := range keys {
		out, err = sjson.SetBytes(out, base+".settings."+escapePath(k), values[k])
		if err != nil {
			return nil, fmt.Errorf("theme: update %s.%s: %w", sectionID, k, err)
		}
	}
	return out, nil
}

// sectionPath returns the sjson path of a section inside a group document,
// whether sections is an object keyed by id or an array of entries.
func sectionPath(doc []byte, sectionID string) string {
	list := gjson.GetBytes(doc, "sections")
	switch {
	case list.IsObject():
		key := "sections." + escapePath(sectionID)
		if gjson.GetBytes(doc, key).Exists() {
			return key
		}
	case list.IsArray():
		for i, entry := range list.Array() {
			if entry.Get("id").String() == sectionID {
				return fmt.Sprintf("sections.%d", i)
			}
		}
	}
	return ""
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapePath(key string) string {
	return pathEscaper.Replace(key)
}

// normalizeJSON round-trips values so numbers and nested values have their
// decoded JSON types.
func normalizeJSON(values map[string]any) map[string]any {
	raw, err := json.Marshal(values)
	if err != nil {
		return values
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return values
	}
	return out
}

// EditorSchema exports the section schemas of every section type in the
// theme, keyed by type.
func (t *Theme) EditorSchema(ctx context.Context) (openapi3.Schemas, error) {
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	lister, ok := t.store.(store.Lister)
	if !ok {
		return nil, fmt.Errorf("theme: store cannot list configs")
	}
	configs, err := lister.ListConfigs(ctx, store.ThemePath(store.CategorySections, ""))
	if err != nil {
		return nil, err
	}
	found := map[string]*schema.SectionSchema{}
	for _, cfg := range configs {
		_, name := store.Describe(cfg.FilePath)
		if _, done := found[name]; done || isGroupFile(cfg) {
			continue
		}
		sch, err := t.assembler.Schema(ctx, name)
		if err != nil {
			return nil, err
		}
		if sch != nil {
			found[name] = sch
		}
	}
	out := editorschema.Components(found)
	out["settings"] = openapi3.NewSchemaRef("", editorschema.Settings(t.settingsSchema))
	return out, nil
}

func isGroupFile(cfg *store.Config) bool {
	return cfg.IsJSON() && isSectionGroup(cfg)
}
