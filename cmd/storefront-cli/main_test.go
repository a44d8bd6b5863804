package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/goliatone/go-storefront/pkg/testsupport"
	"github.com/goliatone/go-storefront/pkg/theme"
)

const heroSection = `<div id="swell-section-hero" class="swell-section"><h1>Hello</h1></div>`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STOREFRONT_LOG_LEVEL", "error")
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "page with layout",
			args: []string{"-theme", "testdata", "render", "-page", "about"},
			want: `<html><main><p>Acme #336699</p></main></html>`,
		},
		{
			name: "section group page without layout",
			args: []string{"-theme", "testdata", "render", "-bare", "-page", "index"},
			want: heroSection,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STOREFRONT_STORE_NAME", "Acme")
			got, err := runCLI(t, tc.args...)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "index.html")
	if _, err := runCLI(t, "-theme", "testdata", "render", "-bare", "-page", "index", "-out", path); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := testsupport.MustReadGoldenString(t, path); got != heroSection {
		t.Fatalf("unexpected file contents %q", got)
	}
}

func TestSectionsCommand(t *testing.T) {
	got, err := runCLI(t, "-theme", "testdata", "sections", "-page", "index")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var decoded map[string][]theme.RenderedSection
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string][]theme.RenderedSection{
		"index": {{ID: "hero", Type: "hero", HTML: heroSection}},
	}
	if diff := testsupport.CompareGolden(want, decoded); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}

	if _, err := runCLI(t, "-theme", "testdata", "sections"); err == nil {
		t.Fatalf("expected an error without -page or -layout")
	}
}

func TestSchemaCommand(t *testing.T) {
	got, err := runCLI(t, "-theme", "testdata", "schema")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	schemas := gjson.Get(got, "components.schemas")
	for _, key := range []string{"hero", "settings"} {
		if !schemas.Get(key).Exists() {
			t.Fatalf("schema %q missing from %s", key, got)
		}
	}
	if maximum := gjson.Get(got, "components.schemas.hero.properties.settings.properties.count.maximum").Float(); maximum != 5 {
		t.Fatalf("expected count maximum 5, got %v", maximum)
	}
}

func TestValidateCommand(t *testing.T) {
	got, err := runCLI(t, "-theme", "testdata", "validate", "-section", "hero", "-settings", `{"count": 3}`)
	if err != nil {
		t.Fatalf("valid settings rejected: %v\n%s", err, got)
	}
	if !gjson.Get(got, "valid").Bool() {
		t.Fatalf("expected valid result, got %s", got)
	}

	got, err = runCLI(t, "-theme", "testdata", "validate", "-section", "hero", "-settings", `{"count": 9}`)
	if err == nil {
		t.Fatalf("expected out of range count to fail")
	}
	if gjson.Get(got, "valid").Bool() || !gjson.Get(got, "issues.#").Exists() {
		t.Fatalf("expected issues in %s", got)
	}
}

func TestImportThenRenderFromSQLite(t *testing.T) {
	t.Setenv("STOREFRONT_STORE_NAME", "Acme")
	dsn := filepath.Join(t.TempDir(), "theme.db")
	if _, err := runCLI(t, "-sqlite", dsn, "import", "-from", "testdata"); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := runCLI(t, "-sqlite", dsn, "render", "-page", "about")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := `<html><main><p>Acme #336699</p></main></html>`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		args []string
		msg  string
	}{
		{"no command", []string{"-theme", "testdata"}, "missing command"},
		{"unknown command", []string{"-theme", "testdata", "deploy"}, "unknown command"},
		{"no theme", []string{"render"}, "theme.dir or theme.sqlite is required"},
		{"bad compat", []string{"-theme", "testdata", "-compat", "maybe", "render"}, "invalid -compat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STOREFRONT_THEME_DIR", "")
			_, err := runCLI(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected error containing %q, got %v", tc.msg, err)
			}
		})
	}
}
