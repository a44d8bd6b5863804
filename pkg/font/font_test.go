package font

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseResolvesClosestVariant(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{"Assistant:wght=400", Value{Family: "Assistant", Weight: 400, Style: "normal", Fallback: "sans-serif"}},
		{"assistant:wght=450", Value{Family: "Assistant", Weight: 400, Style: "normal", Fallback: "sans-serif"}},
		{"Lora:wght=800,ital=1", Value{Family: "Lora", Weight: 700, Style: "italic", Fallback: "serif"}},
		{"Inter:wght=400,ital=1", Value{Family: "Inter", Weight: 400, Style: "normal", Fallback: "sans-serif"}},
		{"Playfair+Display", Value{Family: "Playfair Display", Weight: 400, Style: "normal", Fallback: "serif"}},
		{"Unknown Sans:wght=300", Value{Family: "Unknown Sans", Weight: 300, Style: "normal", Fallback: "sans-serif"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tc.want, *got, cmpopts.IgnoreFields(Value{}, "Definition")); diff != "" {
				t.Fatalf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestModify(t *testing.T) {
	base, _ := Parse("Roboto:wght=400")

	bold, err := base.Modify("weight", "bold")
	if err != nil || bold.Weight != 700 {
		t.Fatalf("bold: %v %+v", err, bold)
	}
	bolder, _ := bold.Modify("weight", "+100")
	if bolder.Weight != 700 && bolder.Weight != 900 {
		t.Fatalf("+100 should snap to a shipped weight, got %d", bolder.Weight)
	}
	italic, _ := base.Modify("style", "italic")
	if italic.Style != StyleItalic || italic.Weight != 400 {
		t.Fatalf("italic: %+v", italic)
	}
	if _, err := base.Modify("stretch", "condensed"); err == nil {
		t.Fatalf("expected error for unknown property")
	}
}

func TestURLAndFace(t *testing.T) {
	v, _ := Parse("Open Sans:wght=600,ital=1")
	want := "https://fonts.googleapis.com/css2?display=swap&family=Open+Sans%3Aital%2Cwght%401%2C600"
	if got := v.URL(); got != want {
		t.Fatalf("url: got %s want %s", got, want)
	}

	face := v.Face("", "")
	for _, fragment := range []string{`font-family: "Open Sans";`, "font-weight: 600;", "font-style: italic;", `url("/assets/fonts/open-sans/600-italic.woff2")`} {
		if !strings.Contains(face, fragment) {
			t.Fatalf("expected %q in\n%s", fragment, face)
		}
	}

	sys, _ := Parse("Georgia")
	if sys.URL() != "" || sys.Face("", "") != "" {
		t.Fatalf("system fonts must not emit url or face")
	}
	if got := sys.CSSFamily(); got != `"Georgia", serif` {
		t.Fatalf("css family: %s", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	v, _ := Parse("Lora:wght=700,ital=1")
	again, _ := Parse(v.String())
	if diff := cmp.Diff(*v, *again, cmpopts.IgnoreFields(Value{}, "Definition")); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
