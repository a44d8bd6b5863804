package compat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-storefront/pkg/font"
)

// FontAliases maps foreign font handle families that have no catalog entry
// of the same name to a catalog family.
var FontAliases = map[string]string{
	"sans-serif":   "Arial",
	"serif":        "Georgia",
	"monospace":    "Courier New",
	"system-ui":    "Helvetica",
	"futura":       "Montserrat",
	"avenir_next":  "Nunito",
	"proxima_nova": "Montserrat",
	"din_next":     "Roboto",
	"garamond":     "Libre Baskerville",
	"baskerville":  "Libre Baskerville",
	"courier":      "Courier New",
	"times":        "Times New Roman",
}

var fontHandlePattern = regexp.MustCompile(`^(.+)_([ni])([1-9])$`)

// FontHandle converts a foreign font handle such as "assistant_n4" into the
// native setting value "Assistant:wght=400". ok is false when raw is not a
// handle.
func FontHandle(raw string) (string, bool) {
	m := fontHandlePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return "", false
	}
	family := m[1]
	if alias, ok := FontAliases[family]; ok {
		family = alias
	} else if def, ok := font.Lookup(strings.ReplaceAll(family, "_", " ")); ok {
		family = def.Family
	} else {
		family = titleWords(strings.ReplaceAll(family, "_", " "))
	}
	out := fmt.Sprintf("%s:wght=%c00", family, m[3][0])
	if m[2] == "i" {
		out += ",ital=1"
	}
	return out, true
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
