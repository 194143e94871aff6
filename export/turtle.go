package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"nots/store"
)

// turtlePrologue opens every obsel fragment. The model prefix is
// relative so the output can be placed next to any ktbs model.
const turtlePrologue = `@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ktbs: <http://liris.cnrs.fr/silex/2009/ktbs#> .
@prefix : <../model/> .
`

// coreFields are rendered through dedicated ktbs predicates and must
// not be repeated as generic :hasX properties.
var coreFields = map[string]bool{
	"begin": true, "end": true, "@type": true, "@id": true,
	"id": true, "subject": true,
}

// Turtle writes each filtered record as a standalone Turtle fragment.
// Non-core fields become :hasX properties with JSON-encoded values.
func (e *Exporter) Turtle(ctx context.Context, w io.Writer, f store.Filter) error {
	_, records, err := e.enriched(ctx, f)
	if err != nil {
		return err
	}
	for _, rec := range records {
		var props []string
		for _, name := range sortedKeys(rec) {
			if coreFields[name] {
				continue
			}
			value, err := json.Marshal(rec[name])
			if err != nil {
				return err
			}
			props = append(props, fmt.Sprintf(":has%s %s;", capitalize(name), value))
		}
		_, err := fmt.Fprintf(w, `%s
<%v> a :%v;
  ktbs:hasTrace <> ;
  ktbs:hasBegin %v;
  ktbs:hasEnd %v;
  ktbs:hasSubject %q;
  %s
.

`, turtlePrologue, rec["@id"], rec["@type"], rec["begin"], rec["end"],
			asString(rec["subject"]), strings.Join(props, "\n  "))
		if err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
