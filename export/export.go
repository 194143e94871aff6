// Package export renders stored traces into bulk formats for offline
// analysis: Turtle fragments, search-engine bulk lines, and a raw JSON
// dump. All renderings run over the enriched record sequence.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"nots/obsel"
	"nots/store"
)

// ktbsContext matches the JSON-LD context advertised by the HTTP
// read-back.
const ktbsContext = "http://liris.cnrs.fr/silex/2011/ktbs-jsonld-context"

// Exporter renders filtered slices of the store.
type Exporter struct {
	Store *store.Store
}

// New creates an Exporter over the given store.
func New(st *store.Store) *Exporter {
	return &Exporter{Store: st}
}

// enriched fetches the filtered records and their count, enriched in
// storage order.
func (e *Exporter) enriched(ctx context.Context, f store.Filter) (int, []map[string]any, error) {
	records, err := e.Store.Query(ctx, f)
	if err != nil {
		return 0, nil, err
	}
	return len(records), obsel.EnrichAll(records), nil
}

// DumpJSON writes the whole filtered trace as one JSON document with a
// count field, records pretty-printed one by one so arbitrarily large
// traces never need a single giant marshal.
func (e *Exporter) DumpJSON(ctx context.Context, w io.Writer, f store.Filter) error {
	count, records, err := e.enriched(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, `{
  "@context": [
     %q
  ],
  "@id": ".",
  "count": %d,
  "hasObselList": "",
  "obsels": [
`, ktbsContext, count)

	for i, rec := range records {
		body, err := json.MarshalIndent(rec, "    ", "  ")
		if err != nil {
			return err
		}
		sep := ","
		if i == len(records)-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "    %s%s\n", body, sep); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "  ]\n}\n")
	return err
}
