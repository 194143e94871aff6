package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"nots/obsel"
	"nots/store"
)

// SearchBulk writes the filtered records in the bulk-import line
// format of document search engines: an index action line followed by
// the document line. Timestamps are rewritten to the formatted local
// date so the engine's date detection picks them up.
func (e *Exporter) SearchBulk(ctx context.Context, w io.Writer, f store.Filter, index string) error {
	records, err := e.Store.Query(ctx, f)
	if err != nil {
		return err
	}
	enricher := obsel.NewEnricher()
	for i, record := range records {
		doc := enricher.Enrich(record.AsMap())
		date := doc["date"]
		doc["@timestamp"] = date
		doc["begin"] = date
		doc["end"] = obsel.FormatTime(record.End)

		action := map[string]any{
			"index": map[string]any{
				"_index": index,
				"_type":  doc["@type"],
				"_id":    fmt.Sprintf("%d", i+1),
			},
			"_timestamp": date,
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return err
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", actionLine, docLine); err != nil {
			return err
		}
	}
	return nil
}
