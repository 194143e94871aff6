package obsel

import (
	"regexp"
	"strings"
)

// UnknownMediaID is the fallback when no media id can be derived for a
// session anywhere earlier in the sequence.
const UnknownMediaID = "unknown"

var (
	contentPath  = regexp.MustCompile(`/contents/\w+/(\w+)`)
	leadingDigit = regexp.MustCompile(`^\d`)
	versionToken = regexp.MustCompile(`^v_`)
)

// Enricher decorates raw stored records with derived read-path fields:
// a formatted date, fields expanded from the packed traceInfo value,
// and a media-id reconstructed per session.
//
// The media-id derivation is a fold over the ordered record sequence:
// each record may update the per-session memo (from its url or an
// explicit media-id), and records without one inherit the last value
// seen for their session. Output therefore depends on sequence order;
// create a fresh Enricher per streamed query result.
type Enricher struct {
	mediaID map[string]string // session -> last known media id
}

// NewEnricher returns an Enricher with an empty media-id memo.
func NewEnricher() *Enricher {
	return &Enricher{mediaID: map[string]string{}}
}

// Enrich decorates a single record in place and returns it. The record
// must use public field names; stored-form `_id` and `_serverid` keys
// are renamed first for raw dumps that bypass the store layer.
func (e *Enricher) Enrich(o map[string]any) map[string]any {
	if v, ok := o["_id"]; ok {
		o[FieldID] = v
		delete(o, "_id")
	}
	if v, ok := o["_serverid"]; ok {
		o[FieldSession] = v
		delete(o, "_serverid")
	}

	o["date"] = FormatTime(asInt64(o[FieldBegin]))

	if packed, ok := o["traceInfo"]; ok {
		for _, entry := range strings.Split(asString(packed), ",") {
			kv := strings.Split(entry, ":")
			if len(kv) == 2 {
				o[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
		delete(o, "traceInfo")
	}

	session := asString(o[FieldSession])

	if u, ok := o["url"]; ok {
		if m := contentPath.FindStringSubmatch(asString(u)); m != nil {
			mid := m[1]
			if leadingDigit.MatchString(mid) {
				mid = "m" + mid
			}
			e.mediaID[session] = mid
		}
	}

	// An explicit media-id wins and refreshes the memo, except the
	// "m1" sentinel, which is treated as absent. Otherwise backfill
	// from whatever this session last reported.
	if v, ok := o["media-id"]; ok && asString(v) != "m1" {
		mid := versionToken.ReplaceAllString(asString(v), "")
		o["media-id"] = mid
		e.mediaID[session] = mid
	} else if remembered, ok := e.mediaID[session]; ok {
		o["media-id"] = remembered
	} else {
		o["media-id"] = UnknownMediaID
	}
	return o
}

// EnrichAll folds over an ordered batch with a fresh memo and returns
// the enriched records in order.
func EnrichAll(obsels []*Obsel) []map[string]any {
	e := NewEnricher()
	out := make([]map[string]any, 0, len(obsels))
	for _, o := range obsels {
		out = append(out, e.Enrich(o.AsMap()))
	}
	return out
}
