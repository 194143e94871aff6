// Package obsel defines the observation element data model, the compact
// batch codec, timestamp parsing, and the read-path enrichment fold.
package obsel

import "encoding/json"

// Canonical field names. Everything else on a record is free-form metadata.
const (
	FieldID      = "@id"
	FieldType    = "@type"
	FieldBegin   = "begin"
	FieldEnd     = "end"
	FieldSubject = "subject"
	FieldSession = "session"
)

// AnonymousSubject is the placeholder used when no subject is supplied
// and the session profile carries no default.
const AnonymousSubject = "anonymous"

// Obsel is a single timestamped observation element. Begin and End are
// milliseconds since epoch; End >= Begin by convention, not enforced.
// Extra holds free-form metadata fields beyond the fixed set.
type Obsel struct {
	ID      string
	Type    string
	Begin   int64
	End     int64
	Subject string
	Session string
	Extra   map[string]any
}

// FromMap builds an Obsel from a decoded record, pulling the canonical
// fields out and leaving the rest in Extra.
func FromMap(m map[string]any) *Obsel {
	o := &Obsel{}
	for k, v := range m {
		switch k {
		case FieldID, "id":
			o.ID = asString(v)
		case FieldType:
			o.Type = asString(v)
		case FieldBegin:
			o.Begin = asInt64(v)
		case FieldEnd:
			o.End = asInt64(v)
		case FieldSubject:
			o.Subject = asString(v)
		case FieldSession, "_serverid":
			o.Session = asString(v)
		default:
			if o.Extra == nil {
				o.Extra = map[string]any{}
			}
			o.Extra[k] = v
		}
	}
	return o
}

// AsMap renders the obsel with its canonical public field names, ready
// for enrichment and serialization. Extra fields are copied, so the
// caller may mutate the result freely.
func (o *Obsel) AsMap() map[string]any {
	m := make(map[string]any, len(o.Extra)+6)
	for k, v := range o.Extra {
		m[k] = v
	}
	m[FieldID] = o.ID
	m[FieldType] = o.Type
	m[FieldBegin] = o.Begin
	m[FieldEnd] = o.End
	m[FieldSubject] = o.Subject
	m[FieldSession] = o.Session
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
