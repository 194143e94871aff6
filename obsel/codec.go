package obsel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBatch is returned when a submitted batch cannot be decoded.
// Decoding is all-or-nothing: no partial acceptance.
var ErrMalformedBatch = errors.New("obsel: malformed batch")

// CompactMarker prefixes compact-encoded batches on the wire.
const CompactMarker = "c["

// compactKeys maps the abbreviated compact keys to canonical names.
// @d carries a duration, not an absolute end; DecodeCompact resolves it.
var compactKeys = map[string]string{
	"@i": FieldID,
	"@t": FieldType,
	"@b": FieldBegin,
	"@d": FieldEnd,
	"@s": FieldSubject,
}

// IsCompact reports whether data uses the compact transport encoding.
func IsCompact(data string) bool {
	return strings.HasPrefix(data, CompactMarker)
}

// DecodeCompact decodes a compact-encoded batch into canonical obsels.
//
// The encoding swaps the quote and semicolon characters so the payload
// survives being embedded in a query string, and escapes '#' as "%23".
// Undoing the swap yields JSON. Abbreviated keys are remapped, and a
// present @d value is a duration: end = begin + duration (end = begin
// when absent). Missing IDs default to "", missing subjects to
// defaultSubject.
func DecodeCompact(data, defaultSubject string) ([]*Obsel, error) {
	if !IsCompact(data) {
		return nil, fmt.Errorf("%w: missing %q marker", ErrMalformedBatch, CompactMarker)
	}
	text := swapDelimiters(data[1:])
	text = strings.ReplaceAll(text, "%23", "#")

	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	if defaultSubject == "" {
		defaultSubject = AnonymousSubject
	}

	obsels := make([]*Obsel, 0, len(raw))
	for _, rec := range raw {
		m := make(map[string]any, len(rec))
		hasDuration := false
		for k, v := range rec {
			ck, ok := compactKeys[k]
			if !ok {
				ck = k
			}
			if ck == FieldEnd {
				hasDuration = true
			}
			m[ck] = v
		}
		o := FromMap(m)
		if hasDuration {
			o.End = o.Begin + o.End
		} else {
			o.End = o.Begin
		}
		if o.Subject == "" {
			o.Subject = defaultSubject
		}
		obsels = append(obsels, o)
	}
	return obsels, nil
}

// DecodeJSON decodes a canonical JSON array batch.
func DecodeJSON(data []byte) ([]*Obsel, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	obsels := make([]*Obsel, 0, len(raw))
	for _, rec := range raw {
		obsels = append(obsels, FromMap(rec))
	}
	return obsels, nil
}

// swapDelimiters exchanges every '"' with ';' and vice versa.
func swapDelimiters(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"':
			return ';'
		case ';':
			return '"'
		}
		return r
	}, s)
}
