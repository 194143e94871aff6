package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	// WHAT: Consecutive IDs are distinct and parseable.
	// WHY: Obsel IDs must be unique across the store.
	gen := UUIDv7()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
	}
}

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed composes a prefix onto the inner generator.
	// WHY: "obs_" / "ses_" prefixes make ID origin obvious in logs.
	gen := Prefixed("obs_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "obs_") {
		t.Errorf("id %q missing prefix", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, "obs_")); err != nil {
		t.Errorf("suffix not a UUID: %v", err)
	}
}
