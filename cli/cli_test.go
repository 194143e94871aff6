package cli

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestFilterFlags(t *testing.T) {
	// WHAT: --from/--to parse ms and calendar forms; --to advances a
	// calendar date one day as an ending bound.
	// WHY: All export commands share the same selection vocabulary.
	opts := &FilterOptions{Subject: "alice", From: "1000", To: "2000"}
	f, err := opts.filter()
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if f.Subject != "alice" || *f.From != 1000 || *f.To != 2000 {
		t.Errorf("filter: %+v", f)
	}

	day := &FilterOptions{From: "2024/01/15", To: "2024/01/15"}
	f, err = day.filter()
	if err != nil {
		t.Fatalf("calendar filter: %v", err)
	}
	if *f.To-*f.From != 24*3600*1000 {
		t.Errorf("ending bound not advanced a day: from=%d to=%d", *f.From, *f.To)
	}
}

func TestFilterFlagsBad(t *testing.T) {
	// WHAT: Unparseable bounds fail instead of being ignored.
	// WHY: A dropped filter would silently export everything.
	opts := &FilterOptions{From: "yesterday"}
	if _, err := opts.filter(); err == nil {
		t.Error("bad --from accepted")
	}
}

func TestRootCommandLayout(t *testing.T) {
	// WHAT: The root exposes all documented subcommands.
	// WHY: Bare invocation serves; subcommands cover exports and MCP.
	root := NewRootCommand()
	want := map[string]bool{
		"serve": false, "dump": false, "turtle": false,
		"bulk": false, "stats": false, "mcp": false,
	}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestOpenStoreCreatesSchema(t *testing.T) {
	// WHAT: openStore creates the database file and its tables.
	// WHY: Every command path goes through this helper.
	opts := &RootOptions{DBPath: filepath.Join(t.TempDir(), "d", "nots.db")}
	cfg, err := loadConfig(opts)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	st, db, err := openStore(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := st.Stats(t.Context()); err != nil {
		t.Errorf("schema missing: %v", err)
	}
}
