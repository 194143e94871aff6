package mcpsrv

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"nots/obsel"
	"nots/store"
)

func newTestTools(t *testing.T) *Tools {
	t.Helper()
	db := store.OpenMemory(t)
	st := store.New(db)
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return &Tools{Store: st}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content: %d items", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type: %T", res.Content[0])
	}
	return tc.Text
}

func TestQueryTool(t *testing.T) {
	// WHAT: trace_query returns enriched records honouring the strict
	// time window.
	// WHY: The MCP surface must match the HTTP read-back semantics.
	tools := newTestTools(t)
	tools.Store.InsertObsels(context.Background(), "ses_t", []*obsel.Obsel{
		{Type: "E", Begin: 1000, End: 1000, Subject: "alice"},
		{Type: "E", Begin: 2000, End: 2000, Subject: "alice"},
	})

	res, _, err := tools.Query(context.Background(), nil, QueryInput{Subject: "alice", From: "1000"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", textOf(t, res))
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(textOf(t, res)), &records); err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: %d, want boundary excluded", len(records))
	}
	if records[0]["date"] == nil {
		t.Error("record not enriched")
	}
}

func TestQueryToolBadTimestamp(t *testing.T) {
	// WHAT: An unparseable bound yields a tool error, not a transport
	// error.
	// WHY: Tool errors stay visible to the calling model.
	tools := newTestTools(t)
	res, _, err := tools.Query(context.Background(), nil, QueryInput{From: "yesterday"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !res.IsError {
		t.Error("bad timestamp accepted")
	}
}

func TestGetTool(t *testing.T) {
	// WHAT: trace_get returns one record, and a missing id is a tool
	// error.
	// WHY: Absence is an answer, not a failure.
	tools := newTestTools(t)
	tools.Store.InsertObsels(context.Background(), "ses_t", []*obsel.Obsel{
		{ID: "obs_1", Type: "E", Begin: 1, End: 1, Subject: "alice"},
	})

	res, _, _ := tools.Get(context.Background(), nil, GetInput{ID: "obs_1"})
	if res.IsError {
		t.Fatalf("tool error: %s", textOf(t, res))
	}
	if !strings.Contains(textOf(t, res), `"obs_1"`) {
		t.Errorf("result: %s", textOf(t, res))
	}

	res, _, _ = tools.Get(context.Background(), nil, GetInput{ID: "obs_nope"})
	if !res.IsError {
		t.Error("missing id did not error")
	}
}

func TestStatsTools(t *testing.T) {
	// WHAT: trace_stats and trace_day_buckets render the aggregates.
	// WHY: Operators read these without standing up the HTTP server.
	tools := newTestTools(t)
	tools.Store.InsertObsels(context.Background(), "ses_t", []*obsel.Obsel{
		{Type: "E", Begin: 1000, End: 2000, Subject: "alice"},
	})

	res, _, _ := tools.Stats(context.Background(), nil, StatsInput{})
	var stats map[string]any
	if err := json.Unmarshal([]byte(textOf(t, res)), &stats); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["obselCount"].(float64) != 1 {
		t.Errorf("stats: %v", stats)
	}

	res, _, _ = tools.DayBuckets(context.Background(), nil, DayBucketsInput{Subject: "alice"})
	var detail map[string]any
	if err := json.Unmarshal([]byte(textOf(t, res)), &detail); err != nil {
		t.Fatalf("buckets: %v", err)
	}
	if detail["subject"] != "alice" {
		t.Errorf("buckets: %v", detail)
	}
}
