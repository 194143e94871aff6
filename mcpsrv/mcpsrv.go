// Package mcpsrv exposes the trace read surface as MCP tools so
// operators can query a store from MCP clients.
package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"nots/obsel"
	"nots/store"
)

// Version is advertised in the MCP handshake.
const Version = "1.0.0"

// Tools serves the trace query tools over a store.
type Tools struct {
	Store *store.Store
}

// NewServer builds an MCP server with the trace tools registered.
func NewServer(st *store.Store) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "nots",
		Version: Version,
	}, nil)

	t := &Tools{Store: st}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "trace_query",
		Description: "Query enriched obsels, optionally filtered by subject and a strict from/to time window (ms or YYYY/MM/DD)",
	}, t.Query)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "trace_get",
		Description: "Fetch a single obsel by id",
	}, t.Get)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "trace_stats",
		Description: "Per-subject obsel counts and time ranges for the whole store",
	}, t.Stats)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "trace_day_buckets",
		Description: "Per-day obsel counts for one subject",
	}, t.DayBuckets)

	return srv
}

// Run serves the tools over stdio until ctx is cancelled.
func Run(ctx context.Context, st *store.Store) error {
	return NewServer(st).Run(ctx, &mcp.StdioTransport{})
}

// QueryInput selects a slice of the trace.
type QueryInput struct {
	Subject string `json:"subject,omitempty" jsonschema:"Subject whose trace to read (empty for all)"`
	From    string `json:"from,omitempty" jsonschema:"Strict lower bound, ms or YYYY/MM/DD"`
	To      string `json:"to,omitempty" jsonschema:"Strict upper bound, ms or YYYY/MM/DD"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 100)"`
}

func (t *Tools) Query(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, any, error) {
	f, err := buildFilter(input.Subject, input.From, input.To)
	if err != nil {
		return toolError("Bad filter: %v", err), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	records, err := t.Store.QueryPage(ctx, f, limit, 0)
	if err != nil {
		return toolError("Query failed: %v", err), nil, nil
	}
	return toolJSON(obsel.EnrichAll(records))
}

// GetInput addresses one obsel.
type GetInput struct {
	ID string `json:"id" jsonschema:"Obsel identifier"`
}

func (t *Tools) Get(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, any, error) {
	record, err := t.Store.GetByID(ctx, input.ID)
	if err != nil {
		return toolError("Lookup failed: %v", err), nil, nil
	}
	if record == nil {
		return toolError("No obsel with id %q", input.ID), nil, nil
	}
	return toolJSON(obsel.EnrichAll([]*obsel.Obsel{record})[0])
}

// StatsInput takes no parameters.
type StatsInput struct{}

func (t *Tools) Stats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, any, error) {
	stats, err := t.Store.Stats(ctx)
	if err != nil {
		return toolError("Stats failed: %v", err), nil, nil
	}
	return toolJSON(stats)
}

// DayBucketsInput names the subject to bucket.
type DayBucketsInput struct {
	Subject string `json:"subject" jsonschema:"Subject whose activity to bucket by day"`
}

func (t *Tools) DayBuckets(ctx context.Context, _ *mcp.CallToolRequest, input DayBucketsInput) (*mcp.CallToolResult, any, error) {
	buckets, err := t.Store.DayBuckets(ctx, input.Subject)
	if err != nil {
		return toolError("Buckets failed: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"subject": input.Subject, "ranges": buckets})
}

func buildFilter(subject, from, to string) (store.Filter, error) {
	f := store.Filter{Subject: subject}
	if from != "" {
		ms, err := obsel.ParseTimestamp(from, false)
		if err != nil {
			return f, err
		}
		f.From = &ms
	}
	if to != "" {
		ms, err := obsel.ParseTimestamp(to, true)
		if err != nil {
			return f, err
		}
		f.To = &ms
	}
	return f, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
