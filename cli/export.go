package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"nots/export"
)

// NewDumpCommand creates the dump command: the whole filtered trace as
// one JSON document.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{}
	cmd := &cobra.Command{
		Use:           "dump",
		Short:         "Dump the trace to stdout as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExporter(rootOpts, func(ex *export.Exporter) error {
				f, err := opts.filter()
				if err != nil {
					return err
				}
				return ex.DumpJSON(cmd.Context(), os.Stdout, f)
			})
		},
	}
	addFilterFlags(cmd, opts)
	return cmd
}

// NewTurtleCommand creates the turtle command: one RDF fragment per
// obsel.
func NewTurtleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{}
	cmd := &cobra.Command{
		Use:           "turtle",
		Short:         "Dump the trace to stdout in Turtle format",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExporter(rootOpts, func(ex *export.Exporter) error {
				f, err := opts.filter()
				if err != nil {
					return err
				}
				return ex.Turtle(cmd.Context(), os.Stdout, f)
			})
		},
	}
	addFilterFlags(cmd, opts)
	return cmd
}

// NewBulkCommand creates the bulk command: search-engine bulk import
// lines.
func NewBulkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{}
	var index string
	cmd := &cobra.Command{
		Use:           "bulk",
		Short:         "Dump the trace in search-engine bulk import format",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExporter(rootOpts, func(ex *export.Exporter) error {
				f, err := opts.filter()
				if err != nil {
					return err
				}
				return ex.SearchBulk(cmd.Context(), os.Stdout, f, index)
			})
		},
	}
	addFilterFlags(cmd, opts)
	cmd.Flags().StringVar(&index, "index", "ktbs", "target index name")
	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Print per-subject statistics as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			st, db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	return cmd
}

// withExporter opens the store and hands an exporter to fn.
func withExporter(rootOpts *RootOptions, fn func(*export.Exporter) error) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	st, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(export.New(st))
}
