// Package cli wires the nots commands: the HTTP server, the bulk
// exporters, and the MCP surface.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nots/config"
	"nots/obsel"
	"nots/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
}

// NewRootCommand creates the root command. Bare invocation runs the
// server, matching how deployments have always launched it.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	serve := NewServeCommand(opts)
	cmd := &cobra.Command{
		Use:           "nots",
		Short:         "NoTS - notable trace server",
		Long:          "A trace collection server: obsels in, paginated JSON-LD and bulk exports out.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(serve)
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewTurtleCommand(opts))
	cmd.AddCommand(NewBulkCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration from the config file
// and global flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// setupLogging installs the default JSON logger at the configured
// level.
func setupLogging(cfg *config.Config) {
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if cfg.Debug {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// openStore opens the configured database and initialises the schema.
func openStore(cfg *config.Config) (*store.Store, *sql.DB, error) {
	db, err := store.OpenDB(cfg.DBPath, store.WithMkdirAll())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	st := store.New(db)
	if err := st.Init(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}

// FilterOptions are the shared trace selection flags.
type FilterOptions struct {
	Subject string
	From    string
	To      string
}

// addFilterFlags registers the shared selection flags on an export
// command.
func addFilterFlags(cmd *cobra.Command, opts *FilterOptions) {
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "filter on subject")
	cmd.Flags().StringVar(&opts.From, "from", "", "strict lower bound (ms or YYYY/MM/DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "strict upper bound (ms or YYYY/MM/DD)")
}

// filter builds the store filter from the flags.
func (o *FilterOptions) filter() (store.Filter, error) {
	f := store.Filter{Subject: o.Subject}
	if o.From != "" {
		ms, err := obsel.ParseTimestamp(o.From, false)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.From = &ms
	}
	if o.To != "" {
		ms, err := obsel.ParseTimestamp(o.To, true)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		f.To = &ms
	}
	return f, nil
}
