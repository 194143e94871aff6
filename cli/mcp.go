package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nots/mcpsrv"
)

// NewMCPCommand creates the mcp command: the trace read surface served
// as MCP tools over stdio.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "mcp",
		Short:         "Serve trace query tools over MCP stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			setupLogging(cfg)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return mcpsrv.Run(ctx, st)
		},
	}
}
