package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nots/server"
	"nots/session"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port          int
	AccessControl string
	External      bool
	Debug         bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trace collection HTTP server",
		Long: `Run the trace collection HTTP server.

Obsels are accepted on /trace/ (POST JSON or GET image-tag batches)
and read back per subject with pagination. Read access is guarded by
the access-control policy; writing never is.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "port number (overrides config)")
	cmd.Flags().StringVarP(&opts.AccessControl, "access-control", "g", "",
		"trace read policy: none, localhost or any (overrides config)")
	cmd.Flags().BoolVarP(&opts.External, "external", "e", false, "allow external access (bind all interfaces)")
	cmd.Flags().BoolVarP(&opts.Debug, "debug", "d", false, "debug logging; implies loopback binding")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if opts.AccessControl != "" {
		cfg.AccessControl = opts.AccessControl
	}
	if opts.External {
		cfg.AllowExternal = true
	}
	if opts.Debug {
		cfg.Debug = true
		cfg.AllowExternal = false
	}
	if err := cfg.Validate(); err != nil {
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

	sessions := session.NewManager([]byte(cfg.SessionSecret), st)
	srv := server.New(st, sessions,
		server.WithAccessControl(cfg.AccessControl),
		server.WithMaxObselCount(cfg.MaxObselCount),
	)

	slog.Info("serving",
		"addr", cfg.Addr(),
		"db", cfg.DBPath,
		"access_control", cfg.AccessControl,
	)
	if err := srv.ListenAndServe(ctx, cfg.Addr()); err != nil {
		return err
	}
	slog.Info("stopped")
	return nil
}
