package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/tripmanager"
)

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator with its queue and HTTP triggers",
		Long: `Run the orchestration host, the start and acknowledge queue consumers,
and the HTTP API until SIGINT or SIGTERM.

Example:
  tripmanager serve --config config.yaml
  tripmanager serve --addr :9090 --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.logger(cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := rootOpts.loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides config")
	return cmd
}

func serve(ctx context.Context, cfg *tripmanager.Config, logger *slog.Logger) error {
	srv, err := tripmanager.New(ctx, tripmanager.WithConfig(cfg), tripmanager.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("tripmanager started", "queue", cfg.Queue.Vendor, "store", cfg.Host.StoreVendor, "index", cfg.Index.Enabled)
	err = srv.Run(ctx)
	logger.Info("tripmanager stopped")
	return err
}
