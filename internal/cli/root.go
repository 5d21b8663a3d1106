// Package cli implements the tripmanager command line
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/viant/tripmanager"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "tripmanager",
		Short: "Trip manager coordinator",
		Long:  "Starts, routes driver acknowledgements to, and terminates one workflow instance per trip.",
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file URL (YAML)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	return cmd
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) loadConfig(ctx context.Context) (*tripmanager.Config, error) {
	if o.Config == "" {
		cfg := tripmanager.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return tripmanager.LoadConfig(ctx, o.Config)
}
