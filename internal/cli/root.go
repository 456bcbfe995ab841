// Package cli implements the tgemonitor command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"TGEMonitor/internal/app"
	"TGEMonitor/internal/config"
	"TGEMonitor/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tgemonitor",
		Short: "Watch news feeds and social posts for token generation events",
		Long: `tgemonitor polls crypto news feeds and social search for tracked projects,
scores what it finds for token generation event relevance and delivers
one consolidated alert per cycle to the configured channels.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config (default $TGE_MONITOR_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newRunCommand(opts),
		newStatusCommand(opts),
		newAlertsCommand(opts),
		newTestNotifyCommand(opts),
		newVersionCommand(version),
	)
	return root
}

// bootstrap loads configuration and wires the application.
func (o *rootOptions) bootstrap(ctx context.Context) (*app.Application, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build application: %w", err)
	}
	return application, logger, nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tgemonitor version %s\n", version)
		},
	}
}
