// Package cli wires configuration, storage and services into commands.
package cli

import (
	"os"

	"github.com/ChrisHK/label-printer/internal/config"
	"github.com/ChrisHK/label-printer/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	logLevel  string
	logFormat string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "label-printer",
		Short:         "Inventory batch ingestion service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format json|text (overrides LOG_FORMAT)")

	root.AddCommand(
		newServeCommand(opts),
		newArchiveCommand(opts),
		newReconcileCommand(opts),
		newChecksumCommand(),
		newPushCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies flag overrides and sets up logging.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
