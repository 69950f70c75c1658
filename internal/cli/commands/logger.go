package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/core/logger"
)

func registerLoggerFlags(cmd *cobra.Command, opts *globalOptions) {
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
}

// createLogger builds a stderr logger from the global flags.
func createLogger(opts *globalOptions) (logger.Logger, error) {
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(opts.logFormat)
	if err != nil {
		return nil, err
	}

	return logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithOutput(os.Stderr),
	), nil
}
