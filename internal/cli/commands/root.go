// Package commands implements the fujita command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/cli/ui"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "fujita.yaml"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	format     string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "fujita",
		Short: "Supervise one development process and stream its output",
		Long: `Fujita runs one configured command at a time, keeps the most recent lines
of its output, and streams output and status to browsers over WebSocket.
Short actions such as migrations can run alongside the main process.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, err := ui.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			return ui.SetGlobalFormatter(format)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigFile, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "pretty", "Output format (pretty, json)")
	registerLoggerFlags(rootCmd, opts)

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCommandsCmd(opts))
	rootCmd.AddCommand(newMCPCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newLogsCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
