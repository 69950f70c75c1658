package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/tail"
)

type logsOptions struct {
	addr       string
	follow     bool
	lines      int
	timestamps bool
}

func newLogsCmd(global *globalOptions) *cobra.Command {
	opts := &logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print output of the supervised process",
		Long: `Print the cached output of a running fujita server.

With --follow the full history is printed and new lines are streamed until
interrupted.`,
		Example: `  # Last lines that fit the terminal
  fujita logs

  # Stream everything
  fujita logs -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveServer(global, opts.addr)
			if err != nil {
				return err
			}

			tailer := tail.New(base, tail.Options{
				Writer:     cmd.OutOrStdout(),
				MaxLines:   opts.lines,
				Timestamps: opts.timestamps,
			})

			if !opts.follow {
				return tailer.Recent(cmd.Context())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tailer.Follow(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Server address (host:port or URL)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Stream new lines")
	cmd.Flags().IntVarP(&opts.lines, "tail", "n", 0, "Number of lines to show (default fits the terminal)")
	cmd.Flags().BoolVarP(&opts.timestamps, "timestamps", "t", false, "Prefix lines with their time")
	return cmd
}
