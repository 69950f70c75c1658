package commands

import (
	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/app"
	"github.com/aki/fujita/internal/mcp"
)

func newMCPCmd(global *globalOptions) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start a Model Context Protocol server on stdin/stdout so an AI agent can
start, stop and inspect the configured commands. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := createLogger(global)
			if err != nil {
				return err
			}

			c, err := app.NewContainer(global.configPath, log)
			if err != nil {
				return err
			}
			defer c.Close()

			if start != "" {
				if err := c.StartCommand(start); err != nil {
					return err
				}
			}

			return mcp.NewServer(c.Supervisor, c.Config, Version, log.With("component", "mcp")).Serve()
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Command to start before serving")
	return cmd
}
