package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/app"
	"github.com/aki/fujita/internal/cli/ui"
	"github.com/aki/fujita/internal/core/logger"
	"github.com/aki/fujita/internal/instance"
	"github.com/aki/fujita/internal/server"
)

type serveOptions struct {
	listen string
	start  string
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the supervisor over HTTP and WebSocket",
		Long: `Serve loads the configuration, takes the instance lock for it and serves:

  GET  /log            WebSocket stream of output lines (history first)
  GET  /status         WebSocket stream of status changes
  POST /start/{name}   start a configured command
  POST /stop           stop the running command
  POST /action/{name}  run a configured action
  GET  /api/state      current state as JSON`,
		Example: `  # Serve fujita.yaml on its configured address
  fujita serve

  # Start the web command right away on a custom port
  fujita serve --listen 127.0.0.1:8080 --start web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := createLogger(global)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), global.configPath, opts, log)
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Listen address (overrides the config file)")
	cmd.Flags().StringVar(&opts.start, "start", "", "Command to start once serving")

	return cmd
}

func runServe(ctx context.Context, configPath string, opts *serveOptions, log logger.Logger) error {
	c, err := app.NewContainer(configPath, log)
	if err != nil {
		return err
	}

	if opts.start != "" {
		if err := c.CheckCommand(opts.start); err != nil {
			c.Close()
			return err
		}
	}

	listen := c.Config.Listen
	if opts.listen != "" {
		listen = opts.listen
	}

	inst, err := instance.Acquire(c.Config.Path(), instance.Info{Listen: listen})
	if err != nil {
		c.Close()
		return err
	}
	// The lock is held until the supervised process has exited.
	defer func() {
		c.Close()
		if err := inst.Release(); err != nil {
			log.Warn("failed to release instance lock", "error", err)
		}
	}()

	if opts.start != "" {
		if err := c.StartCommand(opts.start); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(c.Supervisor, c.Config, server.WithLogger(log.With("component", "server")))
	ui.Info("Serving %s on %s", c.Config.Path(), listen)

	if err := srv.ListenAndServe(ctx, listen); err != nil {
		return err
	}
	ui.Success("Server stopped")
	return nil
}
