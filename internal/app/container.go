// Package app wires the configuration, logger and supervisor together.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aki/fujita/internal/config"
	"github.com/aki/fujita/internal/core/logger"
	"github.com/aki/fujita/internal/runner"
)

// ShutdownTimeout bounds how long Close waits for the supervised process
// before killing it.
const ShutdownTimeout = 5 * time.Second

// ErrUnknownCommand is returned by StartCommand for names not in the config
var ErrUnknownCommand = errors.New("unknown command")

// Container holds the objects one fujita process shares.
type Container struct {
	Config     *config.Config
	Logger     logger.Logger
	Supervisor *runner.Supervisor
}

// NewContainer loads the config at configPath and builds a supervisor for it.
func NewContainer(configPath string, log logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.Nop()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config: cfg,
		Logger: log,
		Supervisor: runner.New(
			runner.WithCacheSize(cfg.CacheSize),
			runner.WithShell(cfg.Shell),
			runner.WithLogger(log.With("component", "runner")),
		),
	}, nil
}

// CheckCommand reports whether name is a configured command.
func (c *Container) CheckCommand(name string) error {
	if _, ok := c.Config.LookupCommand(name); !ok {
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	return nil
}

// StartCommand starts the named configured command.
func (c *Container) StartCommand(name string) error {
	if err := c.CheckCommand(name); err != nil {
		return err
	}
	cmd, _ := c.Config.LookupCommand(name)
	return c.Supervisor.Start(name, cmd.Command, cmd.ExecOptions())
}

// Close stops whatever is still running, killing it after ShutdownTimeout.
func (c *Container) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := c.Supervisor.Shutdown(ctx); err != nil {
		c.Logger.Warn("supervised process did not exit in time", "error", err)
	}
}
