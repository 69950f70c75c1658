package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCommands is returned when the config defines nothing to supervise
var ErrNoCommands = errors.New("no commands defined")

// Validate checks the configuration for mistakes that would only surface
// when a command is started.
func (c *Config) Validate() error {
	if len(c.Commands) == 0 {
		return ErrNoCommands
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}

	var errs []error
	for _, name := range c.CommandNames() {
		if err := validateCommand(c.Commands[name]); err != nil {
			errs = append(errs, fmt.Errorf("command %q: %w", name, err))
		}
	}
	for _, name := range c.ActionNames() {
		if err := validateCommand(c.Actions[name]); err != nil {
			errs = append(errs, fmt.Errorf("action %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func validateCommand(cmd Command) error {
	if strings.TrimSpace(cmd.Command) == "" {
		return errors.New("command is required")
	}
	if cmd.Dir != "" {
		info, err := os.Stat(cmd.Dir)
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", cmd.Dir)
		}
	}
	return nil
}
