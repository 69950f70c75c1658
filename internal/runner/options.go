package runner

import (
	"os"
	"runtime"

	"github.com/aki/fujita/internal/core/logger"
)

// ExecOptions carries per-command process settings.
type ExecOptions struct {
	// Dir is the working directory; empty means the supervisor's own
	Dir string
	// Env is added on top of the supervisor's environment
	Env map[string]string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithCacheSize sets how many lines are kept for replay.
func WithCacheSize(n int) Option {
	return func(s *Supervisor) {
		s.cacheSize = n
	}
}

// WithShell sets the shell used to interpret command lines.
func WithShell(shell string) Option {
	return func(s *Supervisor) {
		if shell != "" {
			s.shell = shell
		}
	}
}

// WithLogger sets the supervisor logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// DefaultShell returns $SHELL, falling back to the platform shell.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}
