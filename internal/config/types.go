// Package config loads the fujita YAML configuration: the commands that may
// be started as the supervised process and the actions that may run beside it.
package config

import (
	"sort"

	"github.com/aki/fujita/internal/runner"
)

// Defaults applied by Load
const (
	DefaultListen    = ":5665"
	DefaultCacheSize = runner.DefaultCacheSize
)

// Config is the root of the configuration file
type Config struct {
	Listen    string             `yaml:"listen,omitempty"`
	CacheSize int                `yaml:"cache_size,omitempty"`
	Shell     string             `yaml:"shell,omitempty"`
	Commands  map[string]Command `yaml:"commands"`
	Actions   map[string]Command `yaml:"actions,omitempty"`

	// path is the file the config was read from
	path string
}

// Command describes a process fujita may spawn
type Command struct {
	Command     string            `yaml:"command"`
	Description string            `yaml:"description,omitempty"`
	Dir         string            `yaml:"dir,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// ExecOptions converts the definition into supervisor options.
func (c Command) ExecOptions() runner.ExecOptions {
	return runner.ExecOptions{Dir: c.Dir, Env: c.Env}
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// CommandNames returns the command names in sorted order.
func (c *Config) CommandNames() []string {
	return sortedKeys(c.Commands)
}

// ActionNames returns the action names in sorted order.
func (c *Config) ActionNames() []string {
	return sortedKeys(c.Actions)
}

// LookupCommand returns the named command.
func (c *Config) LookupCommand(name string) (Command, bool) {
	cmd, ok := c.Commands[name]
	return cmd, ok
}

// LookupAction returns the named action.
func (c *Config) LookupAction(name string) (Command, bool) {
	cmd, ok := c.Actions[name]
	return cmd, ok
}

func sortedKeys(m map[string]Command) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
