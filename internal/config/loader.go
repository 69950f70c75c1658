package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aki/fujita/internal/runner"
)

// Load reads, defaults and validates the configuration at path. Relative
// working directories are resolved against the directory of path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.path = path

	base := filepath.Dir(path)
	resolveDirs(cfg.Commands, base)
	resolveDirs(cfg.Actions, base)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Shell == "" {
		cfg.Shell = runner.DefaultShell()
	}
	if cfg.Commands == nil {
		cfg.Commands = make(map[string]Command)
	}
	if cfg.Actions == nil {
		cfg.Actions = make(map[string]Command)
	}
}

func resolveDirs(cmds map[string]Command, base string) {
	for name, cmd := range cmds {
		if cmd.Dir != "" && !filepath.IsAbs(cmd.Dir) {
			cmd.Dir = filepath.Join(base, cmd.Dir)
			cmds[name] = cmd
		}
	}
}
