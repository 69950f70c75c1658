package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/cli/ui"
	"github.com/aki/fujita/internal/config"
)

func newValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file without starting anything.

This command checks:
- The file matches the configuration schema
- At least one command is defined
- Every command and action has a command line
- Working directories exist`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(global.configPath); err != nil {
				ui.Error("Configuration validation failed: %v", err)
				return fmt.Errorf("invalid configuration")
			}
			ui.Success("Configuration is valid")
			return nil
		},
	}
}
