package commands

import (
	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/cli/ui"
	"github.com/aki/fujita/internal/config"
)

func newCommandsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"ls"},
		Short:   "List configured commands and actions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}

			commands := commandRows(cfg.Commands, cfg.CommandNames(), "command")
			actions := commandRows(cfg.Actions, cfg.ActionNames(), "action")

			if ui.GlobalFormatter.IsJSON() {
				return ui.GlobalFormatter.Output(append(commands, actions...))
			}

			ui.PrintCommandTable(ui.CommandIcon, "Commands", commands)
			ui.PrintCommandTable(ui.ActionIcon, "Actions", actions)
			return nil
		},
	}
}

func commandRows(defs map[string]config.Command, names []string, kind string) []ui.CommandRow {
	rows := make([]ui.CommandRow, 0, len(names))
	for _, name := range names {
		def := defs[name]
		rows = append(rows, ui.CommandRow{
			Kind:        kind,
			Name:        name,
			Command:     def.Command,
			Dir:         def.Dir,
			Description: def.Description,
		})
	}
	return rows
}
