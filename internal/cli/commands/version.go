package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/cli/ui"
)

// Version information, set at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ui.GlobalFormatter.IsJSON() {
				return ui.GlobalFormatter.Output(map[string]string{
					"version":   Version,
					"gitCommit": GitCommit,
					"buildDate": BuildDate,
					"goVersion": runtime.Version(),
					"os":        runtime.GOOS,
					"arch":      runtime.GOARCH,
				})
			}

			ui.OutputLine("fujita version %s", Version)
			ui.OutputLine("  Git commit: %s", GitCommit)
			ui.OutputLine("  Build date: %s", BuildDate)
			ui.OutputLine("  Go version: %s", runtime.Version())
			ui.OutputLine("  OS/Arch:    %s/%s", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
