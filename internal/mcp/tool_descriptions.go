package mcp

import "strings"

// ToolDescription gives agents enough context to pick the right tool.
type ToolDescription struct {
	Description string
	WhenToUse   []string
	Examples    []string
}

var toolDescriptions = map[string]ToolDescription{
	"runner_status": {
		Description: "Report whether the supervised process is running, which command it is, and which commands and actions are configured",
		WhenToUse: []string{
			"Before starting a command, to see if one is already running",
			"After a start or stop, to confirm the new state",
			"To discover the configured command and action names",
		},
		Examples: []string{
			`runner_status()`,
		},
	},

	"runner_start": {
		Description: "Start a configured command as the supervised process. Only one process runs at a time; stop the current one first",
		WhenToUse: []string{
			"When asked to launch the dev server or another long-running command",
			"After runner_stop, to switch to a different command",
		},
		Examples: []string{
			`runner_start(name: "web")`,
		},
	},

	"runner_stop": {
		Description: "Ask the supervised process to terminate. Returns immediately; poll runner_status to see it stop",
		WhenToUse: []string{
			"Before starting a different command",
			"When the process is misbehaving and needs a restart",
		},
		Examples: []string{
			`runner_stop()`,
		},
	},

	"action_run": {
		Description: "Run a configured one-off action alongside the supervised process. Its output joins the same log. Only one action runs at a time",
		WhenToUse: []string{
			"To run migrations, seeders or build steps while the server keeps running",
		},
		Examples: []string{
			`action_run(name: "migrate")`,
		},
	},

	"runner_output": {
		Description: "Return the most recent cached output lines of the supervised process and actions, oldest first",
		WhenToUse: []string{
			"After starting a command, to check it came up cleanly",
			"When the process stopped unexpectedly, to read the last errors",
		},
		Examples: []string{
			`runner_output()`,
			`runner_output(limit: 20)`,
		},
	},
}

// toolDescription renders the description of a tool for registration.
func toolDescription(toolName string) string {
	desc, ok := toolDescriptions[toolName]
	if !ok {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(desc.Description)
	sb.WriteString("\n\nWHEN TO USE THIS TOOL:\n")
	for _, when := range desc.WhenToUse {
		sb.WriteString("- " + when + "\n")
	}
	if len(desc.Examples) > 0 {
		sb.WriteString("\nEXAMPLES:\n")
		for _, example := range desc.Examples {
			sb.WriteString(example + "\n")
		}
	}
	return sb.String()
}
