package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
)

// NewTable creates a table writing to Stdout with consistent styling.
func NewTable(headers ...interface{}) table.Table {
	tbl := table.New(headers...)

	// Header formatters break alignment, so only the first column is styled
	tbl.WithFirstColumnFormatter(func(format string, vals ...interface{}) string {
		return BoldStyle.Render(fmt.Sprintf(format, vals...))
	})
	tbl.WithPadding(2)
	tbl.WithWidthFunc(lipgloss.Width)
	tbl.WithWriter(Stdout)

	return tbl
}

// CommandRow is one line of the commands listing.
type CommandRow struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Dir         string `json:"dir,omitempty"`
	Description string `json:"description,omitempty"`
}

// PrintSectionHeader prints a consistent section header
func PrintSectionHeader(icon string, title string, count int) {
	OutputLine("\n%s %s (%d)", icon, title, count)
}

// PrintCommandTable prints rows grouped by kind.
func PrintCommandTable(icon, title string, rows []CommandRow) {
	if len(rows) == 0 {
		return
	}

	tbl := NewTable("NAME", "COMMAND", "DIR", "DESCRIPTION")
	for _, r := range rows {
		tbl.AddRow(r.Name, r.Command, orDash(r.Dir), orDash(r.Description))
	}

	PrintSectionHeader(icon, title, len(rows))
	tbl.Print()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
