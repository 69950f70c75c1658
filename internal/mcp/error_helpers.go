package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aki/fujita/internal/runner"
)

// ErrorWithSuggestions is an error that points the agent at a next step.
type ErrorWithSuggestions struct {
	Message     string
	Suggestions []string
	Err         error
}

// Error returns the message followed by the suggestions
func (e *ErrorWithSuggestions) Error() string {
	if len(e.Suggestions) == 0 {
		return e.Message
	}

	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\nDid you mean to use one of these instead?\n")
	for _, suggestion := range e.Suggestions {
		sb.WriteString("  - ")
		sb.WriteString(suggestion)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *ErrorWithSuggestions) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestions creates a new error with suggestions
func NewErrorWithSuggestions(message string, suggestions ...string) error {
	return &ErrorWithSuggestions{
		Message:     message,
		Suggestions: suggestions,
	}
}

// UnknownCommandError lists the configured commands.
func UnknownCommandError(name string, available []string) error {
	suggestions := make([]string, 0, len(available)+1)
	for _, n := range available {
		suggestions = append(suggestions, fmt.Sprintf("runner_start(name: %q)", n))
	}
	suggestions = append(suggestions, "runner_status - List configured commands")
	return NewErrorWithSuggestions(fmt.Sprintf("unknown command: %s", name), suggestions...)
}

// UnknownActionError lists the configured actions.
func UnknownActionError(name string, available []string) error {
	suggestions := make([]string, 0, len(available)+1)
	for _, n := range available {
		suggestions = append(suggestions, fmt.Sprintf("action_run(name: %q)", n))
	}
	suggestions = append(suggestions, "runner_status - List configured actions")
	return NewErrorWithSuggestions(fmt.Sprintf("unknown action: %s", name), suggestions...)
}

// startError explains how to recover from a failed start.
func startError(err error) error {
	if errors.Is(err, runner.ErrRunnerConflict) {
		return &ErrorWithSuggestions{
			Message: err.Error(),
			Suggestions: []string{
				"runner_stop - Stop the running process first",
				"runner_status - Check what is running",
			},
			Err: err,
		}
	}
	return &ErrorWithSuggestions{
		Message: fmt.Sprintf("failed to start: %v", err),
		Suggestions: []string{
			"runner_output - Read the last output lines",
		},
		Err: err,
	}
}
