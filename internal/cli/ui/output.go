package ui

import (
	"fmt"
	"io"
	"os"
)

// Destinations for the print helpers. Tests swap them out.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func Error(format string, args ...interface{}) {
	fmt.Fprintf(Stderr, "%s %s\n", ErrorIcon, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

func Success(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, "%s %s\n", SuccessIcon, SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

func Info(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, "%s %s\n", InfoIcon, InfoStyle.Render(fmt.Sprintf(format, args...)))
}

func Warning(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, "%s %s\n", WarningIcon, WarningStyle.Render(fmt.Sprintf(format, args...)))
}

// OutputLine prints a plain line to Stdout.
func OutputLine(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, format+"\n", args...)
}

// StatusLabel renders a supervisor status code.
func StatusLabel(code int) string {
	if code == 1 {
		return RunningStyle.Render("running")
	}
	return StoppedStyle.Render("stopped")
}
