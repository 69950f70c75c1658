//go:build !windows

package runner

import (
	"fmt"
	"os/exec"
	"syscall"
)

// shellCommand builds the argv that runs line through shell
func shellCommand(shell, line string) []string {
	return []string{shell, "-c", line}
}

// configureProcessGroup puts the child in its own process group so a stop
// reaches everything the shell started.
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func isProcessGroup(cmd *exec.Cmd) bool {
	return cmd.SysProcAttr != nil && cmd.SysProcAttr.Setpgid
}

// signalTerminate sends SIGTERM to the process group
func signalTerminate(cmd *exec.Cmd) error {
	if isProcessGroup(cmd) {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
			return fmt.Errorf("failed to send SIGTERM to process group: %w", err)
		}
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	return nil
}

// signalKill sends SIGKILL to the process group
func signalKill(cmd *exec.Cmd) error {
	if isProcessGroup(cmd) {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return fmt.Errorf("failed to kill process group: %w", err)
		}
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	return nil
}
