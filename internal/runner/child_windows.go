//go:build windows

package runner

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

func shellCommand(shell, line string) []string {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(shell), ".exe"))
	if base == "cmd" {
		return []string{shell, "/C", line}
	}
	return []string{shell, "-c", line}
}

func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// signalTerminate kills the process; Windows has no SIGTERM
func signalTerminate(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}
	return nil
}

func signalKill(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	return nil
}
