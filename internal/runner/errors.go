package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrRunnerConflict indicates a start while the primary process is running
	ErrRunnerConflict = errors.New("process already running")

	// ErrActionConflict indicates an action request while another action is active
	ErrActionConflict = errors.New("action already running")

	// ErrSpawn indicates the OS refused to start a process
	ErrSpawn = errors.New("failed to spawn process")

	// ErrInvalidCommand indicates an empty command line
	ErrInvalidCommand = errors.New("invalid command")
)

// RunnerConflictError is returned by Start when a process is already running.
//
//nolint:revive // RunnerConflictError reads better than ConflictError at call sites
type RunnerConflictError struct {
	Requested string
	Running   string
}

// Error implements the error interface
func (e *RunnerConflictError) Error() string {
	return fmt.Sprintf("cannot start %s: %s is already running", e.Requested, e.Running)
}

// Is reports ErrRunnerConflict as equivalent
func (e *RunnerConflictError) Is(target error) bool {
	return target == ErrRunnerConflict
}

// ActionConflictError is returned by RunAction when another action is active.
type ActionConflictError struct {
	Requested string
	Running   string
}

// Error implements the error interface
func (e *ActionConflictError) Error() string {
	return fmt.Sprintf("failed to start action %s, another action is already running (%s)", e.Requested, e.Running)
}

// Is reports ErrActionConflict as equivalent
func (e *ActionConflictError) Is(target error) bool {
	return target == ErrActionConflict
}

// SpawnError wraps the OS error from a failed process start.
type SpawnError struct {
	Name string
	Err  error
}

// Error implements the error interface
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is reports ErrSpawn as equivalent
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}
