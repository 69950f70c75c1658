package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// drainTimeout bounds how long the exit handler waits for the output pipes
// to reach EOF once the process itself has exited. Background children that
// inherited the pipes would otherwise hold the exit event back forever.
const drainTimeout = 2 * time.Second

// child is one spawned process and its output pipes.
type child struct {
	name      string
	cmd       *exec.Cmd
	stdout    *os.File
	stderr    *os.File
	startTime time.Time

	// exited is set once Wait has reaped the process, possibly before its
	// output is drained.
	exited atomic.Bool

	// done is closed after the exit handler has returned
	done chan struct{}
}

// exitHandler is called exactly once when a child has exited and its
// output has been drained. err is the result of exec.Cmd.Wait.
type exitHandler func(c *child, err error)

// spawn starts commandLine through shell with both output streams piped.
func spawn(name, shell, commandLine string, opts ExecOptions) (*child, error) {
	if strings.TrimSpace(commandLine) == "" {
		return nil, fmt.Errorf("%w: empty command line for %s", ErrInvalidCommand, name)
	}

	args := shellCommand(shell, commandLine)
	cmd := exec.Command(args[0], args[1:]...)
	if err := setupCommand(cmd, opts); err != nil {
		return nil, &SpawnError{Name: name, Err: err}
	}
	configureProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Name: name, Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, &SpawnError{Name: name, Err: fmt.Errorf("failed to create stderr pipe: %w", err)}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, &SpawnError{Name: name, Err: err}
	}
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	return &child{
		name:      name,
		cmd:       cmd,
		stdout:    stdoutR,
		stderr:    stderrR,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}, nil
}

// setupCommand applies working directory and environment
func setupCommand(cmd *exec.Cmd, opts ExecOptions) error {
	if opts.Dir != "" {
		if _, err := os.Stat(opts.Dir); err != nil {
			return fmt.Errorf("working directory does not exist: %w", err)
		}
		cmd.Dir = opts.Dir
	}

	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return nil
}

// run starts the stream readers and the waiter. Lines go to bus; onExit
// fires once after both readers finished and the process was reaped.
func (c *child) run(bus *LineBus, onExit exitHandler) {
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		readLines(c.stdout, StreamOut, bus)
	}()
	go func() {
		defer readers.Done()
		readLines(c.stderr, StreamErr, bus)
	}()

	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()

	go func() {
		err := c.cmd.Wait()
		c.exited.Store(true)

		select {
		case <-drained:
		case <-time.After(drainTimeout):
			// Unblock readers stuck on pipes kept open by grandchildren.
			closeAll(c.stdout, c.stderr)
			<-drained
		}
		closeAll(c.stdout, c.stderr)

		onExit(c, err)
		close(c.done)
	}()
}

// readLines publishes each newline-terminated chunk of r until EOF or a
// read error. A trailing fragment without a newline is published as well.
func readLines(r io.Reader, stream Stream, bus *LineBus) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			bus.Publish(stream, trimEOL(line))
		}
		if err != nil {
			return
		}
	}
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// terminate asks the process (group) to exit
func (c *child) terminate() error {
	return signalTerminate(c.cmd)
}

// kill forcefully ends the process (group)
func (c *child) kill() error {
	return signalKill(c.cmd)
}

// pid returns the OS process id
func (c *child) pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// describeExit renders the Wait result for status messages, e.g.
// "exit status 3" or "signal: killed".
func describeExit(c *child, err error) string {
	if state := c.cmd.ProcessState; state != nil {
		return state.String()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.String()
	}
	if err != nil {
		return err.Error()
	}
	return "exited"
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
