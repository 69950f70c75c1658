package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/aki/fujita/internal/core/logger"
)

// initialStatusMessage is the status of a supervisor that never ran anything
const initialStatusMessage = "Ready to start"

// Supervisor owns the primary child process, the optional action process,
// and the line and status buses they feed.
//
// Status events are posted while mu is held, so each RUNNING precedes the
// STOPPED of the same process, and delivered after it is released. A status
// subscriber may therefore call Start or Stop from inside OnStatus, e.g. to
// restart a process that exited. Line subscribers must not call
// SubscribeLines from inside OnLine.
type Supervisor struct {
	mu            sync.Mutex
	primary       *child
	name          string
	stopRequested bool
	action        *child

	lines  *LineBus
	status *StatusBus

	shell     string
	cacheSize int
	logger    logger.Logger
}

// New creates an idle supervisor with status STOPPED.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		shell:     DefaultShell(),
		cacheSize: DefaultCacheSize,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.lines = NewLineBus(s.cacheSize, s.logger.With("bus", "lines"))
	s.status = NewStatusBus(StatusEvent{Code: StatusStopped, Message: initialStatusMessage}, s.logger.With("bus", "status"))
	return s
}

// Start spawns commandLine through the shell as the primary process.
// It fails with *RunnerConflictError while another primary process is
// running and with *SpawnError when the OS cannot start it.
func (s *Supervisor) Start(name, commandLine string, opts ExecOptions) error {
	s.mu.Lock()
	if s.primary != nil {
		running := s.primary.name
		s.mu.Unlock()
		s.logger.Warn("start rejected, process already running", "requested", name, "running", running)
		return &RunnerConflictError{Requested: name, Running: running}
	}

	s.logger.Info("starting subprocess", "name", name, "command", commandLine)
	c, err := spawn(name, s.shell, commandLine, opts)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to start subprocess", "name", name, "error", err)
		return err
	}
	s.primary = c
	s.name = name
	s.stopRequested = false
	s.status.post(StatusEvent{Code: StatusRunning, Message: fmt.Sprintf("%s is running", name)})
	s.mu.Unlock()

	s.logger.Debug("subprocess started", "name", name, "pid", c.pid())
	s.status.flush()
	c.run(s.lines, s.primaryExited)
	return nil
}

// Stop asks the primary process to terminate and returns without waiting.
// It does nothing when no process is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.primary == nil || s.primary.exited.Load() {
		return
	}
	s.stopRequested = true
	s.logger.Info("stopping subprocess", "name", s.primary.name, "pid", s.primary.pid())
	if err := s.primary.terminate(); err != nil {
		// The process may already be gone; its exit handler will still run.
		s.logger.Debug("terminate failed", "name", s.primary.name, "error", err)
	}
}

func (s *Supervisor) primaryExited(c *child, err error) {
	exit := describeExit(c, err)

	s.mu.Lock()
	requested := s.stopRequested
	if s.primary == c {
		s.primary = nil
		s.stopRequested = false
	}
	msg := fmt.Sprintf("%s is not running", c.name)
	if !requested {
		msg = fmt.Sprintf("%s is not running (%s)", c.name, exit)
	}
	s.status.post(StatusEvent{Code: StatusStopped, Message: msg})
	s.mu.Unlock()

	s.logger.Info("subprocess exited", "name", c.name, "exit", exit, "requested", requested)
	s.status.flush()
}

// Shutdown terminates the primary and action processes and waits for their
// exit handlers. Processes still alive when ctx ends are killed, and the
// context error is returned.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var running []*child
	if s.primary != nil {
		s.stopRequested = true
		running = append(running, s.primary)
	}
	if s.action != nil {
		running = append(running, s.action)
	}
	s.mu.Unlock()

	for _, c := range running {
		if err := c.terminate(); err != nil {
			s.logger.Debug("terminate failed", "name", c.name, "error", err)
		}
	}

	var forced bool
	for _, c := range running {
		select {
		case <-c.done:
			continue
		case <-ctx.Done():
		}
		s.logger.Warn("process did not exit in time, killing", "name", c.name, "pid", c.pid())
		if err := c.kill(); err != nil {
			s.logger.Debug("kill failed", "name", c.name, "error", err)
		}
		<-c.done
		forced = true
	}

	if forced {
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
	return nil
}

// Status returns the current status event.
func (s *Supervisor) Status() StatusEvent {
	return s.status.Current()
}

// Running reports whether a primary process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary != nil
}

// Name returns the name of the running primary process, or of the last one
// started. It is empty before the first Start.
func (s *Supervisor) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Lines returns the cached line events, oldest first.
func (s *Supervisor) Lines() []LineEvent {
	return s.lines.Snapshot()
}

// SubscribeLines replays cached lines to sub and registers it.
func (s *Supervisor) SubscribeLines(sub LineSubscriber) {
	s.lines.Subscribe(sub)
}

// UnsubscribeLines removes sub.
func (s *Supervisor) UnsubscribeLines(sub LineSubscriber) {
	s.lines.Unsubscribe(sub)
}

// SubscribeStatus delivers the current status to sub and registers it.
func (s *Supervisor) SubscribeStatus(sub StatusSubscriber) {
	s.status.Subscribe(sub)
}

// UnsubscribeStatus removes sub.
func (s *Supervisor) UnsubscribeStatus(sub StatusSubscriber) {
	s.status.Unsubscribe(sub)
}
