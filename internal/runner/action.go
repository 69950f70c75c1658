package runner

// RunAction spawns an auxiliary process whose output feeds the same line
// bus as the primary process. Only one action may be active at a time; the
// primary status is never touched.
func (s *Supervisor) RunAction(name, commandLine string, opts ExecOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.action != nil {
		err := &ActionConflictError{Requested: name, Running: s.action.name}
		s.logger.Error("action rejected", "error", err)
		return err
	}

	s.logger.Info("starting action", "name", name, "command", commandLine)
	c, err := spawn(name, s.shell, commandLine, opts)
	if err != nil {
		s.logger.Error("failed to start action", "name", name, "error", err)
		return err
	}
	s.action = c
	c.run(s.lines, s.actionExited)
	return nil
}

// ActionName returns the active action, or "" when none is running.
func (s *Supervisor) ActionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.action == nil {
		return ""
	}
	return s.action.name
}

func (s *Supervisor) actionExited(c *child, err error) {
	s.mu.Lock()
	if s.action == c {
		s.action = nil
	}
	s.mu.Unlock()

	s.logger.Info("action exited", "name", c.name, "exit", describeExit(c, err))
}
