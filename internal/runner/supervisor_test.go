package runner

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("supervisor tests use a POSIX shell")
	}

	s := New(append([]Option{WithShell("/bin/sh")}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func waitStopped(t *testing.T, r *recorder) StatusEvent {
	t.Helper()
	var last StatusEvent
	require.Eventually(t, func() bool {
		statuses := r.statusList()
		if len(statuses) < 2 {
			return false
		}
		last = statuses[len(statuses)-1]
		return last.Code == StatusStopped
	}, waitFor, tick)
	return last
}

func TestSupervisor_InitialState(t *testing.T) {
	s := newTestSupervisor(t)

	assert.Equal(t, StatusEvent{Code: StatusStopped, Message: "Ready to start"}, s.Status())
	assert.False(t, s.Running())
	assert.Empty(t, s.Name())
	assert.Empty(t, s.ActionName())
	assert.Empty(t, s.Lines())
}

func TestSupervisor_EndToEnd(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)
	s.SubscribeLines(r)

	require.NoError(t, s.Start("greeter", `printf 'alpha\nbeta\n'`, ExecOptions{}))

	last := waitStopped(t, r)
	assert.Equal(t, "greeter is not running (exit status 0)", last.Message)

	assert.Equal(t, []string{"status:0", "status:1", "line:alpha", "line:beta", "status:0"}, r.events())
	assert.Equal(t, StatusEvent{Code: StatusRunning, Message: "greeter is running"}, r.statusList()[1])
	for _, ev := range r.lines {
		assert.Equal(t, StreamOut, ev.Stream)
	}
	assert.False(t, s.Running())
	assert.Equal(t, "greeter", s.Name())
	assert.Len(t, s.Lines(), 2)
}

func TestSupervisor_CapturesStderrAndFragments(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)
	s.SubscribeLines(r)

	require.NoError(t, s.Start("mixed", `echo oops 1>&2; printf 'crlf\r\n'; printf 'no newline'`, ExecOptions{}))
	waitStopped(t, r)

	byText := make(map[string]Stream)
	for _, ev := range s.Lines() {
		byText[ev.Text] = ev.Stream
	}
	assert.Equal(t, map[string]Stream{
		"oops":       StreamErr,
		"crlf":       StreamOut,
		"no newline": StreamOut,
	}, byText)
}

func TestSupervisor_ExecOptions(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)
	s.SubscribeLines(r)

	dir := t.TempDir()
	opts := ExecOptions{
		Dir: dir,
		Env: map[string]string{"FUJITA_TEST_VAR": "test-value"},
	}
	require.NoError(t, s.Start("env", `pwd; echo "$FUJITA_TEST_VAR"`, opts))
	waitStopped(t, r)

	texts := r.texts()
	require.Len(t, texts, 2)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(texts[0])
	require.NoError(t, err)
	assert.Equal(t, resolved, gotDir)
	assert.Equal(t, "test-value", texts[1])
}

func TestSupervisor_StartConflict(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("first", "sleep 30", ExecOptions{}))

	err := s.Start("second", "echo nope", ExecOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunnerConflict))

	var conflict *RunnerConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "first", conflict.Running)
	assert.Equal(t, "second", conflict.Requested)

	assert.Equal(t, StatusEvent{Code: StatusRunning, Message: "first is running"}, s.Status())
	assert.Equal(t, "first", s.Name())
	assert.Len(t, r.statusList(), 2, "a rejected start publishes nothing")

	s.Stop()
	last := waitStopped(t, r)
	assert.Equal(t, "first is not running", last.Message)
}

func TestSupervisor_StopWhenIdle(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	s.Stop()
	s.Stop()

	assert.Equal(t, []StatusEvent{{Code: StatusStopped, Message: "Ready to start"}}, r.statusList())
	assert.Equal(t, StatusStopped, s.Status().Code)
}

func TestSupervisor_StopIsNonBlocking(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	// The shell ignores TERM for a moment before exiting on its own, so
	// Stop must return long before the exit is observed.
	require.NoError(t, s.Start("slow", `trap 'sleep 0.5; exit 0' TERM; echo ready; while :; do sleep 0.05; done`, ExecOptions{}))
	s.SubscribeLines(r)
	require.Eventually(t, func() bool { return r.lineCount() == 1 }, waitFor, tick)

	begin := time.Now()
	s.Stop()
	assert.Less(t, time.Since(begin), 250*time.Millisecond)

	last := waitStopped(t, r)
	assert.Equal(t, "slow is not running", last.Message, "requested stops are reported as such regardless of exit code")
}

func TestSupervisor_UnexpectedExit(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("crasher", "exit 3", ExecOptions{}))

	last := waitStopped(t, r)
	assert.Equal(t, "crasher is not running (exit status 3)", last.Message)
}

func TestSupervisor_ExternalKillIsUnexpected(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("victim", "sleep 30", ExecOptions{}))
	s.mu.Lock()
	c := s.primary
	s.mu.Unlock()
	require.NotNil(t, c)
	require.NoError(t, c.terminate())

	last := waitStopped(t, r)
	assert.Contains(t, last.Message, "victim is not running (")
	assert.Contains(t, last.Message, "terminated")
}

func TestSupervisor_RestartAfterExit(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("once", "true", ExecOptions{}))
	waitStopped(t, r)
	require.Eventually(t, func() bool { return !s.Running() }, waitFor, tick)

	require.NoError(t, s.Start("twice", "true", ExecOptions{}))
	require.Eventually(t, func() bool { return len(r.statusList()) == 5 }, waitFor, tick)
	assert.Equal(t, "twice", s.Name())
}

func TestSupervisor_SpawnFailure(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		exec  ExecOptions
		check func(t *testing.T, err error)
	}{
		{
			name: "missing working directory",
			exec: ExecOptions{Dir: filepath.Join(t.TempDir(), "missing")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSpawn)
			},
		},
		{
			name: "missing shell",
			opts: []Option{WithShell("/nonexistent/shell")},
			check: func(t *testing.T, err error) {
				var spawnErr *SpawnError
				require.ErrorAs(t, err, &spawnErr)
				assert.Equal(t, "broken", spawnErr.Name)
				assert.Error(t, spawnErr.Unwrap())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSupervisor(t, tt.opts...)
			r := &recorder{}
			s.SubscribeStatus(r)

			err := s.Start("broken", "echo hi", tt.exec)
			require.Error(t, err)
			tt.check(t, err)

			assert.False(t, s.Running())
			assert.Equal(t, StatusStopped, s.Status().Code)
			assert.Len(t, r.statusList(), 1)
		})
	}
}

func TestSupervisor_EmptyCommand(t *testing.T) {
	s := newTestSupervisor(t)

	assert.ErrorIs(t, s.Start("blank", "   ", ExecOptions{}), ErrInvalidCommand)
	assert.ErrorIs(t, s.RunAction("blank", "", ExecOptions{}), ErrInvalidCommand)
	assert.False(t, s.Running())
}

func TestSupervisor_StatusReplayThenRunning(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}

	s.SubscribeStatus(r)
	require.Equal(t, []StatusEvent{{Code: StatusStopped, Message: "Ready to start"}}, r.statusList())

	require.NoError(t, s.Start("web", "sleep 30", ExecOptions{}))
	assert.Equal(t, []StatusEvent{
		{Code: StatusStopped, Message: "Ready to start"},
		{Code: StatusRunning, Message: "web is running"},
	}, r.statusList(), "RUNNING is published before Start returns")

	late := &recorder{}
	s.SubscribeStatus(late)
	assert.Equal(t, []StatusEvent{{Code: StatusRunning, Message: "web is running"}}, late.statusList())

	s.UnsubscribeStatus(late)
	s.Stop()
	waitStopped(t, r)
	assert.Len(t, late.statusList(), 1)
}

func TestSupervisor_LateLineSubscriberGetsReplay(t *testing.T) {
	s := newTestSupervisor(t, WithCacheSize(3))
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("counter", "for i in 1 2 3 4 5; do echo line $i; done", ExecOptions{}))
	waitStopped(t, r)

	late := &recorder{}
	s.SubscribeLines(late)
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, late.texts())

	s.UnsubscribeLines(late)
	s.UnsubscribeLines(late)
}

func TestSupervisor_ActionExclusivity(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)
	s.SubscribeLines(r)

	require.NoError(t, s.RunAction("migrate", "sleep 0.3", ExecOptions{}))
	assert.Equal(t, "migrate", s.ActionName())

	err := s.RunAction("collectstatic", "echo nope", ExecOptions{})
	require.Error(t, err)
	var conflict *ActionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "migrate", conflict.Running)
	assert.ErrorIs(t, err, ErrActionConflict)

	require.Eventually(t, func() bool { return s.ActionName() == "" }, waitFor, tick)

	require.NoError(t, s.RunAction("collectstatic", "echo done", ExecOptions{}))
	require.Eventually(t, func() bool { return r.lineCount() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"done"}, r.texts())

	assert.Equal(t, []StatusEvent{{Code: StatusStopped, Message: "Ready to start"}}, r.statusList(),
		"actions never touch the primary status")
}

func TestSupervisor_ActionRunsAlongsidePrimary(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeLines(r)

	require.NoError(t, s.Start("web", "echo from-web; sleep 30", ExecOptions{}))
	require.NoError(t, s.RunAction("task", "echo from-action 1>&2", ExecOptions{}))

	require.Eventually(t, func() bool { return r.lineCount() == 2 }, waitFor, tick)
	assert.ElementsMatch(t, []string{"from-web", "from-action"}, r.texts())
	assert.True(t, s.Running())
}

func TestSupervisor_Shutdown(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	require.NoError(t, s.Start("web", "sleep 30", ExecOptions{}))
	require.NoError(t, s.RunAction("task", "sleep 30", ExecOptions{}))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.False(t, s.Running())
	assert.Empty(t, s.ActionName())
	last, ok := r.lastStatus()
	require.True(t, ok)
	assert.Equal(t, StatusEvent{Code: StatusStopped, Message: "web is not running"}, last)
}

func TestSupervisor_ShutdownEscalatesToKill(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeLines(r)

	require.NoError(t, s.Start("stubborn", `trap '' TERM; echo ready; sleep 30`, ExecOptions{}))
	require.Eventually(t, func() bool { return r.lineCount() == 1 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := s.Shutdown(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Running())
}

// restarter starts the next command when the previous one stops.
type restarter struct {
	recorder
	s    *Supervisor
	errs chan error
}

func (r *restarter) OnStatus(ev StatusEvent) {
	r.recorder.OnStatus(ev)
	if ev.Code == StatusStopped && strings.HasPrefix(ev.Message, "once ") {
		r.errs <- r.s.Start("again", "true", ExecOptions{})
	}
}

func TestSupervisor_RestartFromStatusCallback(t *testing.T) {
	s := newTestSupervisor(t)
	r := &restarter{s: s, errs: make(chan error, 1)}
	s.SubscribeStatus(r)
	observer := &recorder{}
	s.SubscribeStatus(observer)

	require.NoError(t, s.Start("once", "true", ExecOptions{}))

	select {
	case err := <-r.errs:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Start from OnStatus did not return")
	}

	want := []StatusEvent{
		{Code: StatusStopped, Message: "Ready to start"},
		{Code: StatusRunning, Message: "once is running"},
		{Code: StatusStopped, Message: "once is not running (exit status 0)"},
		{Code: StatusRunning, Message: "again is running"},
		{Code: StatusStopped, Message: "again is not running (exit status 0)"},
	}
	require.Eventually(t, func() bool { return len(observer.statusList()) == len(want) }, waitFor, tick)
	assert.Equal(t, want, observer.statusList())
	assert.Equal(t, want, r.statusList())
	assert.Equal(t, "again", s.Name())
}

func TestSupervisor_StopAfterExitKeepsCrash(t *testing.T) {
	s := newTestSupervisor(t)
	r := &recorder{}
	s.SubscribeStatus(r)

	// The background sleep keeps the pipes open, so the exit is reported
	// only after the drain timeout.
	require.NoError(t, s.Start("crasher", "sleep 3 & exit 3", ExecOptions{}))
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.primary != nil && s.primary.exited.Load()
	}, waitFor, tick)

	s.Stop()

	last := waitStopped(t, r)
	assert.Equal(t, "crasher is not running (exit status 3)", last.Message)
}
