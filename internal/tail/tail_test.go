package tail_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aki/fujita/internal/config"
	"github.com/aki/fujita/internal/runner"
	"github.com/aki/fujita/internal/server"
	"github.com/aki/fujita/internal/tail"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T) (*runner.Supervisor, *httptest.Server) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tail tests use a POSIX shell")
	}

	cfg, err := config.Parse([]byte("commands:\n  hello:\n    command: echo hi\n"))
	require.NoError(t, err)

	sup := runner.New(runner.WithShell("/bin/sh"))
	srv := httptest.NewServer(server.New(sup, cfg).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup, srv
}

func startAndWait(t *testing.T, sup *runner.Supervisor, name, line string, want int) {
	t.Helper()
	before := len(sup.Lines())
	require.NoError(t, sup.Start(name, line, runner.ExecOptions{}))
	require.Eventually(t, func() bool {
		return len(sup.Lines()) >= before+want && !sup.Running()
	}, waitFor, tick)
}

func TestTailer_Recent(t *testing.T) {
	sup, srv := setup(t)
	startAndWait(t, sup, "hello", "printf 'one\\ntwo\\nthree\\n'", 3)

	var out bytes.Buffer
	tailer := tail.New(srv.URL, tail.Options{Writer: &out, MaxLines: 2})
	require.NoError(t, tailer.Recent(context.Background()))

	assert.Equal(t, "two\nthree\n", out.String())
}

func TestTailer_RecentWithTimestamps(t *testing.T) {
	sup, srv := setup(t)
	startAndWait(t, sup, "hello", "echo hi", 1)

	var out bytes.Buffer
	tailer := tail.New(srv.URL, tail.Options{Writer: &out, MaxLines: 10, Timestamps: true})
	require.NoError(t, tailer.Recent(context.Background()))

	line := strings.TrimSpace(out.String())
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{3} hi$`, line)
}

func TestTailer_Follow(t *testing.T) {
	sup, srv := setup(t)
	startAndWait(t, sup, "hello", "echo history", 1)

	out := &syncBuffer{}
	tailer := tail.New(srv.URL, tail.Options{Writer: out})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Follow(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "history")
	}, waitFor, tick, "history is replayed")

	require.NoError(t, sup.Start("hello", "echo live", runner.ExecOptions{}))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "live")
	}, waitFor, tick, "live lines follow")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("follow did not return after cancel")
	}
	assert.Equal(t, "history\nlive\n", out.String())
}

func TestTailer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tailer := tail.New(srv.URL, tail.Options{Writer: &bytes.Buffer{}, MaxLines: 5})
	err := tailer.Recent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	err = tailer.Follow(context.Background())
	assert.Error(t, err)
}
