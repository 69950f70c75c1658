// Package tail prints the output of a running fujita server, either the
// cached history or a live stream.
package tail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/gorilla/websocket"

	"github.com/aki/fujita/internal/server"
)

var stderrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))

// Options configures the tail behavior
type Options struct {
	// Writer is where to write the output
	Writer io.Writer
	// MaxLines limits how many cached lines Recent prints. 0 means fit the terminal.
	MaxLines int
	// Timestamps prefixes each line with its local time
	Timestamps bool
}

// Tailer reads lines from a fujita server.
type Tailer struct {
	base   string
	opts   Options
	client *http.Client
	dialer *websocket.Dialer
}

// New creates a Tailer for the server at base, e.g. "http://127.0.0.1:5665".
func New(base string, opts Options) *Tailer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Tailer{
		base:   strings.TrimSuffix(base, "/"),
		opts:   opts,
		client: &http.Client{Timeout: 10 * time.Second},
		dialer: websocket.DefaultDialer,
	}
}

// Recent prints the most recent cached lines and returns.
func (t *Tailer) Recent(ctx context.Context) error {
	limit := t.maxLines()
	url := fmt.Sprintf("%s/api/lines?limit=%d", t.base, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var lines []server.LineMessage
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return fmt.Errorf("failed to decode lines: %w", err)
	}
	for _, line := range lines {
		if err := t.write(line); err != nil {
			return err
		}
	}
	return nil
}

// Follow streams lines, history first, until ctx is cancelled or the
// server closes the connection.
func (t *Tailer) Follow(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.wsURL("/log"), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var line server.LineMessage
		if err := conn.ReadJSON(&line); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}
		if err := t.write(line); err != nil {
			return err
		}
	}
}

func (t *Tailer) write(line server.LineMessage) error {
	text := line.Line
	if line.FD == 1 {
		text = stderrStyle.Render(text)
	}
	if t.opts.Timestamps {
		sec := int64(line.TS)
		ts := time.Unix(sec, int64((line.TS-float64(sec))*1e9))
		text = ts.Format("15:04:05.000") + " " + text
	}
	if _, err := fmt.Fprintln(t.opts.Writer, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (t *Tailer) maxLines() int {
	if t.opts.MaxLines > 0 {
		return t.opts.MaxLines
	}
	_, height, err := term.GetSize(os.Stdout.Fd())
	if err != nil || height < 10 {
		return 30
	}
	// Leave room for the prompt
	return height - 2
}

func (t *Tailer) wsURL(path string) string {
	switch {
	case strings.HasPrefix(t.base, "https://"):
		return "wss://" + strings.TrimPrefix(t.base, "https://") + path
	case strings.HasPrefix(t.base, "http://"):
		return "ws://" + strings.TrimPrefix(t.base, "http://") + path
	}
	return "ws://" + t.base + path
}
