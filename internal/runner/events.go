// Package runner supervises one long-running child process plus an optional
// auxiliary action, turning their output into line events and their
// lifecycle into status events for any number of subscribers.
package runner

import "time"

// Stream identifies which pipe a line was read from.
type Stream int

// Stream values match the wire field "fd".
const (
	StreamOut Stream = 0
	StreamErr Stream = 1
)

// String returns the stream name
func (s Stream) String() string {
	switch s {
	case StreamOut:
		return "stdout"
	case StreamErr:
		return "stderr"
	}
	return "unknown"
}

// StatusCode is the supervised process state.
type StatusCode int

// Status codes match the wire field "code".
const (
	StatusStopped StatusCode = 0
	StatusRunning StatusCode = 1
)

// String returns the status name
func (c StatusCode) String() string {
	switch c {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	}
	return "unknown"
}

// LineEvent is one captured line of output. It is never modified after
// creation.
type LineEvent struct {
	ID     string
	Time   time.Time
	Stream Stream
	Text   string
}

// Timestamp returns the event time as fractional Unix seconds.
func (e LineEvent) Timestamp() float64 {
	return float64(e.Time.UnixNano()) / float64(time.Second)
}

// StatusEvent is a snapshot of whether the process is running.
type StatusEvent struct {
	Code    StatusCode
	Message string
}

// LineSubscriber receives line events. Implementations are registered by
// identity, so they must be comparable (pointer receivers in practice).
type LineSubscriber interface {
	OnLine(LineEvent)
}

// StatusSubscriber receives status transitions.
type StatusSubscriber interface {
	OnStatus(StatusEvent)
}
