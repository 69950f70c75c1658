package server

import "github.com/aki/fujita/internal/runner"

// LineMessage is the wire form of a line event on /log.
type LineMessage struct {
	ID   string  `json:"id"`
	TS   float64 `json:"ts"`
	FD   int     `json:"fd"`
	Line string  `json:"line"`
}

// StatusMessage is the wire form of a status event on /status.
type StatusMessage struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	Name     string   `json:"name"`
	Action   string   `json:"action,omitempty"`
	Code     int      `json:"code"`
	Status   string   `json:"status"`
	Commands []string `json:"commands"`
	Actions  []string `json:"actions"`
}

// NewLineMessage converts a line event to its wire form.
func NewLineMessage(ev runner.LineEvent) LineMessage {
	return LineMessage{
		ID:   ev.ID,
		TS:   ev.Timestamp(),
		FD:   int(ev.Stream),
		Line: ev.Text,
	}
}

// NewStatusMessage converts a status event to its wire form.
func NewStatusMessage(ev runner.StatusEvent) StatusMessage {
	return StatusMessage{
		Code:   int(ev.Code),
		Status: ev.Message,
	}
}
