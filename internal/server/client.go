package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aki/fujita/internal/core/logger"
	"github.com/aki/fujita/internal/runner"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsClient is one WebSocket connection with a bounded outbound queue.
// Bus callbacks only enqueue; a dedicated goroutine does the writes, so a
// slow browser cannot stall the process readers. A client whose queue
// overflows is disconnected.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger logger.Logger
}

func newWSClient(conn *websocket.Conn, queueSize int, log logger.Logger) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
		logger: log,
	}
}

func (c *wsClient) enqueue(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode message", "error", err)
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("client too slow, disconnecting", "queued", len(c.send))
		c.close()
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writeLoop drains the queue and keeps the connection alive with pings.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound messages and returns once the peer is gone.
func (c *wsClient) readLoop() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

type lineSubscriber struct{ client *wsClient }

func (s *lineSubscriber) OnLine(ev runner.LineEvent) {
	s.client.enqueue(NewLineMessage(ev))
}

type statusSubscriber struct{ client *wsClient }

func (s *statusSubscriber) OnStatus(ev runner.StatusEvent) {
	s.client.enqueue(NewStatusMessage(ev))
}
