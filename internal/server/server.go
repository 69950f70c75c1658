// Package server exposes a supervisor over HTTP: WebSocket streams for
// lines and status, and plain POST endpoints for start, stop and actions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aki/fujita/internal/config"
	"github.com/aki/fujita/internal/core/logger"
	"github.com/aki/fujita/internal/runner"
)

// Supervisor is the part of runner.Supervisor the transport needs.
type Supervisor interface {
	Start(name, commandLine string, opts runner.ExecOptions) error
	Stop()
	RunAction(name, commandLine string, opts runner.ExecOptions) error
	Status() runner.StatusEvent
	Name() string
	ActionName() string
	Lines() []runner.LineEvent
	SubscribeLines(sub runner.LineSubscriber)
	UnsubscribeLines(sub runner.LineSubscriber)
	SubscribeStatus(sub runner.StatusSubscriber)
	UnsubscribeStatus(sub runner.StatusSubscriber)
}

// replayHeadroom is added to the cache size for each client queue so a full
// replay always fits.
const replayHeadroom = 256

// Server is the HTTP front end of a supervisor.
type Server struct {
	sup      Supervisor
	cfg      *config.Config
	logger   logger.Logger
	upgrader websocket.Upgrader
	queue    int
	mux      *http.ServeMux

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueSize sets the per-client outbound queue length.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queue = n
		}
	}
}

// New creates a Server for sup using the commands and actions in cfg.
func New(sup Supervisor, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		sup:     sup,
		cfg:     cfg,
		logger:  logger.Nop(),
		queue:   cfg.CacheSize + replayHeadroom,
		clients: make(map[*wsClient]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /log", s.handleLog)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /start/{name}", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("POST /action/{name}", s.handleAction)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/lines", s.handleLines)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and disconnects all WebSocket clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down http server", "error", err)
		}
		s.closeClients()
	}()

	s.logger.Info("application listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	client, err := s.accept(w, r)
	if err != nil {
		return
	}
	defer s.release(client)

	sub := &lineSubscriber{client: client}
	s.sup.SubscribeLines(sub)
	defer s.sup.UnsubscribeLines(sub)

	go client.writeLoop()
	client.readLoop()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	client, err := s.accept(w, r)
	if err != nil {
		return
	}
	defer s.release(client)

	sub := &statusSubscriber{client: client}
	s.sup.SubscribeStatus(sub)
	defer s.sup.UnsubscribeStatus(sub)

	go client.writeLoop()
	client.readLoop()
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*wsClient, error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return nil, err
	}

	client := newWSClient(conn, s.queue, s.logger.With("remote", r.RemoteAddr, "path", r.URL.Path))
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("websocket opened", "path", r.URL.Path, "remote", r.RemoteAddr)
	return client, nil
}

func (s *Server) release(client *wsClient) {
	client.close()
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	s.logger.Debug("websocket closed")
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.close()
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cmd, ok := s.cfg.LookupCommand(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown command %q", name), http.StatusNotFound)
		return
	}

	if err := s.sup.Start(name, cmd.Command, cmd.ExecOptions()); err != nil {
		writeRunError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.sup.Stop()
	writeOK(w)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cmd, ok := s.cfg.LookupAction(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown action %q", name), http.StatusNotFound)
		return
	}

	if err := s.sup.RunAction(name, cmd.Command, cmd.ExecOptions()); err != nil {
		writeRunError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	status := s.sup.Status()
	resp := StateResponse{
		Name:     s.sup.Name(),
		Action:   s.sup.ActionName(),
		Code:     int(status.Code),
		Status:   status.Message,
		Commands: s.cfg.CommandNames(),
		Actions:  s.cfg.ActionNames(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode state", "error", err)
	}
}

// handleLines returns cached lines, oldest first. An optional limit keeps
// only the most recent ones.
func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	lines := s.sup.Lines()

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		if len(lines) > limit {
			lines = lines[len(lines)-limit:]
		}
	}

	out := make([]LineMessage, 0, len(lines))
	for _, ev := range lines {
		out = append(out, NewLineMessage(ev))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("failed to encode lines", "error", err)
	}
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runner.ErrRunnerConflict), errors.Is(err, runner.ErrActionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, runner.ErrInvalidCommand):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
