package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ch0mler/yara-language-server/internal/config"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

// Version is the server version reported during the initialize handshake.
const Version = "1.0.0"

// Server accepts TCP connections and runs one Session per client. Sessions
// share the immutable module schema and the compiler and formatter
// collaborators; everything else is per-connection.
type Server struct {
	cfg config.Config
	log *slog.Logger

	schema    *yara.Schema
	compiler  yara.Compiler
	formatter yara.Formatter

	listener net.Listener
	clients  atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerSchema supplies the module schema shared by all sessions.
func WithServerSchema(schema *yara.Schema) ServerOption {
	return func(s *Server) { s.schema = schema }
}

// WithServerCompiler supplies the shared compiler collaborator.
func WithServerCompiler(c yara.Compiler) ServerOption {
	return func(s *Server) { s.compiler = c }
}

// WithServerFormatter supplies the shared formatter collaborator.
func WithServerFormatter(f yara.Formatter) ServerOption {
	return func(s *Server) { s.formatter = f }
}

// NewServer creates a server with the given configuration.
func NewServer(cfg config.Config, log *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// Addr returns the bound listen address, or "" before ListenAndServe.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe binds the configured address and accepts clients until ctx
// is cancelled. Each client runs in its own goroutine; a client asking the
// server to exit ends only its own session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.log.Info("listening for clients", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept failed", "error", err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	s.clients.Add(1)
	defer s.clients.Add(-1)
	s.log.Info("client connected", "conn", id, "remote", conn.RemoteAddr().String())

	session := NewSession(conn, s.log,
		WithSessionID(id),
		WithConfig(s.cfg),
		WithSchema(s.schema),
		WithCompiler(s.compiler),
		WithFormatter(s.formatter),
	)

	err := session.Run(ctx)
	switch {
	case err == nil, errors.Is(err, ErrServerExit):
		s.log.Info("client session ended", "conn", id)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.log.Error("client disconnected", "conn", id)
	default:
		s.log.Error("session failed", "conn", id, "error", err)
	}
}
