package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// DefaultAddress is where a publisher listens unless told otherwise.
const DefaultAddress = ":11345"

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on, DefaultAddress when empty.
	Address string

	// Connection is applied to every accepted stream. Its Role is forced
	// to log.RolePublisher.
	Connection ConnectionConfig

	// OnConnect receives each accepted connection and owns its reads.
	OnConnect func(conn *Connection)

	// OnDisconnect runs once an accepted connection has shut down.
	OnDisconnect func(conn *Connection)

	// OnError receives accept and handshake failures.
	OnError func(err error)
}

// Server is the publisher side of the topic transport: it accepts
// subscriber streams and hands them to OnConnect.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[*Connection]struct{}
	wg       sync.WaitGroup
}

// NewServer returns a server that is not yet listening.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	config.Connection.Role = log.RolePublisher
	return &Server{config: config, conns: make(map[*Connection]struct{})}
}

// Start listens on the configured address. Accepted connections live
// until Stop, ctx cancellation or their own shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.listener, s.cancel = ln, cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx, ln)
	}()
	return nil
}

// Stop closes the listener, cancels every accepted connection and waits
// for their handlers. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	ln, cancel := s.listener, s.cancel
	s.listener, s.cancel = nil, nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	cancel()
	err := ln.Close()
	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Addr returns the listen address, nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of live accepted connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(fmt.Errorf("accept: %w", err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.track(ctx, raw)
		}()
	}
}

// track runs one accepted stream from handshake to shutdown.
func (s *Server) track(ctx context.Context, raw net.Conn) {
	conn, err := secure(ctx, raw, s.config.Connection.TLSConfig, tls.Server)
	if err != nil {
		s.reportError(err)
		return
	}
	c := NewConnection(conn, s.config.Connection)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}
	select {
	case <-c.Done():
	case <-ctx.Done():
		c.Cancel()
	}

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}

func (s *Server) reportError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
