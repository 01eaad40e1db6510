package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
	"github.com/muskanmahajan37/gazebo/pkg/wire"
)

// Registry errors.
var (
	ErrManagerClosed     = errors.New("connection manager closed")
	ErrNilConnection     = errors.New("nil connection")
	ErrUnknownConnection = errors.New("connection not tracked")
	ErrNoMaster          = errors.New("no master connection")
	ErrAttemptsExhausted = errors.New("connect attempts exhausted")
)

// DialFunc opens a connection to address.
type DialFunc func(ctx context.Context, address string) (transport.Conn, error)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxAttempts bounds ConnectToRemote (default: 5).
	MaxAttempts int

	// Backoff shapes the delay between ConnectToRemote attempts.
	Backoff BackoffConfig

	// Connection is used by the default dialer.
	Connection transport.ConnectionConfig

	// Dial overrides how connections are opened (default: transport.Dial).
	Dial DialFunc

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxAttempts: 5,
		Backoff:     DefaultBackoffConfig(),
		Connection:  transport.DefaultConnectionConfig(),
	}
}

// Manager tracks the live connections of a process and carries
// subscribe/unsubscribe control traffic to the master connection.
type Manager struct {
	mu sync.Mutex

	config ManagerConfig
	conns  map[transport.Conn]struct{}
	master transport.Conn

	// Subscriptions announced to the master, keyed by Subscribe.String().
	subs map[string]wire.Subscribe

	closed bool
}

// NewManager creates a connection manager.
func NewManager(config ManagerConfig) *Manager {
	d := DefaultManagerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = d.MaxAttempts
	}
	if config.Dial == nil {
		cc := config.Connection
		config.Dial = func(ctx context.Context, address string) (transport.Conn, error) {
			return transport.Dial(ctx, address, cc)
		}
	}

	return &Manager{
		config: config,
		conns:  make(map[transport.Conn]struct{}),
		subs:   make(map[string]wire.Subscribe),
	}
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide connection manager.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager(DefaultManagerConfig())
	})
	return defaultManager
}

// AddConnection starts tracking conn.
func (m *Manager) AddConnection(conn transport.Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.conns[conn] = struct{}{}
	return nil
}

// RemoveConnection stops tracking conn. It does not cancel it.
func (m *Manager) RemoveConnection(conn transport.Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[conn]; !ok {
		return ErrUnknownConnection
	}
	delete(m.conns, conn)
	if m.master == conn {
		m.master = nil
	}
	m.debugLog("connection removed", "remaining", len(m.conns))
	return nil
}

// Count returns the number of tracked connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// SetMaster routes control traffic through conn, which is also tracked.
// Passing nil detaches the master link.
func (m *Manager) SetMaster(conn transport.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.master = conn
	if conn != nil {
		m.conns[conn] = struct{}{}
	}
	return nil
}

// Subscribe records sub and, when a master link exists, enqueues a "sub"
// envelope on it.
func (m *Manager) Subscribe(sub wire.Subscribe) error {
	return m.control(wire.KindSubscribe, sub)
}

// Unsubscribe forgets sub and, when a master link exists, enqueues an
// "unsubscribe" envelope on it. Delivery is best effort.
func (m *Manager) Unsubscribe(sub wire.Subscribe) error {
	return m.control(wire.KindUnsubscribe, sub)
}

func (m *Manager) control(kind string, sub wire.Subscribe) error {
	data, err := wire.EncodeSubscribe(kind, &sub)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if kind == wire.KindSubscribe {
		m.subs[sub.String()] = sub
	} else {
		delete(m.subs, sub.String())
	}
	master := m.master
	m.mu.Unlock()

	if master == nil || !master.IsOpen() {
		m.debugLog("control message not forwarded", "kind", kind, "sub", sub.String())
		return nil
	}
	if err := master.EnqueueMsg(data); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	m.debugLog("control message forwarded", "kind", kind, "sub", sub.String())
	return nil
}

// Subscriptions returns the subscriptions currently announced.
func (m *Manager) Subscriptions() []wire.Subscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Subscribe, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out
}

// ConnectToRemote dials address, retrying with exponential backoff up to
// MaxAttempts, and tracks the resulting connection.
func (m *Manager) ConnectToRemote(ctx context.Context, address string) (transport.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, ErrManagerClosed
		}

		conn, err := m.config.Dial(ctx, address)
		if err == nil {
			if err := m.AddConnection(conn); err != nil {
				conn.Cancel()
				return nil, err
			}
			m.debugLog("connected", "address", address, "attempt", attempt)
			return conn, nil
		}
		lastErr = err

		if attempt == m.config.MaxAttempts {
			break
		}
		delay := m.config.Backoff.Delay(attempt - 1)
		m.debugLog("connect failed, retrying", "address", address,
			"attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrAttemptsExhausted, address, m.config.MaxAttempts, lastErr)
}

// Close cancels every tracked connection. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conns := make([]transport.Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[transport.Conn]struct{})
	m.master = nil
	m.mu.Unlock()

	for _, c := range conns {
		c.Cancel()
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
