package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// Connection states.
type ConnectionState int32

const (
	// StateConnected indicates an open connection.
	StateConnected ConnectionState = iota

	// StateClosing indicates a graceful close is flushing queued writes.
	StateClosing

	// StateClosed indicates the stream is shut down.
	StateClosed
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrReadPending      = errors.New("read already pending")
	ErrWriteQueueFull   = errors.New("write queue full")
	ErrNilHandler       = errors.New("nil read handler")
	ErrCancelled        = errors.New("connection cancelled")
)

// ReadHandler receives the result of one AsyncRead. On success err is nil
// and data holds one frame payload (possibly empty). On failure data is nil
// and the connection has already shut down.
type ReadHandler func(data []byte, err error)

// ShutdownHandle identifies a registered shutdown hook.
type ShutdownHandle uint64

// ConnectionConfig configures a Connection.
type ConnectionConfig struct {
	// MaxMessageSize is the maximum frame payload size (default: 16 MiB).
	MaxMessageSize uint32

	// WriteQueueSize is the number of frames EnqueueMsg may buffer
	// ahead of the writer (default: 256).
	WriteQueueSize int

	// CloseTimeout bounds how long Close waits for queued frames to
	// flush (default: 5s).
	CloseTimeout time.Duration

	// ConnectTimeout bounds Dial when the context has no deadline
	// (default: 30s).
	ConnectTimeout time.Duration

	// ReadTimeout is the timeout for one frame read (0 = no timeout).
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for one frame write (0 = no timeout).
	WriteTimeout time.Duration

	// TLSConfig enables TLS on the stream when set.
	TLSConfig *tls.Config

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Role tags protocol events with the local side of the topic.
	Role log.Role
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxMessageSize: DefaultMaxMessageSize,
		WriteQueueSize: DefaultWriteQueueSize,
		CloseTimeout:   5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// DefaultWriteQueueSize is the default EnqueueMsg buffer depth.
const DefaultWriteQueueSize = 256

func (c *ConnectionConfig) applyDefaults() {
	d := DefaultConnectionConfig()
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = d.WriteQueueSize
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
}

type shutdownHook struct {
	handle ShutdownHandle
	fn     func()
}

// Connection is a framed byte stream with asynchronous, single-shot reads
// and a queued writer. Payload frames and control envelopes share the
// stream; the connection does not interpret either.
type Connection struct {
	config ConnectionConfig

	conn   net.Conn
	framer *Framer
	connID string

	localHost  string
	localPort  uint16
	remoteAddr string

	state       atomic.Int32
	readPending atomic.Bool

	// strand serializes reads and handler calls. A read re-armed from
	// inside a handler waits here until that handler returns.
	strand sync.Mutex

	writeQ     chan []byte
	flushCh    chan struct{}
	flushOnce  sync.Once
	writerDone chan struct{}

	closeOnce sync.Once
	closeCh   chan struct{}
	closeErr  error

	hooksMu   sync.Mutex
	hooks     []shutdownHook
	nextHook  ShutdownHandle
	hooksDone bool
}

// NewConnection wraps an established stream and starts its writer.
func NewConnection(conn net.Conn, config ConnectionConfig) *Connection {
	config.applyDefaults()

	c := &Connection{
		config:     config,
		conn:       conn,
		connID:     uuid.New().String(),
		writeQ:     make(chan []byte, config.WriteQueueSize),
		flushCh:    make(chan struct{}),
		writerDone: make(chan struct{}),
		closeCh:    make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))

	if addr := conn.LocalAddr(); addr != nil {
		c.localHost, c.localPort = splitHostPort(addr.String())
	}
	if addr := conn.RemoteAddr(); addr != nil {
		c.remoteAddr = addr.String()
	}

	c.framer = NewFramer(conn, config.MaxMessageSize)
	c.framer.Tap(config.Logger, c.connID, c.remoteAddr, config.Role)

	c.logState(StateConnected.String(), "", "")

	go c.writeLoop()

	return c
}

// splitHostPort parses "host:port", tolerating non-IP addresses such as
// net.Pipe's "pipe".
func splitHostPort(addr string) (string, uint16) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return host, 0
	}
	return host, uint16(port)
}

// ConnID returns the unique connection identifier.
func (c *Connection) ConnID() string {
	return c.connID
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsOpen reports whether the connection accepts reads and writes.
func (c *Connection) IsOpen() bool {
	return c.State() == StateConnected
}

// LocalAddress returns the local host of the stream.
func (c *Connection) LocalAddress() string {
	return c.localHost
}

// LocalPort returns the local port of the stream (0 if not an IP stream).
func (c *Connection) LocalPort() uint16 {
	return c.localPort
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// Err returns the reason the connection shut down, or nil while open
// and after a clean Close.
func (c *Connection) Err() error {
	select {
	case <-c.closeCh:
		return c.closeErr
	default:
		return nil
	}
}

// Done returns a channel closed when the connection has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.closeCh
}

// EnqueueMsg queues one frame for the writer and returns without waiting
// for network completion.
func (c *Connection) EnqueueMsg(data []byte) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	if uint32(len(data)) > c.config.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), c.config.MaxMessageSize)
	}

	select {
	case c.writeQ <- data:
		return nil
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
		return ErrWriteQueueFull
	}
}

// AsyncRead reads one frame in the background and hands it to h.
// At most one read may be outstanding; issue the next read from h to keep
// consuming the stream. Handlers run one at a time in stream order: a
// read armed from inside h starts only after h returns.
func (c *Connection) AsyncRead(h ReadHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	if !c.readPending.CompareAndSwap(false, true) {
		return ErrReadPending
	}

	go c.readOne(h)
	return nil
}

// readOne performs a single framed read and delivers the result.
func (c *Connection) readOne(h ReadHandler) {
	c.strand.Lock()
	defer c.strand.Unlock()

	if c.config.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}

	data, err := c.framer.ReadFrame()

	// Clear before delivery so the handler can re-arm.
	c.readPending.Store(false)

	if err != nil {
		select {
		case <-c.closeCh:
			err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		default:
			if !errors.Is(err, io.EOF) {
				c.logError(err, "read")
			}
			c.shutdown(err)
		}
		h(nil, err)
		return
	}

	h(data, nil)
}

// writeLoop drains the write queue until the connection shuts down or a
// graceful close has flushed everything queued.
func (c *Connection) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case data := <-c.writeQ:
			if err := c.writeFrame(data); err != nil {
				c.logError(err, "write")
				c.shutdown(err)
				return
			}
		case <-c.flushCh:
			for {
				select {
				case data := <-c.writeQ:
					if err := c.writeFrame(data); err != nil {
						c.logError(err, "flush")
						return
					}
				default:
					return
				}
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Connection) writeFrame(data []byte) error {
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.framer.WriteFrame(data)
}

// Cancel aborts all outstanding I/O and shuts the connection down.
// Queued frames are discarded. Safe to call more than once.
func (c *Connection) Cancel() {
	c.shutdown(ErrCancelled)
}

// Close flushes queued frames (bounded by CloseTimeout) and shuts the
// connection down. Safe to call more than once.
func (c *Connection) Close() error {
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateClosing)) {
		c.flushOnce.Do(func() { close(c.flushCh) })

		select {
		case <-c.writerDone:
		case <-c.closeCh:
		case <-time.After(c.config.CloseTimeout):
		}
	}

	c.shutdown(nil)
	return nil
}

// shutdown closes the stream and fires shutdown hooks exactly once, on the
// calling goroutine.
func (c *Connection) shutdown(reason error) {
	c.closeOnce.Do(func() {
		old := c.State()
		c.state.Store(int32(StateClosed))
		c.closeErr = reason
		close(c.closeCh)
		_ = c.conn.Close()

		why := ""
		if reason != nil {
			why = reason.Error()
		}
		c.logState(StateClosed.String(), old.String(), why)

		c.hooksMu.Lock()
		hooks := c.hooks
		c.hooks = nil
		c.hooksDone = true
		c.hooksMu.Unlock()

		for _, hook := range hooks {
			hook.fn()
		}
	})
}

// ConnectToShutdown registers fn to run once when the connection shuts
// down. If it already has, fn runs immediately on the calling goroutine.
func (c *Connection) ConnectToShutdown(fn func()) ShutdownHandle {
	c.hooksMu.Lock()
	c.nextHook++
	handle := c.nextHook
	if c.hooksDone {
		c.hooksMu.Unlock()
		fn()
		return handle
	}
	c.hooks = append(c.hooks, shutdownHook{handle: handle, fn: fn})
	c.hooksMu.Unlock()
	return handle
}

// DisconnectShutdown removes a hook. Unknown handles are ignored.
func (c *Connection) DisconnectShutdown(h ShutdownHandle) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	for i, hook := range c.hooks {
		if hook.handle == h {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			return
		}
	}
}

func (c *Connection) logState(newState, oldState, reason string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    c.config.Role,
		RemoteAddr:   c.remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *Connection) logError(err error, context string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		LocalRole:    c.config.Role,
		RemoteAddr:   c.remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}
