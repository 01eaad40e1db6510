package transport

import (
	"context"
	"net"
)

// Conn is the byte-stream contract a subscription endpoint drives.
// Implemented by Connection.
type Conn interface {
	// EnqueueMsg queues one frame for sending without waiting for the
	// network.
	EnqueueMsg(data []byte) error

	// AsyncRead reads one frame and delivers it to h. At most one read
	// may be outstanding.
	AsyncRead(h ReadHandler) error

	// Cancel aborts outstanding I/O and shuts the stream down.
	Cancel()

	// IsOpen reports whether the stream is usable.
	IsOpen() bool

	// LocalAddress returns the local host of the stream.
	LocalAddress() string

	// LocalPort returns the local port of the stream.
	LocalPort() uint16

	// ConnectToShutdown registers a hook that runs once when the stream
	// shuts down.
	ConnectToShutdown(fn func()) ShutdownHandle

	// DisconnectShutdown removes a previously registered hook.
	DisconnectShutdown(h ShutdownHandle)
}

// TransportServer accepts topic connections.
// Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop stops the server and cancels active connections.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Conn            = (*Connection)(nil)
	_ TransportServer = (*Server)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
