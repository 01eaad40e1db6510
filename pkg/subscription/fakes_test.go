package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
	"github.com/muskanmahajan37/gazebo/pkg/wire"
)

// fakeConn is an instrumented transport.Conn. Reads complete only when
// the test calls deliver or fail.
type fakeConn struct {
	mu sync.Mutex

	open bool
	host string
	port uint16

	sent    [][]byte
	pending transport.ReadHandler

	readCalls      int
	outstanding    int
	maxOutstanding int
	cancels        int

	hooks        []fakeHook
	nextHook     transport.ShutdownHandle
	disconnected []transport.ShutdownHandle

	calls []string

	enqueueErr error
	readErr    error
}

type fakeHook struct {
	h  transport.ShutdownHandle
	fn func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true, host: "192.168.1.20", port: 40123}
}

func (c *fakeConn) EnqueueMsg(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "enqueue")
	if c.enqueueErr != nil {
		return c.enqueueErr
	}
	if !c.open {
		return transport.ErrConnectionClosed
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) AsyncRead(h transport.ReadHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "read")
	if c.readErr != nil {
		return c.readErr
	}
	if !c.open {
		return transport.ErrConnectionClosed
	}
	if c.outstanding > 0 {
		return transport.ErrReadPending
	}
	c.readCalls++
	c.outstanding++
	if c.outstanding > c.maxOutstanding {
		c.maxOutstanding = c.outstanding
	}
	c.pending = h
	return nil
}

// Cancel shuts the fake down and fires hooks synchronously, like
// transport.Connection.
func (c *fakeConn) Cancel() {
	c.mu.Lock()
	c.calls = append(c.calls, "cancel")
	c.cancels++
	c.mu.Unlock()
	c.shutdown()
}

// shutdown simulates the connection going away from below.
func (c *fakeConn) shutdown() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	for _, h := range hooks {
		h.fn()
	}
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) LocalAddress() string { return c.host }
func (c *fakeConn) LocalPort() uint16    { return c.port }

func (c *fakeConn) ConnectToShutdown(fn func()) transport.ShutdownHandle {
	c.mu.Lock()
	c.calls = append(c.calls, "hook")
	c.nextHook++
	h := c.nextHook
	if !c.open {
		c.mu.Unlock()
		fn()
		return h
	}
	c.hooks = append(c.hooks, fakeHook{h: h, fn: fn})
	c.mu.Unlock()
	return h
}

func (c *fakeConn) DisconnectShutdown(h transport.ShutdownHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "disconnect")
	c.disconnected = append(c.disconnected, h)
	for i, hook := range c.hooks {
		if hook.h == h {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			return
		}
	}
}

func (c *fakeConn) takePending(t *testing.T) transport.ReadHandler {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotNil(t, c.pending, "no read outstanding")
	h := c.pending
	c.pending = nil
	c.outstanding--
	return h
}

// deliver completes the outstanding read with data.
func (c *fakeConn) deliver(t *testing.T, data []byte) {
	t.Helper()
	c.takePending(t)(data, nil)
}

// fail completes the outstanding read with err.
func (c *fakeConn) fail(t *testing.T, err error) {
	t.Helper()
	c.takePending(t)(nil, err)
}

func (c *fakeConn) snapshot() (readCalls, maxOutstanding, cancels int, calls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCalls, c.maxOutstanding, c.cancels, append([]string(nil), c.calls...)
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// mockTopics is a mock TopicRegistry.
type mockTopics struct {
	mock.Mock
}

func (m *mockTopics) UpdatePublications(topic, msgType string) error {
	args := m.Called(topic, msgType)
	return args.Error(0)
}

// mockConns is a mock ConnectionRegistry.
type mockConns struct {
	mock.Mock
}

func (m *mockConns) Unsubscribe(sub wire.Subscribe) error {
	args := m.Called(sub)
	return args.Error(0)
}

func (m *mockConns) RemoveConnection(conn transport.Conn) error {
	args := m.Called(conn)
	return args.Error(0)
}

// fakeDialer hands out fake connections. When gate is set, dials block
// until it is closed; prep adjusts each connection before it is returned.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	removed []transport.Conn
	err     error
	gate    chan struct{}
	prep    func(*fakeConn)
}

func (d *fakeDialer) ConnectToRemote(context.Context, string) (transport.Conn, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	if d.prep != nil {
		d.prep(c)
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) removedConns() []transport.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]transport.Conn(nil), d.removed...)
}

func (d *fakeDialer) RemoveConnection(conn transport.Conn) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, conn)
	return nil
}
