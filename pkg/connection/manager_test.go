package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
	"github.com/muskanmahajan37/gazebo/pkg/wire"
)

// fakeConn records enqueued frames and cancellation.
type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	cancelled int
	closed    bool
}

func (c *fakeConn) EnqueueMsg(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrConnectionClosed
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) AsyncRead(transport.ReadHandler) error { return nil }

func (c *fakeConn) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled++
	c.closed = true
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) LocalAddress() string { return "127.0.0.1" }
func (c *fakeConn) LocalPort() uint16    { return 40000 }

func (c *fakeConn) ConnectToShutdown(func()) transport.ShutdownHandle { return 1 }
func (c *fakeConn) DisconnectShutdown(transport.ShutdownHandle)       {}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

var testSub = wire.Subscribe{
	Topic:   "/gazebo/default/pose",
	MsgType: "gazebo.msgs.Pose",
	Host:    "127.0.0.1",
	Port:    40000,
}

func TestManagerTracksConnections(t *testing.T) {
	m := NewManager(ManagerConfig{})
	a, b := &fakeConn{}, &fakeConn{}

	require.NoError(t, m.AddConnection(a))
	require.NoError(t, m.AddConnection(b))
	require.NoError(t, m.AddConnection(a))
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.RemoveConnection(a))
	assert.Equal(t, 1, m.Count())
	assert.ErrorIs(t, m.RemoveConnection(a), ErrUnknownConnection)
	assert.Zero(t, a.cancelled)
}

func TestManagerRejectsNil(t *testing.T) {
	m := NewManager(ManagerConfig{})
	assert.ErrorIs(t, m.AddConnection(nil), ErrNilConnection)
	assert.ErrorIs(t, m.RemoveConnection(nil), ErrNilConnection)
}

func TestManagerSubscribeWithoutMaster(t *testing.T) {
	m := NewManager(ManagerConfig{})

	require.NoError(t, m.Subscribe(testSub))
	assert.Equal(t, []wire.Subscribe{testSub}, m.Subscriptions())

	require.NoError(t, m.Unsubscribe(testSub))
	assert.Empty(t, m.Subscriptions())
}

func TestManagerForwardsToMaster(t *testing.T) {
	m := NewManager(ManagerConfig{})
	master := &fakeConn{}
	require.NoError(t, m.SetMaster(master))
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Subscribe(testSub))
	require.NoError(t, m.Unsubscribe(testSub))

	frames := master.frames()
	require.Len(t, frames, 2)

	kind, err := wire.PeekKind(frames[0])
	require.NoError(t, err)
	assert.Equal(t, wire.KindSubscribe, kind)

	pkt, err := wire.DecodePacket(frames[1])
	require.NoError(t, err)
	assert.Equal(t, wire.KindUnsubscribe, pkt.Type)
	got, err := wire.DecodeSubscribe(pkt)
	require.NoError(t, err)
	assert.Equal(t, testSub, *got)
}

func TestManagerMasterClosed(t *testing.T) {
	m := NewManager(ManagerConfig{})
	master := &fakeConn{closed: true}
	require.NoError(t, m.SetMaster(master))

	require.NoError(t, m.Unsubscribe(testSub))
	assert.Empty(t, master.frames())
}

func TestManagerRemovingMasterDetachesIt(t *testing.T) {
	m := NewManager(ManagerConfig{})
	master := &fakeConn{}
	require.NoError(t, m.SetMaster(master))
	require.NoError(t, m.RemoveConnection(master))

	require.NoError(t, m.Subscribe(testSub))
	assert.Empty(t, master.frames())
}

func TestManagerSubscribeInvalid(t *testing.T) {
	m := NewManager(ManagerConfig{})
	err := m.Subscribe(wire.Subscribe{MsgType: "T"})
	assert.ErrorIs(t, err, wire.ErrEmptyTopic)
}

func TestManagerClose(t *testing.T) {
	m := NewManager(ManagerConfig{})
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, m.AddConnection(a))
	require.NoError(t, m.SetMaster(b))

	m.Close()
	m.Close()

	assert.Equal(t, 1, a.cancelled)
	assert.Equal(t, 1, b.cancelled)
	assert.Equal(t, 0, m.Count())
	assert.ErrorIs(t, m.AddConnection(&fakeConn{}), ErrManagerClosed)
	assert.ErrorIs(t, m.Subscribe(testSub), ErrManagerClosed)
}

func fastBackoff() BackoffConfig {
	return BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func TestConnectToRemoteRetries(t *testing.T) {
	conn := &fakeConn{}
	attempts := 0
	m := NewManager(ManagerConfig{
		MaxAttempts: 3,
		Backoff:     fastBackoff(),
		Dial: func(_ context.Context, address string) (transport.Conn, error) {
			assert.Equal(t, "127.0.0.1:11345", address)
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection refused")
			}
			return conn, nil
		},
	})

	got, err := m.ConnectToRemote(context.Background(), "127.0.0.1:11345")
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, m.Count())
}

func TestConnectToRemoteExhausted(t *testing.T) {
	attempts := 0
	m := NewManager(ManagerConfig{
		MaxAttempts: 2,
		Backoff:     fastBackoff(),
		Dial: func(context.Context, string) (transport.Conn, error) {
			attempts++
			return nil, errors.New("connection refused")
		},
	})

	_, err := m.ConnectToRemote(context.Background(), "127.0.0.1:1")
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 2, attempts)
}

func TestConnectToRemoteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ManagerConfig{
		MaxAttempts: 10,
		Backoff:     BackoffConfig{Initial: time.Hour},
		Dial: func(context.Context, string) (transport.Conn, error) {
			cancel()
			return nil, errors.New("connection refused")
		},
	})

	_, err := m.ConnectToRemote(ctx, "127.0.0.1:1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectToRemoteDialsRealServer(t *testing.T) {
	s := transport.NewServer(transport.ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	m := NewManager(ManagerConfig{MaxAttempts: 1})
	defer m.Close()

	conn, err := m.ConnectToRemote(context.Background(), s.Addr().String())
	require.NoError(t, err)
	assert.True(t, conn.IsOpen())
	assert.Equal(t, 1, m.Count())
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
