package subscription

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muskanmahajan37/gazebo/pkg/transport"
)

func newTestManager(h *harness, d *fakeDialer, max int) *Manager {
	h.conns.On("Unsubscribe", mock.Anything).Return(nil)
	h.conns.On("RemoveConnection", mock.Anything).Return(nil)
	return NewManagerWithConfig(Config{
		MaxSubscriptions: max,
		Dialer:           d,
		EndpointOptions:  h.opts(),
	})
}

func TestManagerSubscribe(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{}
	m := newTestManager(h, d, 0)

	var got collector
	ep, err := m.Subscribe(context.Background(), "127.0.0.1:11345", testTopic, testMsgType, got.callback)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	require.Len(t, d.conns, 1)
	conn := d.conns[0]
	assert.Same(t, conn, ep.Connection())
	assert.Len(t, conn.sentFrames(), 1)

	conn.deliver(t, []byte("hello"))
	assert.Equal(t, []string{"hello"}, got.got())

	found, err := m.Get(ep.ID())
	require.NoError(t, err)
	assert.Same(t, ep, found)
}

func TestManagerUnsubscribe(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{}
	m := newTestManager(h, d, 0)

	ep, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	require.NoError(t, err)

	require.NoError(t, m.Unsubscribe(ep.ID()))
	assert.Equal(t, 0, m.Count())
	assert.Nil(t, ep.Connection())
	h.conns.AssertNumberOfCalls(t, "Unsubscribe", 1)

	assert.ErrorIs(t, m.Unsubscribe(ep.ID()), ErrSubscriptionNotFound)
	_, err = m.Get(ep.ID())
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestManagerResourceExhausted(t *testing.T) {
	h := newHarness()
	m := newTestManager(h, &fakeDialer{}, 1)

	_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	require.NoError(t, err)

	_, err = m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestManagerLimitHoldsUnderConcurrentSubscribe(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{gate: make(chan struct{})}
	m := newTestManager(h, d, 2)

	const callers = 5
	var exhausted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
			if errors.Is(err, ErrResourceExhausted) {
				exhausted.Add(1)
			}
		}()
	}

	// Callers past the limit are turned away while the first two dial.
	require.Eventually(t, func() bool { return exhausted.Load() == callers-2 },
		2*time.Second, 5*time.Millisecond)
	close(d.gate)
	wg.Wait()

	assert.Equal(t, 2, m.Count())
	assert.Len(t, d.conns, 2)
}

func TestManagerInitArmFailureTearsDownOnce(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{prep: func(c *fakeConn) { c.readErr = transport.ErrReadPending }}
	m := newTestManager(h, d, 0)

	_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	require.ErrorIs(t, err, transport.ErrReadPending)
	assert.Equal(t, 0, m.Count())

	require.Len(t, d.conns, 1)
	_, _, cancels, _ := d.conns[0].snapshot()
	assert.Equal(t, 1, cancels)
	h.conns.AssertNumberOfCalls(t, "RemoveConnection", 1)
	assert.Empty(t, d.removedConns(), "endpoint already unregistered the connection")
}

func TestManagerInitEnqueueFailureDropsConnection(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{prep: func(c *fakeConn) { c.enqueueErr = transport.ErrWriteQueueFull }}
	m := newTestManager(h, d, 0)

	_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	require.ErrorIs(t, err, transport.ErrWriteQueueFull)

	require.Len(t, d.conns, 1)
	_, _, cancels, _ := d.conns[0].snapshot()
	assert.Equal(t, 1, cancels)
	h.conns.AssertNotCalled(t, "RemoveConnection", mock.Anything)
	assert.Len(t, d.removedConns(), 1)
}

func TestManagerDialError(t *testing.T) {
	h := newHarness()
	m := newTestManager(h, &fakeDialer{err: errors.New("connection refused")}, 0)

	_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 0, m.Count())
}

func TestManagerRejectsInvalidTopic(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{}
	m := newTestManager(h, d, 0)

	_, err := m.Subscribe(context.Background(), "addr", "", testMsgType, nil)
	assert.ErrorIs(t, err, ErrInvalidTopic)
	assert.Empty(t, d.conns)
}

func TestManagerEndpointsAndClearAll(t *testing.T) {
	h := newHarness()
	d := &fakeDialer{}
	m := newTestManager(h, d, 0)

	for i := 0; i < 3; i++ {
		_, err := m.Subscribe(context.Background(), "addr", testTopic, testMsgType, nil)
		require.NoError(t, err)
	}

	eps := m.Endpoints()
	require.Len(t, eps, 3)
	assert.Less(t, eps[0].ID(), eps[1].ID())
	assert.Less(t, eps[1].ID(), eps[2].ID())

	m.ClearAll()
	assert.Equal(t, 0, m.Count())
	for _, c := range d.conns {
		_, _, cancels, _ := c.snapshot()
		assert.Equal(t, 1, cancels)
	}
	h.conns.AssertNumberOfCalls(t, "Unsubscribe", 3)
}
