package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/connection"
	"github.com/muskanmahajan37/gazebo/pkg/log"
	"github.com/muskanmahajan37/gazebo/pkg/metrics"
	"github.com/muskanmahajan37/gazebo/pkg/topic"
	"github.com/muskanmahajan37/gazebo/pkg/transport"
	"github.com/muskanmahajan37/gazebo/pkg/wire"
)

// Endpoint errors.
var (
	ErrInvalidTopic       = errors.New("topic and message type must be non-empty")
	ErrAlreadyInitialized = errors.New("endpoint already initialized")
	ErrNilConnection      = errors.New("nil connection")
	ErrConnectionClosed   = errors.New("connection is not open")
	ErrEndpointClosed     = errors.New("endpoint closed")
)

// State is the read-loop state of an Endpoint.
type State int32

const (
	// StateIdle means no read is outstanding: before Init, or between a
	// completion and its re-arm.
	StateIdle State = iota

	// StateReadPending means exactly one AsyncRead is outstanding.
	StateReadPending

	// StateClosed is terminal. The loop never re-arms again.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReadPending:
		return "READ_PENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Callback receives one non-empty payload frame.
type Callback func(payload []byte)

// TopicRegistry records which topics the process is interested in.
// Implemented by *topic.Manager.
type TopicRegistry interface {
	UpdatePublications(topic, msgType string) error
}

// ConnectionRegistry tracks live connections and carries unsubscribe
// traffic. Implemented by *connection.Manager.
type ConnectionRegistry interface {
	Unsubscribe(sub wire.Subscribe) error
	RemoveConnection(conn transport.Conn) error
}

var (
	_ TopicRegistry      = (*topic.Manager)(nil)
	_ ConnectionRegistry = (*connection.Manager)(nil)
)

// Endpoint is the subscriber side of one topic on one dedicated
// connection to a publisher.
//
// New registers interest in the topic. Init sends the subscribe envelope
// and starts the read loop, which hands every non-empty frame to the
// installed Callback. Fini stops the loop and releases the connection;
// Close additionally unsubscribes and unregisters the connection.
type Endpoint struct {
	topic   string
	msgType string
	id      uint64

	topics  TopicRegistry
	conns   ConnectionRegistry
	logger  *slog.Logger
	plog    log.Logger
	metrics metrics.Collector

	callback atomic.Pointer[Callback]

	mu          sync.Mutex
	conn        transport.Conn
	connID      string
	host        string
	port        uint16
	hook        transport.ShutdownHandle
	hooked      bool
	initialized bool
	tornDown    bool
	closed      bool
	state       State
}

// New creates an endpoint for topic carrying msgType and registers the
// interest with the topic registry.
func New(topicName, msgType string, opts ...Option) (*Endpoint, error) {
	if topicName == "" || msgType == "" {
		return nil, ErrInvalidTopic
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Endpoint{
		topic:   topicName,
		msgType: msgType,
		id:      o.ids.Next(),
		topics:  o.topics,
		conns:   o.conns,
		logger:  o.logger,
		plog:    o.plog,
		metrics: o.metrics,
	}

	if err := e.topics.UpdatePublications(topicName, msgType); err != nil {
		return nil, fmt.Errorf("register topic %q: %w", topicName, err)
	}

	e.metrics.EndpointCreated(topicName)
	e.debugLog("endpoint created", "id", e.id, "topic", topicName, "msg_type", msgType)
	return e, nil
}

// ID returns the process-unique endpoint id.
func (e *Endpoint) ID() uint64 { return e.id }

// Topic returns the subscribed topic name.
func (e *Endpoint) Topic() string { return e.topic }

// MsgType returns the expected message type.
func (e *Endpoint) MsgType() string { return e.msgType }

// Connection returns the owned connection, or nil before Init and after
// teardown.
func (e *Endpoint) Connection() transport.Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

// State returns the read-loop state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AddCallback installs cb, replacing any previous callback. A nil cb
// removes it; payloads are then dropped. Install the callback before Init
// to be sure of seeing the first payload.
func (e *Endpoint) AddCallback(cb Callback) {
	if cb == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&cb)
}

// Init takes ownership of conn, enqueues the subscribe envelope, arms the
// first read and registers for the connection's shutdown notification.
// conn must be open and dedicated to this endpoint.
func (e *Endpoint) Init(conn transport.Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	e.mu.Lock()
	if e.tornDown {
		e.mu.Unlock()
		return ErrEndpointClosed
	}
	if e.initialized {
		e.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if !conn.IsOpen() {
		e.mu.Unlock()
		return ErrConnectionClosed
	}

	sub := wire.Subscribe{
		Topic:   e.topic,
		MsgType: e.msgType,
		Host:    conn.LocalAddress(),
		Port:    conn.LocalPort(),
	}
	data, err := wire.EncodeSubscribe(wire.KindSubscribe, &sub)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	e.conn = conn
	e.connID = connIDOf(conn)
	e.host, e.port = sub.Host, sub.Port
	e.initialized = true
	e.state = StateReadPending
	e.mu.Unlock()

	// Enqueue strictly before the first read is armed.
	if err := conn.EnqueueMsg(data); err != nil {
		e.mu.Lock()
		e.conn = nil
		e.connID = ""
		e.initialized = false
		e.state = StateIdle
		e.mu.Unlock()
		return fmt.Errorf("enqueue subscribe: %w", err)
	}
	e.logControl(wire.KindSubscribe, sub)

	var armErr error
	if err := conn.AsyncRead(e.onRead); err != nil {
		e.setState(StateClosed)
		armErr = fmt.Errorf("arm read: %w", err)
	}

	h := conn.ConnectToShutdown(e.OnConnectionShutdown)

	e.mu.Lock()
	keep := e.conn == conn && !e.tornDown
	if keep {
		e.hook, e.hooked = h, true
	}
	e.mu.Unlock()
	if !keep {
		conn.DisconnectShutdown(h)
	}

	e.metrics.EndpointActivated(e.topic)
	e.debugLog("endpoint initialized", "id", e.id, "topic", e.topic,
		"local", sub.Address())
	e.logState(StateIdle, e.State(), "init")
	return armErr
}

// onRead is the read-loop continuation: re-arm first, then dispatch.
func (e *Endpoint) onRead(data []byte, err error) {
	if err != nil {
		e.mu.Lock()
		prev := e.state
		e.state = StateClosed
		e.mu.Unlock()
		if prev != StateClosed {
			e.debugLog("read loop stopped", "id", e.id, "topic", e.topic, "error", err)
			e.logState(prev, StateClosed, err.Error())
		}
		return
	}

	e.mu.Lock()
	conn := e.conn
	if conn == nil || e.tornDown || !conn.IsOpen() {
		e.state = StateClosed
		e.mu.Unlock()
		return
	}
	e.state = StateReadPending
	e.mu.Unlock()

	if err := conn.AsyncRead(e.onRead); err != nil {
		e.setState(StateClosed)
		e.debugLog("re-arm failed", "id", e.id, "topic", e.topic, "error", err)
	}

	if len(data) == 0 {
		e.metrics.EmptyFrame(e.topic)
		return
	}

	cb := e.callback.Load()
	if cb == nil {
		e.metrics.PayloadDropped(e.topic)
		return
	}
	(*cb)(data)
	e.metrics.PayloadDelivered(e.topic, len(data))
}

// OnConnectionShutdown is the connection's shutdown hook. It records that
// the connection went away from below and takes no teardown action; the
// owner still calls Fini or Close.
func (e *Endpoint) OnConnectionShutdown() {
	e.mu.Lock()
	if e.tornDown || e.conn == nil {
		e.mu.Unlock()
		return
	}
	prev := e.state
	e.state = StateClosed
	e.mu.Unlock()

	e.metrics.RemoteShutdown(e.topic)
	e.debugLog("connection shut down", "id", e.id, "topic", e.topic)
	e.logState(prev, StateClosed, "remote shutdown")
}

// Fini cancels outstanding I/O and releases the connection. It neither
// unsubscribes nor unregisters the connection. No-op when no connection is
// held or teardown already ran.
func (e *Endpoint) Fini() {
	conn, prev, ok := e.claimTeardown()
	if !ok {
		return
	}

	conn.Cancel()

	e.mu.Lock()
	e.conn = nil
	e.mu.Unlock()

	e.metrics.Teardown(e.topic, "fini")
	e.debugLog("endpoint finalized", "id", e.id, "topic", e.topic)
	e.logState(prev, StateClosed, "fini")
}

// Close performs the full teardown: detach the shutdown hook, unsubscribe,
// unregister the connection, cancel I/O, release the connection and clear
// the callback. Every step runs at most once per endpoint; after Fini only
// the callback is cleared. Unsubscribe delivery is best effort.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	defer e.callback.Store(nil)

	conn, prev, ok := e.claimTeardown()
	if !ok {
		e.mu.Lock()
		e.tornDown = true
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	hook, hooked := e.hook, e.hooked
	e.hooked = false
	sub := wire.Subscribe{Topic: e.topic, MsgType: e.msgType, Host: e.host, Port: e.port}
	e.mu.Unlock()

	if hooked {
		conn.DisconnectShutdown(hook)
	}

	if err := e.conns.Unsubscribe(sub); err != nil {
		e.debugLog("unsubscribe failed", "id", e.id, "topic", e.topic, "error", err)
		e.logError(err, "unsubscribe")
	} else {
		e.logControl(wire.KindUnsubscribe, sub)
	}

	// Unregister while the endpoint still owns the connection.
	if err := e.conns.RemoveConnection(conn); err != nil {
		e.debugLog("remove connection failed", "id", e.id, "topic", e.topic, "error", err)
	}

	conn.Cancel()

	e.mu.Lock()
	e.conn = nil
	e.mu.Unlock()

	e.metrics.Teardown(e.topic, "close")
	e.debugLog("endpoint closed", "id", e.id, "topic", e.topic)
	e.logState(prev, StateClosed, "close")
}

// claimTeardown marks teardown as started and returns the connection to
// tear down. ok is false when there is nothing to do.
func (e *Endpoint) claimTeardown() (transport.Conn, State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tornDown || e.conn == nil {
		return nil, e.state, false
	}
	e.tornDown = true
	prev := e.state
	e.state = StateClosed
	return e.conn, prev, true
}

func (e *Endpoint) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func connIDOf(conn transport.Conn) string {
	if c, ok := conn.(interface{ ConnID() string }); ok {
		return c.ConnID()
	}
	return ""
}

func (e *Endpoint) debugLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Endpoint) event(category log.Category) log.Event {
	e.mu.Lock()
	connID := e.connID
	e.mu.Unlock()
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerSubscription,
		Category:     category,
		LocalRole:    log.RoleSubscriber,
		Topic:        e.topic,
		EndpointID:   e.id,
	}
}

func (e *Endpoint) logControl(kind string, sub wire.Subscribe) {
	if e.plog == nil {
		return
	}
	ev := e.event(log.CategoryControl)
	ev.Direction = log.DirectionOut
	ev.Control = &log.ControlEvent{
		Kind:    kind,
		MsgType: sub.MsgType,
		Host:    sub.Host,
		Port:    sub.Port,
	}
	e.plog.Log(ev)
}

func (e *Endpoint) logState(from, to State, reason string) {
	if e.plog == nil {
		return
	}
	ev := e.event(log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySubscription,
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	e.plog.Log(ev)
}

func (e *Endpoint) logError(err error, context string) {
	if e.plog == nil {
		return
	}
	ev := e.event(log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   log.LayerSubscription,
		Message: err.Error(),
		Context: context,
	}
	e.plog.Log(ev)
}
