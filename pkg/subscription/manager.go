package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/muskanmahajan37/gazebo/pkg/connection"
	"github.com/muskanmahajan37/gazebo/pkg/transport"
)

// Manager errors.
var (
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// DefaultMaxSubscriptions bounds the endpoints one Manager holds.
const DefaultMaxSubscriptions = 50

// Dialer opens and tracks dedicated connections to publishers.
// Implemented by *connection.Manager.
type Dialer interface {
	ConnectToRemote(ctx context.Context, address string) (transport.Conn, error)
	RemoveConnection(conn transport.Conn) error
}

var _ Dialer = (*connection.Manager)(nil)

// Config holds subscription manager configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of live endpoints.
	MaxSubscriptions int

	// Dialer opens publisher connections (default: connection.Default()).
	Dialer Dialer

	// EndpointOptions are applied to every endpoint the manager creates.
	EndpointOptions []Option
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{MaxSubscriptions: DefaultMaxSubscriptions}
}

// Manager creates endpoints on dedicated connections and keeps them by id
// until they are unsubscribed.
type Manager struct {
	mu sync.RWMutex

	config    Config
	endpoints map[uint64]*Endpoint
	reserved  int // slots held by Subscribe calls still dialing
}

// NewManager creates a manager with default configuration.
func NewManager() *Manager {
	return NewManagerWithConfig(DefaultConfig())
}

// NewManagerWithConfig creates a manager with custom configuration.
func NewManagerWithConfig(config Config) *Manager {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if config.Dialer == nil {
		config.Dialer = connection.Default()
	}
	return &Manager{
		config:    config,
		endpoints: make(map[uint64]*Endpoint),
	}
}

// Subscribe dials the publisher at address, creates an endpoint for
// topic/msgType with cb installed, and initializes it on the new
// connection.
func (m *Manager) Subscribe(ctx context.Context, address, topicName, msgType string, cb Callback) (*Endpoint, error) {
	m.mu.Lock()
	if len(m.endpoints)+m.reserved >= m.config.MaxSubscriptions {
		m.mu.Unlock()
		return nil, ErrResourceExhausted
	}
	m.reserved++
	m.mu.Unlock()

	ep, err := m.open(ctx, address, topicName, msgType, cb)

	m.mu.Lock()
	m.reserved--
	if err == nil {
		m.endpoints[ep.ID()] = ep
	}
	m.mu.Unlock()

	return ep, err
}

func (m *Manager) open(ctx context.Context, address, topicName, msgType string, cb Callback) (*Endpoint, error) {
	ep, err := New(topicName, msgType, m.config.EndpointOptions...)
	if err != nil {
		return nil, err
	}
	ep.AddCallback(cb)

	conn, err := m.config.Dialer.ConnectToRemote(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}

	if err := ep.Init(conn); err != nil {
		// An endpoint that kept the connection unregisters and cancels it
		// in Close; otherwise the connection is still ours to drop.
		owned := ep.Connection() == conn
		ep.Close()
		if !owned {
			_ = m.config.Dialer.RemoveConnection(conn)
			conn.Cancel()
		}
		return nil, fmt.Errorf("init %s: %w", topicName, err)
	}
	return ep, nil
}

// Unsubscribe closes the endpoint with the given id.
func (m *Manager) Unsubscribe(id uint64) error {
	m.mu.Lock()
	ep, ok := m.endpoints[id]
	delete(m.endpoints, id)
	m.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}
	ep.Close()
	return nil
}

// Get returns the endpoint with the given id.
func (m *Manager) Get(id uint64) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return ep, nil
}

// Endpoints returns the live endpoints ordered by id.
func (m *Manager) Endpoints() []*Endpoint {
	m.mu.RLock()
	out := make([]*Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		out = append(out, ep)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of live endpoints.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.endpoints)
}

// ClearAll closes every endpoint.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	eps := m.endpoints
	m.endpoints = make(map[uint64]*Endpoint)
	m.mu.Unlock()

	for _, ep := range eps {
		ep.Close()
	}
}
