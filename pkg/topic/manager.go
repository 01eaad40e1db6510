package topic

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrEmptyTopic   = errors.New("empty topic name")
	ErrEmptyMsgType = errors.New("empty message type")
	ErrTypeConflict = errors.New("topic already registered with a different message type")
	ErrUnknownTopic = errors.New("unknown topic")
)

// Info describes one known topic.
type Info struct {
	Name    string
	MsgType string

	// Publications counts UpdatePublications calls for this topic.
	Publications int
}

// Manager is a concurrency-safe topic registry.
type Manager struct {
	mu     sync.RWMutex
	topics map[string]*Info

	logger *slog.Logger
}

// NewManager creates an empty registry. logger may be nil.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		topics: make(map[string]*Info),
		logger: logger,
	}
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide registry.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager(nil)
	})
	return defaultManager
}

// UpdatePublications records interest in topic carrying msgType.
func (m *Manager) UpdatePublications(topic, msgType string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if msgType == "" {
		return ErrEmptyMsgType
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.topics[topic]
	if !ok {
		m.topics[topic] = &Info{Name: topic, MsgType: msgType, Publications: 1}
		m.debugLog("topic registered", "topic", topic, "msg_type", msgType)
		return nil
	}
	if info.MsgType != msgType {
		return fmt.Errorf("%w: %s is %s, not %s", ErrTypeConflict, topic, info.MsgType, msgType)
	}
	info.Publications++
	return nil
}

// Release drops one publication reference; the topic is forgotten when
// the count reaches zero.
func (m *Manager) Release(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.topics[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	info.Publications--
	if info.Publications <= 0 {
		delete(m.topics, topic)
		m.debugLog("topic forgotten", "topic", topic)
	}
	return nil
}

// MsgType returns the message type bound to topic.
func (m *Manager) MsgType(topic string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.topics[topic]
	if !ok {
		return "", false
	}
	return info.MsgType, true
}

// Lookup returns a copy of the topic's record.
func (m *Manager) Lookup(topic string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.topics[topic]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// Topics returns all known topics sorted by name.
func (m *Manager) Topics() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.topics))
	for _, info := range m.topics {
		out = append(out, *info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known topics.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics)
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
