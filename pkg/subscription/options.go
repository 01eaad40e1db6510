package subscription

import (
	"log/slog"
	"sync/atomic"

	"github.com/muskanmahajan37/gazebo/pkg/connection"
	"github.com/muskanmahajan37/gazebo/pkg/log"
	"github.com/muskanmahajan37/gazebo/pkg/metrics"
	"github.com/muskanmahajan37/gazebo/pkg/topic"
)

// IDSource hands out endpoint ids. Next must never return the same value
// twice.
type IDSource interface {
	Next() uint64
}

// Counter is an IDSource backed by an atomic counter starting at 1.
// The zero value is ready to use.
type Counter struct {
	n atomic.Uint64
}

// Next returns the next id.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// processIDs is shared by every endpoint created without WithIDSource.
var processIDs Counter

type options struct {
	topics  TopicRegistry
	conns   ConnectionRegistry
	ids     IDSource
	logger  *slog.Logger
	plog    log.Logger
	metrics metrics.Collector
}

func defaultOptions() options {
	return options{
		topics:  topic.Default(),
		conns:   connection.Default(),
		ids:     &processIDs,
		metrics: metrics.NewNop(),
	}
}

// Option configures an Endpoint.
type Option func(*options)

// WithTopicRegistry overrides the process-wide topic registry.
func WithTopicRegistry(r TopicRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.topics = r
		}
	}
}

// WithConnectionRegistry overrides the process-wide connection registry.
func WithConnectionRegistry(r ConnectionRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.conns = r
		}
	}
}

// WithIDSource overrides the process-wide id counter.
func WithIDSource(ids IDSource) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger enables debug logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProtocolLogger captures control messages and state changes as
// protocol log events.
func WithProtocolLogger(l log.Logger) Option {
	return func(o *options) { o.plog = l }
}

// WithMetrics reports endpoint activity to c.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		if c != nil {
			o.metrics = c
		}
	}
}
