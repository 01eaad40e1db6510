// Package metrics records subscription endpoint activity.
//
// Endpoints report through the Collector interface. NewNop discards
// everything; NewPrometheus exports counters and a gauge through a
// Prometheus registerer.
package metrics

// Collector receives endpoint lifecycle and delivery events.
type Collector interface {
	// EndpointCreated records a newly constructed endpoint.
	EndpointCreated(topic string)

	// EndpointActivated records a successful Init.
	EndpointActivated(topic string)

	// PayloadDelivered records a payload handed to a callback.
	PayloadDelivered(topic string, size int)

	// PayloadDropped records a non-empty payload that arrived with no
	// callback installed.
	PayloadDropped(topic string)

	// EmptyFrame records a zero-length frame.
	EmptyFrame(topic string)

	// RemoteShutdown records a connection shut down from below.
	RemoteShutdown(topic string)

	// Teardown records a Fini or Close that released a connection.
	// kind is "fini" or "close".
	Teardown(topic, kind string)
}
