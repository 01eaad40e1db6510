// Package log provides structured protocol logging for the topic transport.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, subscription).
// It is separate from operational logging (slog): protocol capture provides
// a machine-readable trace of frames, control messages and lifecycle changes.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts = append(opts, subscription.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to a binary file
//	fl, _ := log.NewFileLogger("/var/log/gazebo/subscriber.glog")
//
//	// Both
//	logger := log.Tee(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded subscribe/unsubscribe envelopes (ControlEvent)
//   - Subscription: endpoint and connection state changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files (.glog) start with a six byte header followed by a stream of
// CBOR-encoded events. The gz-log tool views and summarizes them.
package log
