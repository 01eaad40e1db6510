// Package transport provides the byte stream that carries topic traffic
// between a publisher and its subscribers.
//
// The transport layer handles:
//   - Length-prefixed message framing (empty frames are valid)
//   - Queued, non-blocking writes
//   - Single-shot asynchronous reads
//   - Shutdown notification hooks
//   - Optional TLS 1.3
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  Payload frames / CBOR control │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│       TLS 1.3 (optional)       │
//	├────────────────────────────────┤
//	│             TCP                │
//	└────────────────────────────────┘
//
// # Reads
//
// A Connection never reads on its own. The owner calls AsyncRead, which
// reads exactly one frame in the background and hands it to the handler;
// the handler re-arms by calling AsyncRead again. A second AsyncRead while
// one is outstanding fails with ErrReadPending. Handlers of one connection
// never overlap and see frames in stream order, even when they re-arm
// before processing the frame they were given.
//
// # Shutdown
//
// Cancel, Close, a read error or a write error all shut the connection
// down. Hooks registered with ConnectToShutdown run once, in registration
// order, on the goroutine that triggered the shutdown. A failed read
// shuts down before its handler runs, so hooks observe the shutdown first.
package transport
