// Package subscription implements the subscriber side of a topic.
//
// An Endpoint represents one subscription from a local consumer to one
// remote publisher, carried on a connection dedicated to it.
//
// # Lifecycle
//
//	New ──► Init ──► (payloads) ──► Fini / Close
//
// New registers interest with the topic registry. Init enqueues a "sub"
// envelope describing the local end of the connection, arms the first
// read and attaches a shutdown hook. Fini cancels I/O and releases the
// connection. Close is the full teardown: it also sends "unsubscribe"
// through the connection registry and unregisters the connection before
// releasing it. Teardown runs at most once whichever path triggers it.
//
// # Read Loop
//
// Every completed read re-arms the next read before the payload is
// dispatched, so a slow or re-entrant callback never stalls the stream and
// at most one read is ever outstanding. Empty frames are skipped. Payloads
// with no callback installed are dropped. A read error ends the loop for
// good; callbacks never see errors.
//
// Callbacks run on the connection's read goroutine, in arrival order.
//
// # Manager
//
// Manager dials a dedicated connection per subscription and keeps the
// resulting endpoints by id until they are unsubscribed.
package subscription
