// Package connection is the process-wide registry of live topic
// connections.
//
// The Manager tracks connections so they can be cancelled together,
// forwards subscribe/unsubscribe envelopes to a master connection when one
// is set, and dials remote publishers with bounded retries.
//
// # Retry Strategy
//
// ConnectToRemote uses exponential backoff between attempts:
//
//  1. Initial delay: 100 milliseconds
//  2. Exponential increase: 200ms, 400ms, 800ms, ...
//  3. Maximum delay: 5 seconds
//  4. Give up after MaxAttempts
//
// # Jitter
//
// To keep many subscribers from retrying in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// Lost connections are not re-established; the owner dials again.
package connection
