// Package channel provides the reconnecting, frame-aware transport that
// application code talks to.
//
// A Channel wraps one framed TCP connection to the simulator and exposes
// exactly two blocking operations: Send and Receive. On any I/O failure
// during either, the channel tears the connection down and re-establishes it
// with a retry loop, then re-issues the faulted operation. Callers never see
// a transient fault, only eventual success or a terminal error.
//
// # Reconnection Strategy
//
// The retry timing reproduces the reference client exactly. Each cycle dials
// first and sleeps only after a failure:
//
//  1. First attempt: immediate; the sleep after its failure is zero, so the
//     second attempt is immediate too
//  2. Every later failure: fixed 500 ms sleep before the next attempt
//  3. No attempt ceiling; retry until the simulator is reachable
//  4. State resets the moment a connection attempt succeeds
//
// There is deliberately no exponential growth and no jitter; consumers of
// the reference client depend on this timing. The delays are configurable
// per channel through RetryPolicy.
//
// # Failure Semantics
//
// The channel never fabricates or drops messages. A fault during Send means
// the message may or may not have reached the simulator before the fault;
// exactly-once delivery across a reconnect is not guaranteed and must be
// enforced by the request/response layer above if required.
//
// Framing faults (a truncated frame, an implausible length prefix) are
// terminal and propagate: after one, payload bytes could be misread as a
// length prefix, so retrying on a reconnected transport is unsafe.
//
// # Concurrency
//
// A Channel is synchronous and has no background goroutines. One operation
// at a time: concurrent Send/Receive from multiple goroutines is not
// supported; open a second Channel instead (the simulator accepts multiple
// simultaneous connections). The one exception is Close, which may be called
// from another goroutine and promptly unblocks an in-flight dial, retry
// sleep, or socket read; unblocked and subsequent calls fail with
// ErrChannelClosed.
package channel
