// Package transport provides the SimLink byte-stream transport:
// a raw TCP endpoint and length-prefixed message framing.
//
// The transport layer handles:
//   - One stream-socket connection per Endpoint (TCP_NODELAY, blocking reads)
//   - Exact-length reads and writes (never a short result)
//   - Length-prefixed message framing with a configurable size ceiling
//   - The legacy ASCII-length framing variant
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     Simulator Messages         │
//	├────────────────────────────────┤
//	│  Length-Prefix Framing (4B/16B)│
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Framing
//
// A frame is a length prefix followed by exactly that many payload bytes.
// Two prefix encodings exist, selected per connection and never mixed:
//
//   - FramingBinary: 4-byte unsigned big-endian integer (default)
//   - FramingLegacyASCII: 16-character zero-padded ASCII decimal, spoken by
//     older simulator builds
//
// The prefix makes frames self-delimiting, so payloads may contain arbitrary
// binary data without escaping. A reader either obtains a complete frame or
// an error; a frame is never partially consumable.
//
// # Error Classification
//
// Errors split three ways for the reconnecting channel above:
// recoverable I/O faults (connection resets, EOF at a frame boundary),
// terminal framing faults (IsTerminal reports true: a truncated frame or an
// implausible length prefix means the byte stream is desynchronized and must
// not be retried on the same connection), and success.
package transport
