package transport

import (
	"context"
	"io"
	"net"
)

// StreamEndpoint is a raw duplex byte stream with exact-length I/O. It is
// what the reconnecting channel holds between reconnects; implemented by
// Endpoint.
type StreamEndpoint interface {
	// Read and Write allow a Framer to sit directly on the stream.
	io.ReadWriter

	// Dial establishes the connection.
	Dial(ctx context.Context) error

	// ReadFull blocks until exactly len(p) bytes have been received.
	ReadFull(p []byte) error

	// WriteFull writes the entire buffer.
	WriteFull(p []byte) error

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Close releases the socket handle. Idempotent.
	Close() error
}

// FrameReadWriter provides length-prefixed frame I/O. It is the surface the
// reconnecting channel sends and receives through; implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ StreamEndpoint  = (*Endpoint)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
