package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
)

// Endpoint errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrEndpointClosed   = errors.New("endpoint closed")
	ErrInvalidPort      = errors.New("invalid port")
)

// Endpoint owns a single stream-socket connection to a fixed (host, port)
// pair. It performs raw connect/disconnect and guaranteed-complete reads and
// writes; it knows nothing about framing.
//
// An Endpoint is dialed at most once. The reconnecting channel creates a
// fresh Endpoint for every connection attempt so that a faulted socket is
// fully closed before a replacement exists.
type Endpoint struct {
	host string
	port int

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewEndpoint creates an unconnected endpoint for the given remote.
func NewEndpoint(host string, port int) *Endpoint {
	return &Endpoint{host: host, port: port}
}

// Addr returns the remote address in host:port form.
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// Dial establishes the TCP connection. Send coalescing is disabled
// (TCP_NODELAY) so each write is dispatched promptly, and no read or write
// deadlines are set: reads block without bound.
func (e *Endpoint) Dial(ctx context.Context) error {
	if e.port < 1 || e.port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, e.port)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEndpointClosed
	}
	if e.conn != nil {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.mu.Unlock()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", e.Addr())
	if err != nil {
		return fmt.Errorf("dial %s failed: %w", e.Addr(), err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	e.mu.Lock()
	if e.closed {
		// Closed while dialing; the caller must observe the close.
		e.mu.Unlock()
		conn.Close()
		return ErrEndpointClosed
	}
	e.conn = conn
	e.mu.Unlock()

	return nil
}

// Read reads up to len(p) bytes from the connection. It satisfies io.Reader
// so a Framer can wrap the endpoint directly.
func (e *Endpoint) Read(p []byte) (int, error) {
	conn, err := e.current()
	if err != nil {
		return 0, err
	}
	return conn.Read(p)
}

// Write writes p to the connection. It satisfies io.Writer.
func (e *Endpoint) Write(p []byte) (int, error) {
	conn, err := e.current()
	if err != nil {
		return 0, err
	}
	return conn.Write(p)
}

// ReadFull blocks until exactly len(p) bytes have been received, issuing as
// many underlying reads as needed. It never returns a short result: on any
// transport error or end-of-stream before len(p) bytes, an error is returned
// and the connection must be considered unusable.
func (e *Endpoint) ReadFull(p []byte) error {
	conn, err := e.current()
	if err != nil {
		return err
	}
	if _, err := io.ReadFull(conn, p); err != nil {
		return err
	}
	return nil
}

// WriteFull writes the entire buffer, blocking until all bytes are accepted
// by the transport or an error occurs.
func (e *Endpoint) WriteFull(p []byte) error {
	conn, err := e.current()
	if err != nil {
		return err
	}
	for len(p) > 0 {
		n, err := conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close releases the socket handle. Closing an already-closed endpoint is a
// no-op, not an error. Close unblocks any in-progress read or write.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.conn != nil {
		err := e.conn.Close()
		e.conn = nil
		return err
	}
	return nil
}

// RemoteAddr returns the remote network address, or nil if not connected.
func (e *Endpoint) RemoteAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return e.conn.RemoteAddr()
	}
	return nil
}

// LocalAddr returns the local network address, or nil if not connected.
func (e *Endpoint) LocalAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return e.conn.LocalAddr()
	}
	return nil
}

// current returns the live connection or the reason there is none.
func (e *Endpoint) current() (net.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEndpointClosed
	}
	if e.conn == nil {
		return nil, ErrNotConnected
	}
	return e.conn, nil
}
