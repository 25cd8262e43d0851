package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/simlink-protocol/simlink-go/pkg/log"
)

// Framing selects the length-prefix encoding for a connection. The framing
// is fixed when the framer is created and never changes mid-connection.
type Framing uint8

const (
	// FramingBinary is the current wire format: a 4-byte unsigned
	// big-endian length prefix.
	FramingBinary Framing = iota

	// FramingLegacyASCII is the legacy wire format: a 16-character
	// zero-padded ASCII decimal length prefix.
	FramingLegacyASCII
)

// String returns the framing name.
func (f Framing) String() string {
	switch f {
	case FramingBinary:
		return "BINARY"
	case FramingLegacyASCII:
		return "LEGACY_ASCII"
	default:
		return "UNKNOWN"
	}
}

// PrefixSize returns the length-prefix size in bytes for this framing.
func (f Framing) PrefixSize() int {
	if f == FramingLegacyASCII {
		return LegacyLengthPrefixSize
	}
	return LengthPrefixSize
}

// Framing constants.
const (
	// LengthPrefixSize is the size of the binary length prefix in bytes.
	LengthPrefixSize = 4

	// LegacyLengthPrefixSize is the size of the ASCII decimal length prefix.
	LegacyLengthPrefixSize = 16

	// DefaultMaxMessageSize is the default maximum payload size (16 MB).
	// Sensor payloads (camera images, point clouds) are large; the ceiling
	// exists to stop a desynchronized stream from turning stray bytes into
	// a multi-gigabyte allocation.
	DefaultMaxMessageSize = 16 << 20

	// MaxLogFrameDataSize is the maximum frame data size to include in
	// protocol log events (4 KB). Larger frames are truncated in the event.
	MaxLogFrameDataSize = 4096
)

// Framing errors. These are terminal: once raised, the byte stream can no
// longer be trusted to be aligned on a frame boundary.
var (
	// ErrMessageTooLarge indicates a payload or declared length exceeds the
	// configured ceiling.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFrameTruncated indicates the connection ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrBadLengthPrefix indicates a length prefix that does not decode.
	ErrBadLengthPrefix = errors.New("malformed length prefix")
)

// IsTerminal reports whether err is a framing fault that must not be retried
// on a reconnected transport. Retrying after one of these risks interpreting
// payload bytes as a new length prefix.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrMessageTooLarge) ||
		errors.Is(err, ErrFrameTruncated) ||
		errors.Is(err, ErrBadLengthPrefix)
}

// FramerConfig configures a frame reader or writer.
type FramerConfig struct {
	// Framing selects the length-prefix encoding (default: FramingBinary).
	Framing Framing

	// MaxMessageSize is the payload size ceiling (default: 16 MB).
	MaxMessageSize uint32
}

// DefaultFramerConfig returns the default framer configuration.
func DefaultFramerConfig() FramerConfig {
	return FramerConfig{
		Framing:        FramingBinary,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

func (c *FramerConfig) applyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
}

// FrameWriter writes length-prefixed frames to an underlying writer.
type FrameWriter struct {
	w       io.Writer
	framing Framing
	maxSize uint32
	mu      sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a frame writer with the default configuration.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithConfig(w, DefaultFramerConfig())
}

// NewFrameWriterWithConfig creates a frame writer with a custom configuration.
func NewFrameWriterWithConfig(w io.Writer, cfg FramerConfig) *FrameWriter {
	cfg.applyDefaults()
	return &FrameWriter{
		w:       w,
		framing: cfg.Framing,
		maxSize: cfg.MaxMessageSize,
	}
}

// SetLogger configures protocol logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes one length-prefixed frame: the payload length encoded in
// the connection's framing, followed immediately by the payload. The two
// writes form one logical operation; if the prefix write succeeds but the
// payload write fails, the connection is corrupted and must not be reused.
//
// Zero-length payloads are legal and produce a prefix-only frame.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) > int(fw.maxSize) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.maxSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	prefix := encodeLength(fw.framing, uint32(len(data)))
	if _, err := fw.w.Write(prefix); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}

	if len(data) > 0 {
		if _, err := fw.w.Write(data); err != nil {
			return fmt.Errorf("failed to write payload: %w", err)
		}
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.connID, fw.framing, data, log.DirectionOut))
	}

	return nil
}

// FrameReader reads length-prefixed frames from an underlying reader.
type FrameReader struct {
	r         io.Reader
	framing   Framing
	maxSize   uint32
	prefixBuf [LegacyLengthPrefixSize]byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a frame reader with the default configuration.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithConfig(r, DefaultFramerConfig())
}

// NewFrameReaderWithConfig creates a frame reader with a custom configuration.
func NewFrameReaderWithConfig(r io.Reader, cfg FramerConfig) *FrameReader {
	cfg.applyDefaults()
	return &FrameReader{
		r:       r,
		framing: cfg.Framing,
		maxSize: cfg.MaxMessageSize,
	}
}

// SetLogger configures protocol logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// SetMaxMessageSize updates the payload size ceiling.
func (fr *FrameReader) SetMaxMessageSize(size uint32) {
	fr.maxSize = size
}

// ReadFrame reads one length-prefixed frame and returns the payload.
//
// io.EOF is returned only when the stream ends cleanly on a frame boundary
// (no prefix byte read); the caller may treat that as a recoverable
// connection loss. An end-of-stream after any prefix or payload byte is
// ErrFrameTruncated, which is terminal.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	prefix := fr.prefixBuf[:fr.framing.PrefixSize()]
	if _, err := io.ReadFull(fr.r, prefix); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length, err := decodeLength(fr.framing, prefix)
	if err != nil {
		return nil, err
	}
	if length > fr.maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, fr.maxSize)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrFrameTruncated
			}
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.connID, fr.framing, payload, log.DirectionIn))
	}

	return payload, nil
}

// Framer combines frame reading and writing over one connection.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer with the default configuration.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithConfig(rw, DefaultFramerConfig())
}

// NewFramerWithConfig creates a framer with a custom configuration.
func NewFramerWithConfig(rw io.ReadWriter, cfg FramerConfig) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithConfig(rw, cfg),
		FrameWriter: NewFrameWriterWithConfig(rw, cfg),
	}
}

// SetLogger configures protocol logging for both directions.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// Framing returns the length-prefix encoding this framer speaks.
func (f *Framer) Framing() Framing {
	return f.FrameReader.framing
}

// FrameSize returns the total on-wire frame size for a payload.
func FrameSize(framing Framing, payloadSize int) int {
	return framing.PrefixSize() + payloadSize
}

// encodeLength encodes a payload length in the given framing.
func encodeLength(framing Framing, length uint32) []byte {
	if framing == FramingLegacyASCII {
		return []byte(fmt.Sprintf("%016d", length))
	}
	var buf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(buf[:], length)
	return buf[:]
}

// decodeLength decodes a length prefix in the given framing.
func decodeLength(framing Framing, prefix []byte) (uint32, error) {
	if framing == FramingLegacyASCII {
		var length uint64
		for _, b := range prefix {
			if b < '0' || b > '9' {
				return 0, fmt.Errorf("%w: %q", ErrBadLengthPrefix, prefix)
			}
			length = length*10 + uint64(b-'0')
			if length > 1<<32-1 {
				return 0, fmt.Errorf("%w: %q overflows", ErrBadLengthPrefix, prefix)
			}
		}
		return uint32(length), nil
	}
	return binary.BigEndian.Uint32(prefix), nil
}

// makeFrameEvent creates a protocol log event for a frame.
func makeFrameEvent(connID string, framing Framing, data []byte, direction log.Direction) log.Event {
	frameSize := FrameSize(framing, len(data))
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      frameSize,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}
