package wire

import (
	"errors"
	"fmt"
)

// Message map keys.
const (
	// KeyType is the message type discriminator, present on every message.
	KeyType = "type"

	// KeyResult carries a response payload.
	KeyResult = "result"

	// KeyProtocolVersion carries the protocol version in a Hello exchange.
	KeyProtocolVersion = "protocolVersion"

	// KeyError carries a simulator-reported error string.
	KeyError = "error"

	// KeyValueError carries a simulator-reported invalid-value error string.
	KeyValueError = "valueError"
)

// TypeHello is the type of the version-exchange message sent first on every
// connection.
const TypeHello = "Hello"

// ErrMissingType indicates a message without a type discriminator.
var ErrMissingType = errors.New("message has no type")

// Message is one structured simulator message: a map with a "type"
// discriminator and arbitrary further keys.
type Message map[string]any

// New creates a message of the given type with the given parameters.
// args may be nil.
func New(msgType string, args map[string]any) Message {
	msg := make(Message, len(args)+1)
	for k, v := range args {
		msg[k] = v
	}
	msg[KeyType] = msgType
	return msg
}

// NewHello creates the version-exchange message.
func NewHello(protocolVersion int) Message {
	return New(TypeHello, map[string]any{
		KeyProtocolVersion: protocolVersion,
	})
}

// Type returns the message type discriminator, or "" if absent.
func (m Message) Type() string {
	t, _ := m[KeyType].(string)
	return t
}

// Result returns the response payload and whether one was present.
func (m Message) Result() (any, bool) {
	v, ok := m[KeyResult]
	return v, ok
}

// ProtocolVersion returns the protocol version carried by a Hello message
// and whether one was present. CBOR decodes integers as uint64 or int64
// depending on sign; both are accepted.
func (m Message) ProtocolVersion() (int, bool) {
	switch v := m[KeyProtocolVersion].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

// Err returns the simulator-reported error embedded in the message, or nil.
func (m Message) Err() error {
	if v, ok := m[KeyError].(string); ok {
		return &SimError{Msg: v}
	}
	if v, ok := m[KeyValueError].(string); ok {
		return &ValueError{Msg: v}
	}
	return nil
}

// Validate checks that the message carries a type discriminator.
func (m Message) Validate() error {
	if m.Type() == "" {
		return ErrMissingType
	}
	return nil
}

// SimError is an error reported by the simulator in a response.
type SimError struct {
	Msg string
}

// Error returns the simulator's error message.
func (e *SimError) Error() string {
	return fmt.Sprintf("simulator error: %s", e.Msg)
}

// ValueError is an invalid-value error reported by the simulator, typically
// for an out-of-range or malformed request parameter.
type ValueError struct {
	Msg string
}

// Error returns the simulator's error message.
func (e *ValueError) Error() string {
	return fmt.Sprintf("simulator value error: %s", e.Msg)
}
