package client

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink-protocol/simlink-go/pkg/log"
	"github.com/simlink-protocol/simlink-go/pkg/transport"
	"github.com/simlink-protocol/simlink-go/pkg/version"
	"github.com/simlink-protocol/simlink-go/pkg/wire"
)

// fakeSimulator is a one-connection-at-a-time scripted simulator. It answers
// the Hello exchange and then hands each decoded request to respond.
type fakeSimulator struct {
	t     *testing.T
	ln    net.Listener
	hello func(req wire.Message) wire.Message
	// respond maps a request to its response. A nil response drops the
	// connection without answering.
	respond func(req wire.Message) wire.Message
}

func defaultHello(req wire.Message) wire.Message {
	v, _ := req.ProtocolVersion()
	return wire.NewHello(v)
}

func startFakeSimulator(t *testing.T, sim *fakeSimulator) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	sim.t = t
	sim.ln = ln
	if sim.hello == nil {
		sim.hello = defaultHello
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go sim.serve(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSimulator) serve(conn net.Conn) {
	defer conn.Close()
	framer := transport.NewFramer(conn)

	for first := true; ; first = false {
		raw, err := framer.ReadFrame()
		if err != nil {
			return
		}
		req, err := wire.DecodeMessage(raw)
		if err != nil {
			return
		}

		var resp wire.Message
		if first && req.Type() == wire.TypeHello {
			resp = s.hello(req)
		} else if s.respond != nil {
			resp = s.respond(req)
		}
		if resp == nil {
			return
		}

		data, err := wire.EncodeMessage(resp)
		if err != nil {
			return
		}
		if err := framer.WriteFrame(data); err != nil {
			return
		}
	}
}

func TestOpenAndRequest(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.Message{
				wire.KeyType:   req.Type(),
				wire.KeyResult: req["payload"],
			}
		},
	})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Request("Echo", map[string]any{"payload": "marco"})
	require.NoError(t, err)
	assert.Equal(t, "marco", result)
}

func TestRequestWithoutResult(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.New(req.Type(), nil)
		},
	})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Request("Pause", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRequestTypeMismatch(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.New("SomethingElse", nil)
		},
	})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Request("Echo", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SomethingElse")
}

func TestRequestSimulatorError(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.Message{
				wire.KeyType:  req.Type(),
				wire.KeyError: "vehicle not found",
			}
		},
	})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Request("Teleport", map[string]any{"vehicle": "ghost"})
	require.Error(t, err)

	var simErr *wire.SimError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "vehicle not found", simErr.Msg)
}

func TestRequestSimulatorValueError(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.Message{
				wire.KeyType:       req.Type(),
				wire.KeyValueError: "speed must be positive",
			}
		},
	})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Request("SetSpeed", map[string]any{"speed": -1})
	require.Error(t, err)

	var valErr *wire.ValueError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "speed must be positive", valErr.Msg)
}

func TestOpenVersionMismatch(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		hello: func(req wire.Message) wire.Message {
			return wire.NewHello(version.Protocol + 1)
		},
	})

	_, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.Error(t, err)

	var mismatch *version.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, version.Protocol, mismatch.Local)
	assert.Equal(t, version.Protocol+1, mismatch.Remote)
}

func TestOpenHelloRejected(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		hello: func(req wire.Message) wire.Message {
			return wire.Message{
				wire.KeyType:  wire.TypeHello,
				wire.KeyError: "unsupported client",
			}
		},
	})

	_, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.Error(t, err)

	var simErr *wire.SimError
	assert.ErrorAs(t, err, &simErr)
}

func TestOpenHelloMissingVersion(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		hello: func(req wire.Message) wire.Message {
			return wire.New(wire.TypeHello, nil)
		},
	})

	_, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol version")
}

func TestOpenDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.Error(t, err)
}

func TestClientChannelAccess(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Channel())
	assert.NotEmpty(t, c.Channel().ConnectionID())
}

func TestRequestCapturesMessages(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{
		respond: func(req wire.Message) wire.Message {
			return wire.New(req.Type(), nil)
		},
	})

	capture := &captureLogger{}
	c, err := Open(context.Background(), Config{
		Host:   "127.0.0.1",
		Port:   port,
		Logger: capture,
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Request("Step", nil)
	require.NoError(t, err)

	types := capture.messageTypes()
	// Hello out/in plus Step out/in at the wire layer.
	assert.GreaterOrEqual(t, countString(types, wire.TypeHello), 2)
	assert.GreaterOrEqual(t, countString(types, "Step"), 2)
}

func TestRequestEncodingFailure(t *testing.T) {
	port := startFakeSimulator(t, &fakeSimulator{})

	c, err := Open(context.Background(), Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer c.Close()

	// A channel value cannot be encoded to CBOR; the request must fail
	// locally without touching the connection.
	_, err = c.Request("Bad", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

// captureLogger records wire-layer message types for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) messageTypes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var types []string
	for _, e := range l.events {
		if e.Layer == log.LayerWire && e.Message != nil {
			types = append(types, e.Message.Type)
		}
	}
	return types
}

func countString(values []string, want string) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}
