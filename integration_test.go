// Integration tests covering a full client session against a scripted
// simulator, including a simulator restart in the middle of the session.
package simlink_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink-protocol/simlink-go/pkg/channel"
	"github.com/simlink-protocol/simlink-go/pkg/client"
	"github.com/simlink-protocol/simlink-go/pkg/log"
	"github.com/simlink-protocol/simlink-go/pkg/transport"
	"github.com/simlink-protocol/simlink-go/pkg/wire"
)

// simulator is a restartable scripted simulator. It answers the Hello
// exchange on each fresh connection and echoes every other request with the
// request's "payload" value as the result. Stop tears down the listener and
// all live connections; Start brings the simulator back on the same port.
type simulator struct {
	t    *testing.T
	addr string

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
}

func newSimulator(t *testing.T) *simulator {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &simulator{
		t:     t,
		addr:  ln.Addr().String(),
		conns: make(map[net.Conn]struct{}),
	}
	s.run(ln)
	t.Cleanup(s.Stop)
	return s
}

func (s *simulator) Port() int {
	_, portStr, _ := net.SplitHostPort(s.addr)
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port
}

// Start brings the simulator back up on its original port.
func (s *simulator) Start() {
	s.t.Helper()

	var ln net.Listener
	var err error
	// The old listener socket may need a moment to release the port.
	for i := 0; i < 50; i++ {
		ln, err = net.Listen("tcp", s.addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(s.t, err)
	s.run(ln)
}

// Stop closes the listener and resets every live connection. The reset makes
// the next client write fail immediately instead of disappearing into a
// half-closed socket, which is what a killed simulator process looks like.
func (s *simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		s.ln.Close()
		s.ln = nil
	}
	for conn := range s.conns {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetLinger(0)
		}
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *simulator) run(ln net.Listener) {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns[conn] = struct{}{}
			s.mu.Unlock()
			go s.serve(conn)
		}
	}()
}

func (s *simulator) serve(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	framer := transport.NewFramer(conn)
	for {
		raw, err := framer.ReadFrame()
		if err != nil {
			return
		}
		req, err := wire.DecodeMessage(raw)
		if err != nil {
			return
		}

		var resp wire.Message
		if req.Type() == wire.TypeHello {
			v, _ := req.ProtocolVersion()
			resp = wire.NewHello(v)
		} else {
			resp = wire.Message{
				wire.KeyType:   req.Type(),
				wire.KeyResult: req["payload"],
			}
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

func fastRetry() channel.RetryPolicy {
	return channel.RetryPolicy{Initial: 0, Step: 10 * time.Millisecond}
}

func TestClientSession(t *testing.T) {
	sim := newSimulator(t)

	c, err := client.Open(context.Background(), client.Config{
		Host: "127.0.0.1",
		Port: sim.Port(),
	})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Request("Echo", map[string]any{"payload": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", result)
}

func TestClientSurvivesSimulatorRestart(t *testing.T) {
	sim := newSimulator(t)

	capture := &memoryLogger{}
	c, err := client.Open(context.Background(), client.Config{
		Host:   "127.0.0.1",
		Port:   sim.Port(),
		Retry:  fastRetry(),
		Logger: capture,
	})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Request("Echo", map[string]any{"payload": "before"})
	require.NoError(t, err)
	assert.Equal(t, "before", result)

	// Kill the simulator mid-session and bring it back on the same port.
	// The not-yet-answered request must complete without the caller seeing
	// anything but a delay.
	sim.Stop()
	// Let the reset reach the client socket before the next request.
	time.Sleep(50 * time.Millisecond)

	restarted := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		sim.Start()
		close(restarted)
	}()

	result, err = c.Request("Echo", map[string]any{"payload": "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", result)
	<-restarted

	require.Equal(t, channel.StateConnected, c.Channel().State())

	// The outage is visible in the protocol capture.
	assert.True(t, capture.sawState("RECONNECTING"), "no RECONNECTING event captured")
	assert.True(t, capture.sawState("CONNECTED"), "no CONNECTED event captured")
}

func TestChannelFrameEchoAcrossRestart(t *testing.T) {
	sim := newSimulator(t)

	ch, err := channel.Dial(context.Background(), channel.Config{
		Host:  "127.0.0.1",
		Port:  sim.Port(),
		Retry: fastRetry(),
	})
	require.NoError(t, err)
	defer ch.Close()

	send := func(payload string) string {
		data, err := wire.EncodeMessage(wire.New("Echo", map[string]any{"payload": payload}))
		require.NoError(t, err)
		require.NoError(t, ch.Send(data))

		raw, err := ch.Receive()
		require.NoError(t, err)
		resp, err := wire.DecodeMessage(raw)
		require.NoError(t, err)
		result, _ := resp.Result()
		str, _ := result.(string)
		return str
	}

	assert.Equal(t, "one", send("one"))

	sim.Stop()
	time.Sleep(50 * time.Millisecond)
	go func() {
		time.Sleep(100 * time.Millisecond)
		sim.Start()
	}()

	assert.Equal(t, "two", send("two"))
}

// memoryLogger collects events for assertions.
type memoryLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *memoryLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *memoryLogger) sawState(state string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.StateChange != nil && e.StateChange.NewState == state {
			return true
		}
	}
	return false
}
