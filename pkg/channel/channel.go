package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/simlink-protocol/simlink-go/pkg/log"
	"github.com/simlink-protocol/simlink-go/pkg/transport"
)

// Channel errors.
var (
	// ErrChannelClosed indicates an operation on an explicitly closed channel.
	ErrChannelClosed = errors.New("channel closed")
)

// State represents the channel state.
type State uint8

const (
	// StateConnected indicates a live connection to the simulator.
	StateConnected State = iota

	// StateReconnecting indicates the connection faulted and the channel is
	// re-establishing it.
	StateReconnecting

	// StateClosed indicates the channel has been shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a channel.
type Config struct {
	// Host is the simulator host.
	Host string

	// Port is the simulator port (1-65535).
	Port int

	// Framing selects the length-prefix encoding (default: binary).
	Framing transport.Framing

	// MaxMessageSize is the payload size ceiling (default: 16 MB).
	MaxMessageSize uint32

	// ConnectTimeout bounds each individual dial attempt (default: 30s).
	// The reconnect loop as a whole is unbounded.
	ConnectTimeout time.Duration

	// Retry is the reconnect timing policy (default: 0 then 500 ms).
	Retry RetryPolicy

	// Logger receives protocol capture events. Nil disables capture.
	Logger log.Logger
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = transport.DefaultMaxMessageSize
	}
}

// Channel is the reconnecting, frame-aware transport exposed to application
// code. It exclusively owns the current endpoint; callers never touch the
// socket handle, so the channel can swap it during a reconnect invisibly.
type Channel struct {
	config Config
	connID string

	// mu guards endpoint/framer installation and removal. It is not held
	// across blocking I/O so Close can always proceed.
	mu     sync.Mutex
	ep     transport.StreamEndpoint
	framer transport.FrameReadWriter

	state atomic.Int32

	// Lifetime context, cancelled by Close to abort in-flight dials.
	ctx    context.Context
	cancel context.CancelFunc

	closeCh   chan struct{}
	closeOnce sync.Once

	// Callbacks (set before first use).
	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration)
}

// Dial creates a channel and establishes the initial connection. The initial
// connect is not retried; a simulator that is down at construction time is
// reported to the caller immediately.
func Dial(ctx context.Context, config Config) (*Channel, error) {
	config.applyDefaults()

	lifetimeCtx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		config:  config,
		connID:  uuid.New().String(),
		ctx:     lifetimeCtx,
		cancel:  cancel,
		closeCh: make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))

	ep := transport.NewEndpoint(config.Host, config.Port)
	dialCtx, dialCancel := context.WithTimeout(ctx, config.ConnectTimeout)
	err := ep.Dial(dialCtx)
	dialCancel()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect failed: %w", err)
	}

	c.install(ep)
	c.logStateChange("", StateConnected, "initial connect", 0, 0)

	return c, nil
}

// ConnectionID returns the unique identifier of this channel, used to
// correlate protocol capture events.
func (c *Channel) ConnectionID() string {
	return c.connID
}

// State returns the current channel state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// OnStateChange sets a callback for state transitions.
// Must be set before the channel is used.
func (c *Channel) OnStateChange(fn func(oldState, newState State)) {
	c.onStateChange = fn
}

// OnReconnecting sets a callback invoked once per reconnect attempt with the
// attempt number and the sleep performed since the previous failure (zero for
// the first two attempts).
// Must be set before the channel is used.
func (c *Channel) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	c.onReconnecting = fn
}

// Send transmits one payload as a frame. It blocks until the frame is fully
// written. On a transient I/O fault it reconnects and re-issues the write;
// the call returns only on success or a terminal error. Send never reports
// which of the two writes of a retried frame reached the simulator, so
// exactly-once delivery across a reconnect is not guaranteed.
func (c *Channel) Send(payload []byte) error {
	for {
		framer, err := c.currentFramer()
		if err != nil {
			return err
		}

		err = framer.WriteFrame(payload)
		if err == nil {
			return nil
		}
		if fatal := c.classify(err, "send"); fatal != nil {
			return fatal
		}

		if err := c.reconnect(err); err != nil {
			return err
		}
	}
}

// Receive blocks until one complete frame arrives and returns its payload.
// A connection loss on a frame boundary triggers reconnection and a fresh
// read; a loss mid-frame is a framing fault and is terminal.
func (c *Channel) Receive() ([]byte, error) {
	for {
		framer, err := c.currentFramer()
		if err != nil {
			return nil, err
		}

		payload, err := framer.ReadFrame()
		if err == nil {
			return payload, nil
		}
		if fatal := c.classify(err, "receive"); fatal != nil {
			return nil, fatal
		}

		if err := c.reconnect(err); err != nil {
			return nil, err
		}
	}
}

// Close shuts the channel down. It aborts an in-flight dial, a pending retry
// sleep, and any blocked read or write; those and all subsequent calls fail
// with ErrChannelClosed. Close is idempotent and safe to call from another
// goroutine.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		oldState := c.State()
		c.state.Store(int32(StateClosed))

		c.cancel()
		close(c.closeCh)

		c.mu.Lock()
		if c.ep != nil {
			c.ep.Close()
			c.ep = nil
			c.framer = nil
		}
		c.mu.Unlock()

		c.notifyStateChange(oldState, StateClosed)
		c.logStateChange(oldState.String(), StateClosed, "closed by caller", 0, 0)
	})
	return nil
}

// classify decides what to do with a framer error: nil means the fault is
// transient and the caller should reconnect and retry; non-nil is the
// terminal error to surface.
func (c *Channel) classify(err error, op string) error {
	if c.isClosed() {
		// The fault was our own Close tearing the socket down.
		return ErrChannelClosed
	}
	if transport.IsTerminal(err) {
		c.logError(err, op, true)
		return err
	}
	// Connection loss on a frame boundary or any other transport fault:
	// recoverable.
	return nil
}

// reconnect tears down the faulted endpoint and re-establishes the
// connection, blocking until it succeeds or the channel is closed. The old
// handle is fully closed before a replacement endpoint is created.
func (c *Channel) reconnect(cause error) error {
	oldState := c.State()
	c.state.Store(int32(StateReconnecting))
	c.notifyStateChange(oldState, StateReconnecting)
	c.logStateChange(oldState.String(), StateReconnecting, cause.Error(), 0, 0)
	c.logError(cause, "reconnect", false)

	c.mu.Lock()
	if c.ep != nil {
		c.ep.Close()
		c.ep = nil
		c.framer = nil
	}
	c.mu.Unlock()

	// Dial first, sleep only after a failure: the first two attempts are
	// immediate (the sleep after the first failure is zero), every later
	// failure costs the fixed step.
	retry := NewRetry(c.config.Retry)
	var slept time.Duration
	for attempt := 1; ; attempt++ {
		if c.isClosed() {
			return ErrChannelClosed
		}

		if c.onReconnecting != nil {
			c.onReconnecting(attempt, slept)
		}
		c.logStateChange("", StateReconnecting, "attempting", attempt, slept)

		ep := transport.NewEndpoint(c.config.Host, c.config.Port)
		dialCtx, dialCancel := context.WithTimeout(c.ctx, c.config.ConnectTimeout)
		err := ep.Dial(dialCtx)
		dialCancel()
		if err == nil {
			if !c.install(ep) {
				ep.Close()
				return ErrChannelClosed
			}

			c.state.Store(int32(StateConnected))
			c.notifyStateChange(StateReconnecting, StateConnected)
			c.logStateChange(StateReconnecting.String(), StateConnected,
				fmt.Sprintf("reconnected after %d attempts", attempt), 0, 0)
			return nil
		}
		ep.Close()

		slept = retry.Next()
		if slept > 0 {
			select {
			case <-c.closeCh:
				return ErrChannelClosed
			case <-time.After(slept):
			}
		}
	}
}

// install makes ep the live endpoint. Returns false if the channel was
// closed in the meantime.
func (c *Channel) install(ep transport.StreamEndpoint) bool {
	framer := transport.NewFramerWithConfig(ep, transport.FramerConfig{
		Framing:        c.config.Framing,
		MaxMessageSize: c.config.MaxMessageSize,
	})
	if c.config.Logger != nil {
		framer.SetLogger(c.config.Logger, c.connID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return false
	}
	c.ep = ep
	c.framer = framer
	return true
}

// currentFramer returns the live framer, waiting for none: a nil framer only
// happens when the channel is closed.
func (c *Channel) currentFramer() (transport.FrameReadWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() || c.framer == nil {
		return nil, ErrChannelClosed
	}
	return c.framer, nil
}

func (c *Channel) isClosed() bool {
	return c.State() == StateClosed
}

func (c *Channel) notifyStateChange(oldState, newState State) {
	if c.onStateChange != nil && oldState != newState {
		c.onStateChange(oldState, newState)
	}
}

func (c *Channel) logStateChange(oldState string, newState State, reason string, attempt int, delay time.Duration) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState.String(),
			Reason:   reason,
			Attempt:  attempt,
			Delay:    delay,
		},
	})
}

func (c *Channel) logError(err error, opContext string, terminal bool) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:    log.LayerTransport,
			Message:  err.Error(),
			Context:  opContext,
			Terminal: terminal,
		},
	})
}
