package client

import (
	"context"
	"fmt"
	"time"

	"github.com/simlink-protocol/simlink-go/pkg/channel"
	"github.com/simlink-protocol/simlink-go/pkg/log"
	"github.com/simlink-protocol/simlink-go/pkg/transport"
	"github.com/simlink-protocol/simlink-go/pkg/version"
	"github.com/simlink-protocol/simlink-go/pkg/wire"
)

// Config configures a client.
type Config struct {
	// Host is the simulator host.
	Host string

	// Port is the simulator port.
	Port int

	// Framing selects the length-prefix encoding (default: binary).
	Framing transport.Framing

	// MaxMessageSize is the payload size ceiling (default: 16 MB).
	MaxMessageSize uint32

	// ConnectTimeout bounds each dial attempt (default: 30s).
	ConnectTimeout time.Duration

	// Retry is the reconnect timing policy (default: 0 then 500 ms).
	Retry channel.RetryPolicy

	// Logger receives protocol capture events. Nil disables capture.
	Logger log.Logger
}

// Client is a blocking request/response client for one simulator session.
// Not safe for concurrent use; open a second Client for parallel requests.
type Client struct {
	ch     *channel.Channel
	logger log.Logger
}

// Open connects to the simulator and performs the Hello version exchange.
// A protocol version disagreement closes the connection and returns
// *version.MismatchError.
func Open(ctx context.Context, config Config) (*Client, error) {
	ch, err := channel.Dial(ctx, channel.Config{
		Host:           config.Host,
		Port:           config.Port,
		Framing:        config.Framing,
		MaxMessageSize: config.MaxMessageSize,
		ConnectTimeout: config.ConnectTimeout,
		Retry:          config.Retry,
		Logger:         config.Logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		ch:     ch,
		logger: config.Logger,
	}

	if err := c.hello(); err != nil {
		ch.Close()
		return nil, err
	}

	return c, nil
}

// Request sends one typed message and blocks for the simulator's response.
// The response must echo the request type; a simulator-reported error in the
// response is returned as an error. The unwrapped "result" payload is
// returned, which may be nil for operations without a result.
func (c *Client) Request(msgType string, args map[string]any) (any, error) {
	resp, err := c.roundTrip(wire.New(msgType, args))
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Type() != msgType {
		return nil, fmt.Errorf("got response type %q, want %q", resp.Type(), msgType)
	}

	result, _ := resp.Result()
	return result, nil
}

// Channel returns the underlying channel, for state inspection.
func (c *Client) Channel() *channel.Channel {
	return c.ch
}

// Close tears down the session.
func (c *Client) Close() error {
	return c.ch.Close()
}

// hello exchanges protocol versions with the simulator. First traffic on
// every new session.
func (c *Client) hello() error {
	resp, err := c.roundTrip(wire.NewHello(version.Protocol))
	if err != nil {
		return fmt.Errorf("hello exchange failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("hello exchange failed: %w", err)
	}
	if resp.Type() != wire.TypeHello {
		return fmt.Errorf("hello exchange failed: got response type %q", resp.Type())
	}

	remote, ok := resp.ProtocolVersion()
	if !ok {
		return fmt.Errorf("hello exchange failed: response carries no protocol version")
	}
	if remote != version.Protocol {
		return &version.MismatchError{Local: version.Protocol, Remote: remote}
	}
	return nil
}

// roundTrip encodes and sends a message, then receives and decodes the
// response. Transient connection faults are absorbed by the channel below;
// errors surfacing here are terminal.
func (c *Client) roundTrip(msg wire.Message) (wire.Message, error) {
	data, err := wire.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	c.logMessage(msg, len(data), log.DirectionOut)

	if err := c.ch.Send(data); err != nil {
		return nil, err
	}

	raw, err := c.ch.Receive()
	if err != nil {
		return nil, err
	}

	resp, err := wire.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	c.logMessage(resp, len(raw), log.DirectionIn)

	return resp, nil
}

func (c *Client) logMessage(msg wire.Message, size int, direction log.Direction) {
	if c.logger == nil {
		return
	}
	event := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ch.ConnectionID(),
		Direction:    direction,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type: msg.Type(),
			Size: size,
		},
	}
	if err := msg.Err(); err != nil {
		event.Message.Err = err.Error()
	}
	c.logger.Log(event)
}
