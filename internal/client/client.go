package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/dispatch"
	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/session"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// Client is the MQTT client façade tying together the transport, session
// and dispatch layers.
//
// A Client is single-threaded: all methods must be called from the same
// goroutine, and protocol housekeeping happens inside Yield rather than on
// background goroutines.
type Client struct {
	opts  Options
	sess  *session.Session
	table *dispatch.Table

	// stream is non-nil only while a connection is open.
	stream transport.Stream

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)

	// logger for warning/error logging (optional, set via SetLogger).
	logger Logger

	// metrics observer (optional, set via SetMetrics).
	metrics Metrics

	// nextMessageID generates packet identifiers for SUBSCRIBE and
	// UNSUBSCRIBE. Zero is not a valid identifier.
	nextMessageID uint16

	// dial is replaced in tests to connect without a TLS listener.
	dial func(ctx context.Context, cfg transport.Config) (transport.Stream, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metrics is the instrumentation surface the client reports into. All
// methods are called from the client's goroutine.
type Metrics interface {
	PacketSent(packetType string)
	PacketReceived(packetType string)
	ConnectionEstablished()
	ConnectionLost()
	ReconnectAttempt()
}

// New builds a Client from opts. Zero option fields receive defaults; a
// missing client ID is generated.
//
// Returns:
//   - *Client: ready for Connect
//   - error: wrapped ErrInvalidParams when validation fails
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		opts: opts,
		sess: session.New(session.Config{
			ClientID:              opts.ClientID,
			KeepAlive:             opts.KeepAlive,
			CleanSession:          opts.CleanSession,
			CommandTimeout:        opts.CommandTimeout,
			AutoReconnect:         opts.AutoReconnect,
			MaxReconnectAttempts:  opts.MaxReconnectAttempts,
			ReconnectInitialDelay: opts.ReconnectInitialDelay,
			ReconnectMaxDelay:     opts.ReconnectMaxDelay,
		}),
	}
	c.table = dispatch.NewTable(tableLogger{c})
	c.dial = func(ctx context.Context, cfg transport.Config) (transport.Stream, error) {
		return transport.Dial(ctx, cfg)
	}
	return c, nil
}

// tableLogger forwards dispatch diagnostics to the client's logger, which
// may be set after the table is built.
type tableLogger struct{ c *Client }

func (l tableLogger) Warn(msg string, args ...any) {
	if l.c.logger != nil {
		l.c.logger.Warn(msg, args...)
	}
}

func (l tableLogger) Error(msg string, args ...any) {
	if l.c.logger != nil {
		l.c.logger.Error(msg, args...)
	}
}

// Connect dials the broker over TLS and runs the CONNECT/CONNACK
// handshake.
//
// Parameters:
//   - ctx: bounds the TCP connect and TLS handshake together with the
//     configured handshake timeout
//
// Returns:
//   - error: ErrConnectTimeout, ErrConnectionRejected, ErrTransport or
//     ErrBadTransition from an invalid state
func (c *Client) Connect(ctx context.Context) error {
	if err := c.sess.BeginConnect(); err != nil {
		return err
	}

	stream, err := c.dial(ctx, c.opts.transportConfig())
	if err != nil {
		c.sess.DialFailed(time.Now())
		return fmt.Errorf("%w: dialing %s:%d: %w", ErrTransport, c.opts.Host, c.opts.Port, err)
	}

	if err := c.sess.Establish(stream); err != nil {
		stream.Close()
		return err
	}

	c.stream = stream
	if c.metrics != nil {
		c.metrics.ConnectionEstablished()
	}
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

// Disconnect sends DISCONNECT when connected, closes the transport and
// clears the subscription table. Safe to call repeatedly and from any
// state.
func (c *Client) Disconnect() error {
	wasConnected := c.sess.State() == session.Connected
	if wasConnected && c.stream != nil {
		// Best effort: the connection is going away either way.
		if _, err := c.stream.Write(packet.EncodeDisconnect()); err == nil && c.metrics != nil {
			c.metrics.PacketSent(packet.DISCONNECT.String())
		}
	}
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.sess.Disconnect()
	c.table.Clear()
	if wasConnected && c.metrics != nil {
		c.metrics.ConnectionLost()
	}
	return nil
}

// AttemptReconnect runs one reconnection attempt: dial, handshake and
// subscription replay.
//
// Callers with auto-reconnect disabled invoke this from their disconnect
// callback; with auto-reconnect enabled Yield calls it when the backoff
// delay has elapsed.
//
// Returns:
//   - error: ErrRetriesExhausted when the attempt limit is reached,
//     otherwise the same errors as Connect. A failed attempt with
//     auto-reconnect enabled leaves the session Reconnecting with the next
//     retry scheduled.
func (c *Client) AttemptReconnect(ctx context.Context) error {
	if c.sess.RetryExhausted() {
		c.sess.GiveUp()
		return fmt.Errorf("%w: after %d attempts", ErrRetriesExhausted, c.sess.ReconnectAttempts())
	}

	if err := c.sess.BeginConnect(); err != nil {
		return err
	}
	c.sess.CountAttempt()
	if c.metrics != nil {
		c.metrics.ReconnectAttempt()
	}

	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}

	stream, err := c.dial(ctx, c.opts.transportConfig())
	if err != nil {
		c.sess.DialFailed(time.Now())
		return fmt.Errorf("%w: dialing %s:%d: %w", ErrTransport, c.opts.Host, c.opts.Port, err)
	}

	if err := c.sess.Establish(stream); err != nil {
		stream.Close()
		return err
	}

	c.stream = stream
	if c.metrics != nil {
		c.metrics.ConnectionEstablished()
	}
	c.resubscribe()
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

// resubscribe replays the dispatch table to the broker after a reconnect.
// Clean sessions make the broker forget subscriptions, so the replay is
// what keeps handlers receiving messages across outages. Failures are
// logged; the connection itself is up.
func (c *Client) resubscribe() {
	c.table.Each(func(filter string, qos byte) {
		if err := c.sendSubscribe(filter, qos); err != nil {
			if c.logger != nil {
				c.logger.Warn("resubscribe failed",
					"topic", filter,
					"error", err,
				)
			}
		}
	})
}

// State returns the session lifecycle state.
func (c *Client) State() session.State {
	return c.sess.State()
}

// IsConnected reports whether the session is in the Connected state.
func (c *Client) IsConnected() bool {
	return c.sess.State() == session.Connected
}

// SetAutoReconnect enables or disables automatic reconnection. Takes
// effect at the next connection loss.
func (c *Client) SetAutoReconnect(enabled bool) {
	c.sess.SetAutoReconnect(enabled)
}

// IsAutoReconnectEnabled reports whether connection losses trigger
// automatic reconnection.
func (c *Client) IsAutoReconnectEnabled() bool {
	return c.sess.AutoReconnectEnabled()
}

// SetOnConnect sets a callback invoked after every successful handshake,
// initial connects and reconnects alike.
func (c *Client) SetOnConnect(callback func()) {
	c.onConnect = callback
}

// SetOnDisconnect sets a callback invoked when an established connection
// is lost. The error describes the loss. Not invoked for explicit
// Disconnect calls.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.onDisconnect = callback
}

// SetLogger sets a logger for warning and error diagnostics. If not set,
// diagnostics are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetMetrics sets the instrumentation observer. If not set, no metrics
// are recorded.
func (c *Client) SetMetrics(metrics Metrics) {
	c.metrics = metrics
}

// ClientID returns the identifier presented to the broker, including a
// generated one.
func (c *Client) ClientID() string {
	return c.sess.ClientID()
}

// messageID returns the next packet identifier, skipping zero on wrap.
func (c *Client) messageID() uint16 {
	c.nextMessageID++
	if c.nextMessageID == 0 {
		c.nextMessageID = 1
	}
	return c.nextMessageID
}

// send writes one encoded frame, updating keep-alive bookkeeping and
// metrics. A write failure tears the connection down via
// handleConnectionLost before returning.
func (c *Client) send(frame []byte, packetType packet.Type) error {
	if _, err := c.stream.Write(frame); err != nil {
		lossErr := fmt.Errorf("%w: sending %s: %w", ErrTransport, packetType, err)
		c.handleConnectionLost(lossErr)
		return lossErr
	}
	c.sess.PacketSent(time.Now())
	if c.metrics != nil {
		c.metrics.PacketSent(packetType.String())
	}
	return nil
}

// handleConnectionLost closes the transport, records the loss with the
// session and notifies the disconnect callback.
func (c *Client) handleConnectionLost(err error) session.State {
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	if c.metrics != nil {
		c.metrics.ConnectionLost()
	}
	state := c.sess.ConnectionLost(time.Now())
	if c.logger != nil {
		c.logger.Warn("connection lost",
			"error", err,
			"state", state.String(),
		)
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
	return state
}
