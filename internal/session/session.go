package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	// DefaultKeepAlive matches the reference sample applications.
	DefaultKeepAlive = 10 * time.Second

	// DefaultCommandTimeout bounds the CONNACK (and SUBACK) wait.
	DefaultCommandTimeout = 2 * time.Second

	// DefaultReconnectInitialDelay is the first backoff delay after a
	// connection loss.
	DefaultReconnectInitialDelay = 1 * time.Second

	// DefaultReconnectMaxDelay caps the doubling backoff.
	DefaultReconnectMaxDelay = 128 * time.Second
)

// Config carries the session parameters fixed at construction time.
type Config struct {
	// ClientID is the identifier presented to the broker. Must be unique
	// per broker.
	ClientID string

	// KeepAlive is the maximum idle interval before the session sends a
	// PINGREQ. The broker may drop the connection after 1.5 times this
	// interval without traffic, and the session applies the same window
	// to the broker's responses.
	KeepAlive time.Duration

	// CleanSession asks the broker to discard prior session state. This
	// core always runs clean sessions; subscriptions are not retained
	// across reconnects.
	CleanSession bool

	// CommandTimeout bounds synchronous request/response waits such as
	// the CONNACK handshake.
	CommandTimeout time.Duration

	// AutoReconnect enables automatic reconnection with backoff after a
	// connection loss.
	AutoReconnect bool

	// MaxReconnectAttempts limits retries per outage. Zero means retry
	// forever, which matches the reference behaviour.
	MaxReconnectAttempts int

	// ReconnectInitialDelay is the first retry delay. Doubles per failed
	// attempt.
	ReconnectInitialDelay time.Duration

	// ReconnectMaxDelay caps the retry delay.
	ReconnectMaxDelay time.Duration
}

// Session tracks the lifecycle of a single broker connection.
//
// One Session serves one client façade; the transport socket is owned by
// the façade and handed to Establish during handshakes.
type Session struct {
	cfg   Config
	state State

	autoReconnect bool

	// Keep-alive bookkeeping. lastSent paces outbound PINGREQs; lastReceived
	// drives the liveness window.
	lastSent        time.Time
	lastReceived    time.Time
	pingOutstanding bool

	// Reconnect pacing.
	attempts    int
	nextRetryAt time.Time
	retry       *backoff.ExponentialBackOff

	// wasReconnecting records whether the current Connecting phase is an
	// automatic retry, which decides where a failure lands.
	wasReconnecting bool
}

// New returns a Session in the Disconnected state. Zero Config fields are
// replaced with the package defaults; ClientID validity is the caller's
// concern.
func New(cfg Config) *Session {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = cfg.ReconnectInitialDelay
	retry.Multiplier = 2
	retry.MaxInterval = cfg.ReconnectMaxDelay
	retry.MaxElapsedTime = 0
	// Deterministic delays: the doubling sequence itself is the contract.
	retry.RandomizationFactor = 0
	retry.Reset()

	return &Session{
		cfg:           cfg,
		state:         Disconnected,
		autoReconnect: cfg.AutoReconnect,
		retry:         retry,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// ClientID returns the identifier presented to the broker.
func (s *Session) ClientID() string {
	return s.cfg.ClientID
}

// KeepAlive returns the configured keep-alive interval.
func (s *Session) KeepAlive() time.Duration {
	return s.cfg.KeepAlive
}

// CommandTimeout returns the bound applied to request/response waits.
func (s *Session) CommandTimeout() time.Duration {
	return s.cfg.CommandTimeout
}

// AutoReconnectEnabled reports whether connection losses trigger
// automatic reconnection.
func (s *Session) AutoReconnectEnabled() bool {
	return s.autoReconnect
}

// SetAutoReconnect enables or disables automatic reconnection. Takes
// effect at the next connection loss; it does not interrupt a reconnect
// already in progress.
func (s *Session) SetAutoReconnect(enabled bool) {
	s.autoReconnect = enabled
}

// ReconnectAttempts returns the number of retries made in the current
// outage. Resets to zero when a connection is established.
func (s *Session) ReconnectAttempts() int {
	return s.attempts
}

// =============================================================================
// Lifecycle transitions
// =============================================================================

// BeginConnect moves the session into Connecting.
//
// Valid from Disconnected, Failed (an explicit caller retry) and
// Reconnecting (an automatic retry). Returns ErrBadTransition from
// Connecting or Connected.
func (s *Session) BeginConnect() error {
	switch s.state {
	case Disconnected, Failed:
		s.wasReconnecting = false
	case Reconnecting:
		s.wasReconnecting = true
	default:
		return fmt.Errorf("%w: connect while %s", ErrBadTransition, s.state)
	}
	s.state = Connecting
	return nil
}

// Establish runs the CONNECT/CONNACK handshake on stream.
//
// The CONNACK wait is bounded by the command timeout. On success the
// session is Connected with fresh keep-alive bookkeeping and the backoff
// state reset. On failure the session lands in Failed, or back in
// Reconnecting when this was an automatic retry with auto-reconnect still
// enabled; closing the stream remains the caller's responsibility.
func (s *Session) Establish(stream transport.Stream) error {
	if s.state != Connecting {
		return fmt.Errorf("%w: establish while %s", ErrBadTransition, s.state)
	}

	now := time.Now()
	keepAliveSeconds := uint16(s.cfg.KeepAlive / time.Second)
	frame, err := packet.EncodeConnect(s.cfg.ClientID, keepAliveSeconds, s.cfg.CleanSession)
	if err != nil {
		s.connectFailed(now)
		return fmt.Errorf("encoding CONNECT: %w", err)
	}
	if _, err := stream.Write(frame); err != nil {
		s.connectFailed(now)
		return fmt.Errorf("%w: sending CONNECT: %w", ErrTransport, err)
	}

	reader := transport.NewDeadlineReader(stream, now.Add(s.cfg.CommandTimeout))
	fh, body, err := packet.ReadPacket(reader)
	if err != nil {
		s.connectFailed(time.Now())
		if errors.Is(err, transport.ErrTimeout) {
			return fmt.Errorf("%w: after %v", ErrConnectTimeout, s.cfg.CommandTimeout)
		}
		if errors.Is(err, packet.ErrMalformed) || errors.Is(err, packet.ErrInvalidFlags) {
			return fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		return fmt.Errorf("%w: reading CONNACK: %w", ErrTransport, err)
	}

	connack, err := packet.DecodeConnack(fh, body)
	if err != nil {
		s.connectFailed(time.Now())
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if connack.ReturnCode != packet.ConnectionAccepted {
		s.connectFailed(time.Now())
		return fmt.Errorf("%w: return code %d", ErrConnectionRejected, connack.ReturnCode)
	}

	s.connectSucceeded(time.Now())
	return nil
}

// connectSucceeded finalises a successful handshake.
func (s *Session) connectSucceeded(now time.Time) {
	s.state = Connected
	s.attempts = 0
	s.retry.Reset()
	s.nextRetryAt = time.Time{}
	s.lastSent = now
	s.lastReceived = now
	s.pingOutstanding = false
	s.wasReconnecting = false
}

// connectFailed decides where a failed handshake lands: back in
// Reconnecting for automatic retries, Failed otherwise.
func (s *Session) connectFailed(now time.Time) {
	if s.wasReconnecting && s.autoReconnect {
		s.state = Reconnecting
		s.scheduleRetry(now)
		return
	}
	s.state = Failed
}

// DialFailed records a connection attempt that failed before the
// handshake, such as a TCP or TLS error. Same landing rules as a failed
// handshake.
func (s *Session) DialFailed(now time.Time) {
	s.connectFailed(now)
}

// GiveUp abandons reconnection, moving the session to Failed. Called when
// the attempt limit is reached.
func (s *Session) GiveUp() {
	s.state = Failed
	s.nextRetryAt = time.Time{}
	s.wasReconnecting = false
}

// ConnectionLost records the loss of an established connection.
//
// With auto-reconnect enabled the session moves to Reconnecting, restarts
// the backoff sequence and schedules the first retry; otherwise it moves
// to Disconnected and the error surfaces to the caller.
//
// Returns the resulting state.
func (s *Session) ConnectionLost(now time.Time) State {
	if s.autoReconnect {
		s.state = Reconnecting
		s.attempts = 0
		s.retry.Reset()
		s.scheduleRetry(now)
	} else {
		s.state = Disconnected
	}
	s.pingOutstanding = false
	return s.state
}

// Disconnect moves the session to Disconnected from any state. Safe to
// call repeatedly.
func (s *Session) Disconnect() {
	s.state = Disconnected
	s.pingOutstanding = false
	s.attempts = 0
	s.retry.Reset()
	s.nextRetryAt = time.Time{}
	s.wasReconnecting = false
}

// =============================================================================
// Reconnect pacing
// =============================================================================

// RetryDue reports whether a reconnect attempt is allowed at instant now.
// Only meaningful in the Reconnecting state.
func (s *Session) RetryDue(now time.Time) bool {
	return s.state == Reconnecting && !now.Before(s.nextRetryAt)
}

// RetryExhausted reports whether the configured attempt limit has been
// reached. Always false with an unlimited (zero) limit.
func (s *Session) RetryExhausted() bool {
	return s.cfg.MaxReconnectAttempts > 0 && s.attempts >= s.cfg.MaxReconnectAttempts
}

// CountAttempt records that a reconnect attempt is starting.
func (s *Session) CountAttempt() {
	s.attempts++
}

// NextRetryIn returns how long until the next reconnect attempt is
// allowed. Zero when one is due (or the session is not reconnecting).
func (s *Session) NextRetryIn(now time.Time) time.Duration {
	if s.state != Reconnecting || !now.Before(s.nextRetryAt) {
		return 0
	}
	return s.nextRetryAt.Sub(now)
}

// scheduleRetry advances the backoff sequence and records when the next
// attempt may run.
func (s *Session) scheduleRetry(now time.Time) {
	s.nextRetryAt = now.Add(s.retry.NextBackOff())
}

// =============================================================================
// Keep-alive bookkeeping
// =============================================================================

// PacketSent records outbound traffic, deferring the next PINGREQ.
func (s *Session) PacketSent(now time.Time) {
	s.lastSent = now
}

// PacketReceived records inbound traffic. Any packet from the broker
// counts as liveness, including PINGRESP.
func (s *Session) PacketReceived(now time.Time) {
	s.lastReceived = now
	s.pingOutstanding = false
}

// PingSent records an outbound PINGREQ.
func (s *Session) PingSent(now time.Time) {
	s.lastSent = now
	s.pingOutstanding = true
}

// PingOutstanding reports whether a PINGREQ is awaiting its PINGRESP.
func (s *Session) PingOutstanding() bool {
	return s.pingOutstanding
}

// KeepAliveDue reports whether a PINGREQ should be sent: the session is
// Connected and a full keep-alive interval has passed with no outbound
// traffic.
func (s *Session) KeepAliveDue(now time.Time) bool {
	if s.state != Connected {
		return false
	}
	return now.Sub(s.lastSent) >= s.cfg.KeepAlive
}

// Expired reports whether the connection must be treated as dead: no
// inbound traffic within 1.5 times the keep-alive interval. The session
// stays Connected only while this is false.
func (s *Session) Expired(now time.Time) bool {
	if s.state != Connected {
		return false
	}
	window := s.cfg.KeepAlive + s.cfg.KeepAlive/2
	return now.Sub(s.lastReceived) > window
}
