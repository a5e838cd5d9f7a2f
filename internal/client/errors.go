package client

import (
	"errors"

	"github.com/ovidiuparvu/iotcore/internal/session"
)

// Domain-specific errors for client operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidParams is returned when the supplied options fail
	// validation: empty host, out-of-range port, or a bad client ID.
	ErrInvalidParams = errors.New("client: invalid parameters")

	// ErrNotConnected is returned when attempting operations on a
	// disconnected client.
	ErrNotConnected = errors.New("client: not connected")

	// ErrUnsupportedQoS is returned when a publish or subscribe requests a
	// quality-of-service level this client does not implement.
	ErrUnsupportedQoS = errors.New("client: unsupported QoS level")

	// ErrSubscribeRejected is returned when the broker refuses a
	// subscription or grants a lower QoS than requested.
	ErrSubscribeRejected = errors.New("client: subscription rejected")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("client: topic cannot be empty")

	// ErrAckTimeout is returned when the broker does not acknowledge a
	// SUBSCRIBE or UNSUBSCRIBE within the command timeout.
	ErrAckTimeout = errors.New("client: acknowledgement timed out")
)

// Session errors surface through the client API unchanged so that callers
// need only import this package.
var (
	// ErrConnectTimeout is returned when the broker does not answer the
	// CONNECT within the command timeout.
	ErrConnectTimeout = session.ErrConnectTimeout

	// ErrConnectionRejected is returned when the broker refuses the
	// connection with a CONNACK error code.
	ErrConnectionRejected = session.ErrConnectionRejected

	// ErrTransport is returned when the TLS connection fails mid-operation.
	ErrTransport = session.ErrTransport

	// ErrProtocol is returned when the broker violates the wire protocol.
	ErrProtocol = session.ErrProtocol

	// ErrRetriesExhausted is returned when the configured reconnect attempt
	// limit is reached.
	ErrRetriesExhausted = session.ErrRetriesExhausted
)
