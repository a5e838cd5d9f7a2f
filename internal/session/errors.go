package session

import "errors"

// Sentinel errors for session lifecycle operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectTimeout is returned when the broker does not answer the
	// CONNECT request within the command timeout.
	ErrConnectTimeout = errors.New("session: timed out waiting for CONNACK")

	// ErrConnectionRejected is returned when the broker answers CONNECT
	// with a non-zero return code.
	ErrConnectionRejected = errors.New("session: broker rejected connection")

	// ErrTransport indicates an I/O failure mid-session. With
	// auto-reconnect enabled the session absorbs it and moves to
	// Reconnecting; otherwise it surfaces to the caller.
	ErrTransport = errors.New("session: transport failure")

	// ErrProtocol indicates a malformed or unexpected packet from the
	// broker. Always fatal to the current connection.
	ErrProtocol = errors.New("session: protocol violation")

	// ErrBadTransition is returned when a lifecycle operation is invoked
	// from a state that does not permit it.
	ErrBadTransition = errors.New("session: operation not valid in current state")

	// ErrRetriesExhausted is returned when the configured maximum number
	// of reconnect attempts has been reached.
	ErrRetriesExhausted = errors.New("session: reconnect attempts exhausted")
)
