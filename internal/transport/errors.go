package transport

import "errors"

// Sentinel errors for transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout indicates a read that reached its deadline before any
	// further bytes arrived. A timeout is not a connection failure; the
	// caller decides whether to retry.
	ErrTimeout = errors.New("transport: read timed out")

	// ErrClosed indicates an operation on a stream that has been closed.
	ErrClosed = errors.New("transport: stream closed")

	// ErrDialFailed indicates the TCP connect or TLS handshake failed.
	ErrDialFailed = errors.New("transport: dial failed")

	// ErrBadCertificate indicates TLS material that could not be loaded
	// or parsed.
	ErrBadCertificate = errors.New("transport: invalid TLS material")
)
