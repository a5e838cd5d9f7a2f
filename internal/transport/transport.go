package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// defaultWriteTimeout bounds blocking writes so a stalled broker cannot
// wedge the cooperative yield loop.
const defaultWriteTimeout = 30 * time.Second

// Stream is a bidirectional byte stream with TLS already established.
//
// All reads are bounded: an indefinite block inside the session core would
// starve keep-alive and reconnect processing, so there is deliberately no
// plain Read method.
type Stream interface {
	// ReadWithTimeout reads up to len(p) bytes, waiting at most timeout.
	// Reaching the deadline returns an error wrapping ErrTimeout.
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)

	// Write sends p, bounded by an internal write deadline.
	Write(p []byte) (int, error)

	// Close tears the stream down. Safe to call more than once.
	Close() error
}

// Conn is a Stream backed by a TLS network connection.
type Conn struct {
	conn net.Conn

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TLS connection to the broker described by cfg.
//
// The TCP connect and TLS handshake together are bounded by
// cfg.HandshakeTimeout (and by ctx, whichever ends first).
//
// Returns:
//   - *Conn: established stream, handshake complete
//   - error: wrapped ErrBadCertificate or ErrDialFailed
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	tlsCfg, err := LoadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    tlsCfg,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, addr, err)
	}

	return NewConn(conn), nil
}

// NewConn wraps an established network connection. Exposed so tests can
// drive the session core over an in-memory pipe.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// ReadWithTimeout reads up to len(p) bytes, waiting at most timeout.
//
// A deadline hit maps to ErrTimeout so callers can distinguish an idle
// connection from a broken one with errors.Is.
func (c *Conn) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("setting read deadline: %w", err)
	}

	n, err := c.conn.Read(p)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return n, fmt.Errorf("%w: after %v", ErrTimeout, timeout)
		}
		return n, err
	}
	return n, nil
}

// Write sends p with the default write deadline applied.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return 0, fmt.Errorf("setting write deadline: %w", err)
	}
	return c.conn.Write(p)
}

// Close closes the underlying connection. Subsequent calls return the
// first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// DeadlineReader adapts a Stream to io.Reader with an absolute deadline
// shared across reads, which is what the packet decoder needs to read one
// frame without ever blocking past the caller's budget.
//
// BytesRead distinguishes "deadline hit while idle" (zero bytes consumed,
// a clean timeout) from "deadline hit mid-frame" (a truncated packet, which
// is a transport failure).
type DeadlineReader struct {
	stream   Stream
	deadline time.Time
	n        int
}

// NewDeadlineReader returns a reader over stream whose reads collectively
// finish by deadline.
func NewDeadlineReader(stream Stream, deadline time.Time) *DeadlineReader {
	return &DeadlineReader{stream: stream, deadline: deadline}
}

// Read implements io.Reader. Once the deadline passes every call returns
// ErrTimeout.
func (r *DeadlineReader) Read(p []byte) (int, error) {
	remaining := time.Until(r.deadline)
	if remaining <= 0 {
		return 0, ErrTimeout
	}
	n, err := r.stream.ReadWithTimeout(p, remaining)
	r.n += n
	return n, err
}

// BytesRead reports how many bytes have been consumed through this reader.
func (r *DeadlineReader) BytesRead() int {
	return r.n
}
