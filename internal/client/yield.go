package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/session"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// Yield processes protocol housekeeping for up to timeout.
//
// All background work happens here, on the caller's goroutine: keep-alive
// PINGREQs are sent when due, inbound messages are dispatched to their
// handlers, the liveness window is enforced, and reconnect attempts run
// when their backoff delay has elapsed. Applications call Yield regularly
// between their own work; a Yield period longer than half the keep-alive
// interval risks missing the ping window.
//
// Returning without error means the timeout elapsed with the session
// healthy, which includes waiting out a reconnect backoff delay.
//
// Parameters:
//   - ctx: cancels the wait; also bounds reconnect dials
//   - timeout: how long to process before returning
//
// Returns:
//   - error: ErrNotConnected when the session is idle or failed,
//     ErrProtocol on a broker protocol violation, ErrTransport on a
//     connection loss with auto-reconnect disabled, ErrRetriesExhausted
//     when the reconnect attempt limit is reached, or ctx.Err()
func (c *Client) Yield(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	switch c.sess.State() {
	case session.Connected:
		return c.yieldConnected(ctx, deadline)
	case session.Reconnecting:
		return c.yieldReconnecting(ctx)
	default:
		return ErrNotConnected
	}
}

// yieldConnected runs one connected processing pass: liveness check,
// keep-alive ping, then the bounded read loop.
func (c *Client) yieldConnected(ctx context.Context, deadline time.Time) error {
	now := time.Now()
	if c.sess.Expired(now) {
		lossErr := fmt.Errorf("%w: no broker traffic within liveness window", ErrTransport)
		c.handleConnectionLost(lossErr)
		return c.afterLoss(lossErr)
	}

	if c.sess.KeepAliveDue(now) && !c.sess.PingOutstanding() {
		if err := c.sendPing(); err != nil {
			return c.afterLoss(err)
		}
	}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Wait for the first byte of a frame within the Yield window.
		first := make([]byte, 1)
		idle := transport.NewDeadlineReader(c.stream, deadline)
		if _, err := io.ReadFull(idle, first); err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				// Quiet wire until the deadline. The healthy outcome.
				return nil
			}
			lossErr := fmt.Errorf("%w: reading: %w", ErrTransport, err)
			c.handleConnectionLost(lossErr)
			return c.afterLoss(lossErr)
		}

		// A frame already under way gets the command timeout to finish,
		// so one straddling the Yield deadline is not torn down; a frame
		// that stalls past that is a dead connection.
		rest := transport.NewDeadlineReader(c.stream, time.Now().Add(c.opts.CommandTimeout))
		fh, body, err := packet.ReadPacket(io.MultiReader(bytes.NewReader(first), rest))
		if err != nil {
			switch {
			case errors.Is(err, packet.ErrMalformed), errors.Is(err, packet.ErrInvalidFlags):
				return fmt.Errorf("%w: %w", ErrProtocol, err)
			default:
				lossErr := fmt.Errorf("%w: reading: %w", ErrTransport, err)
				c.handleConnectionLost(lossErr)
				return c.afterLoss(lossErr)
			}
		}

		c.sess.PacketReceived(time.Now())
		if c.metrics != nil {
			c.metrics.PacketReceived(fh.Type.String())
		}

		switch fh.Type {
		case packet.PUBLISH:
			pub, err := packet.DecodePublish(fh, body)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrProtocol, err)
			}
			c.table.Route(pub.TopicName, pub.Payload)
		case packet.PINGRESP:
			// PacketReceived above already cleared the outstanding flag.
		default:
			if c.logger != nil {
				c.logger.Warn("ignoring unexpected packet",
					"type", fh.Type.String(),
				)
			}
		}
	}
	return nil
}

// yieldReconnecting runs at most one reconnect attempt, honouring the
// backoff schedule. Failed attempts are absorbed; the next Yield retries.
func (c *Client) yieldReconnecting(ctx context.Context) error {
	if c.sess.RetryExhausted() {
		c.sess.GiveUp()
		return fmt.Errorf("%w: after %d attempts", ErrRetriesExhausted, c.sess.ReconnectAttempts())
	}
	if !c.sess.RetryDue(time.Now()) {
		return nil
	}

	if err := c.AttemptReconnect(ctx); err != nil {
		if errors.Is(err, ErrRetriesExhausted) {
			return err
		}
		if c.logger != nil {
			c.logger.Warn("reconnect attempt failed",
				"error", err,
				"attempts", c.sess.ReconnectAttempts(),
			)
		}
		return nil
	}
	return nil
}

// sendPing writes a PINGREQ and marks it outstanding.
func (c *Client) sendPing() error {
	if _, err := c.stream.Write(packet.EncodePingReq()); err != nil {
		lossErr := fmt.Errorf("%w: sending PINGREQ: %w", ErrTransport, err)
		c.handleConnectionLost(lossErr)
		return lossErr
	}
	c.sess.PingSent(time.Now())
	if c.metrics != nil {
		c.metrics.PacketSent(packet.PINGREQ.String())
	}
	return nil
}

// afterLoss decides whether a connection loss surfaces to the caller.
// With auto-reconnect the session is already Reconnecting and the loss is
// absorbed; the next Yield drives the retry. The loss is also absorbed
// when the disconnect callback reconnected synchronously.
func (c *Client) afterLoss(lossErr error) error {
	switch c.sess.State() {
	case session.Reconnecting, session.Connected:
		return nil
	default:
		return lossErr
	}
}
