package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/dispatch"
	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// Subscribe registers a handler for a topic and asks the broker for the
// subscription at QoS 0.
//
// The call blocks until the broker's SUBACK arrives or the command timeout
// elapses. Messages for other subscriptions that arrive while waiting are
// dispatched, not dropped. Subscribing to a topic that already has a
// handler replaces it.
//
// Parameters:
//   - topic: topic filter, non-empty and at most packet.MaxStringLength
//     bytes
//   - qos: must be 0
//   - handler: invoked from Yield for each matching message
//
// Returns:
//   - error: ErrInvalidTopic, ErrUnsupportedQoS, ErrNotConnected,
//     ErrSubscribeRejected when the broker refuses the filter,
//     ErrAckTimeout, ErrTransport or ErrProtocol
func (c *Client) Subscribe(topic string, qos byte, handler dispatch.Handler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > packet.MaxStringLength {
		return fmt.Errorf("%w: topic filter exceeds %d bytes", ErrInvalidTopic, packet.MaxStringLength)
	}
	if qos != 0 {
		return fmt.Errorf("%w: QoS %d", ErrUnsupportedQoS, qos)
	}
	if handler == nil {
		return fmt.Errorf("%w: handler is required", ErrInvalidParams)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := c.sendSubscribe(topic, qos); err != nil {
		return err
	}
	c.table.Add(topic, qos, handler)
	return nil
}

// Unsubscribe removes the handler for a topic and tells the broker to
// stop delivering it. Blocks until the UNSUBACK arrives or the command
// timeout elapses. Unsubscribing from an unknown topic is a no-op.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, ErrAckTimeout,
//     ErrTransport or ErrProtocol
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if !c.table.Has(topic) {
		return nil
	}

	id := c.messageID()
	frame, err := packet.EncodeUnsubscribe(id, topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if err := c.send(frame, packet.UNSUBSCRIBE); err != nil {
		return err
	}

	fh, body, err := c.awaitAck(packet.UNSUBACK, id)
	if err != nil {
		return err
	}
	if _, err := packet.DecodeUnsuback(fh, body); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	c.table.Remove(topic)
	return nil
}

// sendSubscribe performs the SUBSCRIBE/SUBACK exchange without touching
// the dispatch table. Shared between Subscribe and the reconnect replay.
func (c *Client) sendSubscribe(topic string, qos byte) error {
	id := c.messageID()
	frame, err := packet.EncodeSubscribe(id, topic, qos)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if err := c.send(frame, packet.SUBSCRIBE); err != nil {
		return err
	}

	fh, body, err := c.awaitAck(packet.SUBACK, id)
	if err != nil {
		return err
	}
	ack, err := packet.DecodeSuback(fh, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if len(ack.ReturnCodes) != 1 {
		return fmt.Errorf("%w: SUBACK carries %d return codes, want 1", ErrProtocol, len(ack.ReturnCodes))
	}
	if granted := ack.ReturnCodes[0]; granted == packet.SubackFailure || granted > qos {
		return fmt.Errorf("%w: broker granted 0x%02x for %q", ErrSubscribeRejected, granted, topic)
	}
	return nil
}

// awaitAck reads frames until the wanted acknowledgement for messageID
// arrives or the command timeout elapses.
//
// PUBLISH frames that arrive in the meantime are dispatched; PINGRESP
// refreshes the keep-alive bookkeeping. Any transport failure tears the
// connection down.
func (c *Client) awaitAck(want packet.Type, messageID uint16) (*packet.FixedHeader, []byte, error) {
	deadline := time.Now().Add(c.opts.CommandTimeout)

	for {
		reader := transport.NewDeadlineReader(c.stream, deadline)
		fh, body, err := packet.ReadPacket(reader)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrTimeout):
				return nil, nil, fmt.Errorf("%w: waiting for %s", ErrAckTimeout, want)
			case errors.Is(err, packet.ErrMalformed), errors.Is(err, packet.ErrInvalidFlags):
				return nil, nil, fmt.Errorf("%w: %w", ErrProtocol, err)
			default:
				lossErr := fmt.Errorf("%w: waiting for %s: %w", ErrTransport, want, err)
				c.handleConnectionLost(lossErr)
				return nil, nil, lossErr
			}
		}

		c.sess.PacketReceived(time.Now())
		if c.metrics != nil {
			c.metrics.PacketReceived(fh.Type.String())
		}

		switch fh.Type {
		case want:
			if id, ok := ackMessageID(body); ok && id == messageID {
				return fh, body, nil
			}
			return nil, nil, fmt.Errorf("%w: %s for unexpected message ID", ErrProtocol, want)
		case packet.PUBLISH:
			pub, err := packet.DecodePublish(fh, body)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrProtocol, err)
			}
			c.table.Route(pub.TopicName, pub.Payload)
		case packet.PINGRESP:
			// Bookkeeping above is all a PINGRESP needs.
		default:
			if c.logger != nil {
				c.logger.Warn("ignoring unexpected packet while awaiting acknowledgement",
					"got", fh.Type.String(),
					"want", want.String(),
				)
			}
		}
	}
}

// ackMessageID extracts the packet identifier leading a SUBACK or
// UNSUBACK body.
func ackMessageID(body []byte) (uint16, bool) {
	if len(body) < 2 {
		return 0, false
	}
	return uint16(body[0])<<8 | uint16(body[1]), true
}
