package client

import (
	"fmt"

	"github.com/ovidiuparvu/iotcore/internal/packet"
)

// Publish sends a message to a topic at QoS 0.
//
// QoS 0 is fire-and-forget: success means the frame was handed to the
// transport, not that the broker received it. Higher QoS levels are not
// implemented and return ErrUnsupportedQoS.
//
// Parameters:
//   - topic: destination topic, non-empty and at most
//     packet.MaxStringLength bytes
//   - payload: raw message bytes, may be empty
//   - qos: must be 0
//   - retain: ask the broker to retain the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrUnsupportedQoS, ErrNotConnected,
//     ErrInvalidParams when the frame cannot be encoded, or ErrTransport
//     when the write fails
func (c *Client) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > packet.MaxStringLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, packet.MaxStringLength)
	}
	if qos != 0 {
		return fmt.Errorf("%w: QoS %d", ErrUnsupportedQoS, qos)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	frame, err := packet.EncodePublish(topic, payload, qos, retain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return c.send(frame, packet.PUBLISH)
}
