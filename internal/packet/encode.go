package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeConnect builds a CONNECT frame for a clean or resumed session.
//
// The variable header carries the protocol name "MQTT", protocol level 4,
// the connect flags and the keep-alive interval in seconds; the payload is
// the client identifier. Authentication is certificate-based at the
// transport layer, so the user name and password fields are never set.
//
// Parameters:
//   - clientID: unique client identifier (non-empty, ≤ MaxClientIDLength bytes)
//   - keepAliveSeconds: keep-alive interval advertised to the broker
//   - cleanSession: whether the broker should discard prior session state
//
// Returns:
//   - []byte: the complete frame
//   - error: ErrLengthExceeded when the client identifier does not fit its
//     length prefix
func EncodeConnect(clientID string, keepAliveSeconds uint16, cleanSession bool) ([]byte, error) {
	var vh bytes.Buffer
	writeString(&vh, protocolName)
	vh.WriteByte(protocolLevel)

	var flags byte
	if cleanSession {
		flags |= 0x02
	}
	vh.WriteByte(flags)

	keepAlive := make([]byte, 2)
	binary.BigEndian.PutUint16(keepAlive, keepAliveSeconds)
	vh.Write(keepAlive)

	if len(clientID) > MaxClientIDLength {
		return nil, fmt.Errorf("%w: client identifier of %d bytes", ErrLengthExceeded, len(clientID))
	}
	writeString(&vh, clientID)

	return frame(CONNECT, 0, vh.Bytes())
}

// EncodePublish builds a PUBLISH frame.
//
// For QoS 0 the variable header is just the topic name, so the remaining
// length is len(topic)+2+len(payload). For QoS > 0 a packet identifier
// would follow the topic; this codec only emits QoS 0 frames and callers
// enforce that before reaching it.
//
// Returns:
//   - []byte: the complete frame
//   - error: ErrLengthExceeded when the topic exceeds MaxStringLength bytes
//     or the packet body exceeds the remaining-length ceiling
func EncodePublish(topic string, payload []byte, qos byte, retain bool) ([]byte, error) {
	if len(topic) > MaxStringLength {
		return nil, fmt.Errorf("%w: topic of %d bytes", ErrLengthExceeded, len(topic))
	}

	var vh bytes.Buffer
	writeString(&vh, topic)
	vh.Write(payload)

	flags := qos << 1
	if retain {
		flags |= 0x01
	}
	return frame(PUBLISH, flags, vh.Bytes())
}

// EncodeSubscribe builds a SUBSCRIBE frame for a single topic filter.
//
// The fixed-header flags are 0x02 as the specification requires. The
// payload is the topic filter followed by the requested QoS.
//
// Returns:
//   - []byte: the complete frame
//   - error: ErrLengthExceeded when the filter exceeds MaxStringLength bytes
func EncodeSubscribe(messageID uint16, topic string, qos byte) ([]byte, error) {
	if len(topic) > MaxStringLength {
		return nil, fmt.Errorf("%w: topic filter of %d bytes", ErrLengthExceeded, len(topic))
	}

	var vh bytes.Buffer

	id := make([]byte, 2)
	binary.BigEndian.PutUint16(id, messageID)
	vh.Write(id)

	writeString(&vh, topic)
	vh.WriteByte(qos)

	return frame(SUBSCRIBE, 0x02, vh.Bytes())
}

// EncodeUnsubscribe builds an UNSUBSCRIBE frame for a single topic filter.
//
// Returns:
//   - []byte: the complete frame
//   - error: ErrLengthExceeded when the filter exceeds MaxStringLength bytes
func EncodeUnsubscribe(messageID uint16, topic string) ([]byte, error) {
	if len(topic) > MaxStringLength {
		return nil, fmt.Errorf("%w: topic filter of %d bytes", ErrLengthExceeded, len(topic))
	}

	var vh bytes.Buffer

	id := make([]byte, 2)
	binary.BigEndian.PutUint16(id, messageID)
	vh.Write(id)

	writeString(&vh, topic)

	return frame(UNSUBSCRIBE, 0x02, vh.Bytes())
}

// EncodePingReq builds a PINGREQ frame. The frame has no variable header
// or payload.
func EncodePingReq() []byte {
	return []byte{byte(PINGREQ) << 4, 0x00}
}

// EncodeDisconnect builds a DISCONNECT frame.
func EncodeDisconnect() []byte {
	return []byte{byte(DISCONNECT) << 4, 0x00}
}

// EncodeRemainingLength encodes a remaining-length value using the
// variable-length scheme from specification section 2.2.3: seven value bits
// per byte, high bit set while more bytes follow. A zero value encodes as
// a single zero byte.
func EncodeRemainingLength(x int) []byte {
	if x == 0 {
		return []byte{0x00}
	}
	var buf [4]byte
	i := 0
	for x > 0 && i < 4 {
		buf[i] = byte(x % 128)
		if x /= 128; x > 0 {
			buf[i] |= 0x80
		}
		i++
	}
	return buf[:i]
}

// frame assembles a complete control packet from its type, flags and body.
// Bodies larger than the four-byte remaining-length encoding can represent
// are rejected rather than silently truncated.
func frame(t Type, flags byte, body []byte) ([]byte, error) {
	if len(body) > maxRemainingLength {
		return nil, fmt.Errorf("%w: packet body of %d bytes", ErrLengthExceeded, len(body))
	}
	out := make([]byte, 0, 2+len(body)+3)
	out = append(out, byte(t)<<4|flags&0x0F)
	out = append(out, EncodeRemainingLength(len(body))...)
	out = append(out, body...)
	return out, nil
}

// writeString appends a length-prefixed UTF-8 string as defined in
// specification section 1.5.3. Callers bound the string length first.
func writeString(buf *bytes.Buffer, s string) {
	length := make([]byte, 2)
	binary.BigEndian.PutUint16(length, uint16(len(s)))
	buf.Write(length)
	buf.WriteString(s)
}
