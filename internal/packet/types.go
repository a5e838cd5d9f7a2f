package packet

// Type identifies an MQTT control packet. The value occupies the high
// nibble of the first fixed-header byte.
type Type byte

// MQTT v3.1.1 control packet types (specification section 2.2.1).
const (
	CONNECT     Type = iota + 1 // Client request to connect
	CONNACK                     // Connect acknowledgment
	PUBLISH                     // Publish message
	PUBACK                      // Publish acknowledgment (QoS 1)
	PUBREC                      // Publish received (QoS 2, part 1)
	PUBREL                      // Publish release (QoS 2, part 2)
	PUBCOMP                     // Publish complete (QoS 2, part 3)
	SUBSCRIBE                   // Subscribe request
	SUBACK                      // Subscribe acknowledgment
	UNSUBSCRIBE                 // Unsubscribe request
	UNSUBACK                    // Unsubscribe acknowledgment
	PINGREQ                     // Keep-alive ping request
	PINGRESP                    // Keep-alive ping response
	DISCONNECT                  // Client is disconnecting
)

// typeNames maps packet types to their specification names.
var typeNames = map[Type]string{
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
}

// String returns the specification name of the packet type, or "UNKNOWN"
// for values outside the defined range.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// allowedFlags lists the fixed-header flag bits each packet type may carry.
// PUBLISH uses all four (DUP, QoS, RETAIN); SUBSCRIBE, UNSUBSCRIBE and
// PUBREL require bit 1 set; everything else must be zero.
var allowedFlags = map[Type]byte{
	CONNECT:     0x00,
	CONNACK:     0x00,
	PUBLISH:     0x0F,
	PUBACK:      0x00,
	PUBREC:      0x00,
	PUBREL:      0x02,
	PUBCOMP:     0x00,
	SUBSCRIBE:   0x02,
	SUBACK:      0x00,
	UNSUBSCRIBE: 0x02,
	UNSUBACK:    0x00,
	PINGREQ:     0x00,
	PINGRESP:    0x00,
	DISCONNECT:  0x00,
}

// Protocol constants for MQTT v3.1.1.
const (
	// protocolName is the protocol name carried in the CONNECT variable header.
	protocolName = "MQTT"

	// protocolLevel is the protocol level byte for MQTT v3.1.1.
	protocolLevel = 4

	// MaxStringLength is the ceiling on any length-prefixed UTF-8 string:
	// the two-byte prefix cannot represent more than 65535 bytes, so topic
	// names, topic filters and client identifiers are all bounded by it.
	MaxStringLength = 65535

	// MaxClientIDLength is the ceiling the specification places on a
	// UTF-8 encoded client identifier.
	MaxClientIDLength = MaxStringLength

	// maxRemainingLength is the largest value the four-byte
	// remaining-length encoding can represent.
	maxRemainingLength = 268435455
)

// CONNACK return codes (specification section 3.2.2.3).
const (
	// ConnectionAccepted means the broker accepted the connection.
	ConnectionAccepted byte = 0x00

	// ConnectionRefusedProtocol means the broker does not support the
	// requested protocol level.
	ConnectionRefusedProtocol byte = 0x01

	// ConnectionRefusedIdentifier means the client identifier was rejected.
	ConnectionRefusedIdentifier byte = 0x02

	// ConnectionRefusedUnavailable means the broker is unavailable.
	ConnectionRefusedUnavailable byte = 0x03

	// ConnectionRefusedCredentials means the user name or password was rejected.
	ConnectionRefusedCredentials byte = 0x04

	// ConnectionRefusedNotAuthorized means the client is not authorised.
	ConnectionRefusedNotAuthorized byte = 0x05
)

// SubackFailure is the SUBACK return code indicating the broker refused
// the subscription.
const SubackFailure byte = 0x80

// FixedHeader is the decoded fixed header present in every control packet.
type FixedHeader struct {
	// Type is the control packet type from the high nibble.
	Type Type

	// Flags is the low nibble of the first header byte. For PUBLISH it
	// carries DUP, QoS and RETAIN; for all other types it is reserved.
	Flags byte

	// RemainingLength is the combined length of the variable header and
	// payload that follow the fixed header.
	RemainingLength int
}

// ConnackPacket is the broker's response to a CONNECT request.
type ConnackPacket struct {
	// SessionPresent reports whether the broker resumed a prior session.
	// Always false for clean-session clients.
	SessionPresent bool

	// ReturnCode is ConnectionAccepted on success or one of the
	// ConnectionRefused values.
	ReturnCode byte
}

// PublishPacket is an application message received from the broker.
type PublishPacket struct {
	// TopicName is the concrete topic the message was published to.
	TopicName string

	// Payload is the raw application payload. May be empty.
	Payload []byte

	// QoS is the delivery level from the fixed-header flags.
	QoS byte

	// Dup reports a possible redelivery (QoS > 0 only).
	Dup bool

	// Retain reports that the broker sent this as a retained message.
	Retain bool

	// MessageID is the packet identifier; only present when QoS > 0.
	MessageID uint16
}

// SubackPacket acknowledges a SUBSCRIBE request.
type SubackPacket struct {
	// MessageID correlates the acknowledgment with the SUBSCRIBE request.
	MessageID uint16

	// ReturnCodes holds one granted-QoS code per requested topic filter,
	// or SubackFailure where the broker refused a filter.
	ReturnCodes []byte
}

// UnsubackPacket acknowledges an UNSUBSCRIBE request.
type UnsubackPacket struct {
	// MessageID correlates the acknowledgment with the UNSUBSCRIBE request.
	MessageID uint16
}
