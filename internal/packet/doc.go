// Package packet implements encoding and decoding of MQTT v3.1.1 control
// packets as used by the client session core.
//
// Only the packet types a clean-session QoS 0 client exchanges are
// implemented: CONNECT/CONNACK, PUBLISH, SUBSCRIBE/SUBACK,
// UNSUBSCRIBE/UNSUBACK, PINGREQ/PINGRESP and DISCONNECT. The wire layout
// follows the MQTT v3.1.1 specification: a fixed header carrying the packet
// type and flags in one byte, a variable-length remaining-length field
// (one to four bytes), then the variable header and payload.
//
// Encoders return complete frames ready to hand to the transport, and
// reject data that does not fit its length field (ErrLengthExceeded) rather
// than emitting a corrupt frame. Decoders operate on the frame body
// returned by ReadPacket and never perform I/O themselves, which keeps all
// read-timeout policy in the caller.
//
// # Usage
//
//	frame, err := packet.EncodePublish("sample/topic", []byte("42"), 0, false)
//	// write frame to the transport...
//
//	fh, body, err := packet.ReadPacket(r)
//	if err == nil && fh.Type == packet.PUBLISH {
//	    pub, err := packet.DecodePublish(fh, body)
//	    ...
//	}
package packet
