package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadPacket reads exactly one control packet from r and returns its fixed
// header together with the frame body (variable header plus payload).
//
// The read blocks until a complete frame arrives or r fails; callers bound
// it by applying a deadline to the underlying stream. Flag bits are
// validated against the packet type before the body is returned, so a
// malformed frame never reaches the per-type decoders.
func ReadPacket(r io.Reader) (*FixedHeader, []byte, error) {
	first := make([]byte, 1)
	if _, err := io.ReadFull(r, first); err != nil {
		return nil, nil, err
	}

	remaining, err := DecodeRemainingLength(r)
	if err != nil {
		return nil, nil, err
	}

	body := make([]byte, remaining)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	fh := &FixedHeader{
		Type:            Type(first[0] >> 4),
		Flags:           first[0] & 0x0F,
		RemainingLength: remaining,
	}

	allowed, known := allowedFlags[fh.Type]
	if !known {
		return nil, nil, fmt.Errorf("%w: unknown packet type %d", ErrMalformed, first[0]>>4)
	}
	if fh.Flags & ^allowed != 0 {
		return nil, nil, fmt.Errorf("%w: flags %#x on %s packet", ErrInvalidFlags, fh.Flags, fh.Type)
	}

	return fh, body, nil
}

// DecodeRemainingLength reads the variable-length remaining-length field.
// The encoding uses at most four bytes; a fourth byte with the continuation
// bit set is a protocol violation and returns ErrLengthExceeded.
func DecodeRemainingLength(r io.Reader) (int, error) {
	multiplier := 1
	value := 0
	b := make([]byte, 1)
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, err
		}
		value += int(b[0]&0x7F) * multiplier
		multiplier *= 128
		if b[0]&0x80 == 0 {
			return value, nil
		}
	}
	return 0, ErrLengthExceeded
}

// DecodeConnack decodes a CONNACK frame body.
func DecodeConnack(fh *FixedHeader, body []byte) (*ConnackPacket, error) {
	if fh.Type != CONNACK {
		return nil, fmt.Errorf("%w: expected CONNACK, got %s", ErrMalformed, fh.Type)
	}
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: CONNACK remaining length %d, want 2", ErrMalformed, len(body))
	}
	return &ConnackPacket{
		SessionPresent: body[0]&0x01 == 1,
		ReturnCode:     body[1],
	}, nil
}

// DecodePublish decodes a PUBLISH frame body.
//
// QoS, DUP and RETAIN come from the fixed-header flags. For QoS > 0 the
// two-byte packet identifier that follows the topic name is consumed into
// MessageID so the payload boundary stays correct even when a broker sends
// a higher QoS than this client ever requests.
func DecodePublish(fh *FixedHeader, body []byte) (*PublishPacket, error) {
	if fh.Type != PUBLISH {
		return nil, fmt.Errorf("%w: expected PUBLISH, got %s", ErrMalformed, fh.Type)
	}

	p := &PublishPacket{
		Dup:    fh.Flags&0x08 != 0,
		QoS:    fh.Flags >> 1 & 0x03,
		Retain: fh.Flags&0x01 != 0,
	}
	if p.QoS == 3 {
		return nil, fmt.Errorf("%w: PUBLISH with reserved QoS 3", ErrMalformed)
	}

	topic, offset, err := readString(body, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: PUBLISH topic: %w", ErrMalformed, err)
	}
	p.TopicName = topic

	if p.QoS > 0 {
		if len(body) < offset+2 {
			return nil, fmt.Errorf("%w: PUBLISH missing packet identifier", ErrMalformed)
		}
		p.MessageID = binary.BigEndian.Uint16(body[offset : offset+2])
		offset += 2
	}

	p.Payload = body[offset:]
	return p, nil
}

// DecodeSuback decodes a SUBACK frame body.
func DecodeSuback(fh *FixedHeader, body []byte) (*SubackPacket, error) {
	if fh.Type != SUBACK {
		return nil, fmt.Errorf("%w: expected SUBACK, got %s", ErrMalformed, fh.Type)
	}
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: SUBACK remaining length %d, want >= 3", ErrMalformed, len(body))
	}
	return &SubackPacket{
		MessageID:   binary.BigEndian.Uint16(body[0:2]),
		ReturnCodes: body[2:],
	}, nil
}

// DecodeUnsuback decodes an UNSUBACK frame body.
func DecodeUnsuback(fh *FixedHeader, body []byte) (*UnsubackPacket, error) {
	if fh.Type != UNSUBACK {
		return nil, fmt.Errorf("%w: expected UNSUBACK, got %s", ErrMalformed, fh.Type)
	}
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: UNSUBACK remaining length %d, want 2", ErrMalformed, len(body))
	}
	return &UnsubackPacket{MessageID: binary.BigEndian.Uint16(body[0:2])}, nil
}

// readString reads a length-prefixed UTF-8 string from b at offset and
// returns the string together with the offset just past it.
func readString(b []byte, offset int) (string, int, error) {
	if len(b) < offset+2 {
		return "", 0, fmt.Errorf("buffer too short for string length")
	}
	length := int(binary.BigEndian.Uint16(b[offset : offset+2]))
	offset += 2
	if len(b) < offset+length {
		return "", 0, fmt.Errorf("string length %d exceeds buffer", length)
	}
	return string(b[offset : offset+length]), offset + length, nil
}
