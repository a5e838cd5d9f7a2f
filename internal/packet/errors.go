package packet

import "errors"

// Sentinel errors for packet encoding and decoding.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformed indicates a frame that violates the MQTT v3.1.1 wire
	// format. A malformed frame is fatal to the connection it arrived on.
	ErrMalformed = errors.New("packet: malformed packet")

	// ErrInvalidFlags indicates fixed-header flag bits that are reserved
	// for the packet type in question.
	ErrInvalidFlags = errors.New("packet: invalid fixed header flags")

	// ErrLengthExceeded indicates a length limit violation on either side
	// of the codec: an inbound remaining-length field using more than the
	// four bytes the specification allows, or outbound data too large for
	// its length field (a string over MaxStringLength bytes, or a packet
	// body the remaining-length encoding cannot represent).
	ErrLengthExceeded = errors.New("packet: length limit exceeded")
)
