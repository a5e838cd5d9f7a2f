package packet

import (
	"bytes"
	"errors"
	"testing"
)

// =============================================================================
// ReadPacket Tests
// =============================================================================

func TestReadPacketValidatesFlags(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{
			name:    "reserved flags on PINGRESP",
			frame:   []byte{byte(PINGRESP)<<4 | 0x01, 0x00},
			wantErr: ErrInvalidFlags,
		},
		{
			name:    "reserved flags on CONNACK",
			frame:   []byte{byte(CONNACK)<<4 | 0x08, 0x02, 0x00, 0x00},
			wantErr: ErrInvalidFlags,
		},
		{
			name:    "unknown packet type zero",
			frame:   []byte{0x00, 0x00},
			wantErr: ErrMalformed,
		},
		{
			name:    "unknown packet type fifteen",
			frame:   []byte{0xF0, 0x00},
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadPacket(bytes.NewReader(tt.frame))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadPacket() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadPacketAllowsPublishFlags(t *testing.T) {
	// DUP+QoS1+RETAIN is a legal flag combination for PUBLISH.
	frame := []byte{byte(PUBLISH)<<4 | 0x0B, 0x08, 0x00, 0x03, 'a', '/', 'b', 0x00, 0x01, 'x'}

	fh, body, err := ReadPacket(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadPacket() error = %v", err)
	}
	if fh.Type != PUBLISH {
		t.Errorf("type = %v, want PUBLISH", fh.Type)
	}
	if len(body) != 8 {
		t.Errorf("body length = %d, want 8", len(body))
	}
}

func TestReadPacketTruncatedBody(t *testing.T) {
	// Remaining length claims 5 bytes but only 2 follow.
	frame := []byte{byte(PINGRESP) << 4, 0x05, 0x01, 0x02}

	_, _, err := ReadPacket(bytes.NewReader(frame))
	if err == nil {
		t.Fatal("ReadPacket() expected error for truncated body")
	}
}

func TestDecodeRemainingLengthOverflow(t *testing.T) {
	// Four continuation bytes in a row exceed the encoding limit.
	_, err := DecodeRemainingLength(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x01}))
	if !errors.Is(err, ErrLengthExceeded) {
		t.Errorf("DecodeRemainingLength() error = %v, want ErrLengthExceeded", err)
	}
}

// =============================================================================
// CONNACK Tests
// =============================================================================

func TestDecodeConnack(t *testing.T) {
	tests := []struct {
		name           string
		body           []byte
		wantPresent    bool
		wantReturnCode byte
		wantErr        bool
	}{
		{
			name:           "accepted clean session",
			body:           []byte{0x00, ConnectionAccepted},
			wantPresent:    false,
			wantReturnCode: ConnectionAccepted,
		},
		{
			name:           "accepted session present",
			body:           []byte{0x01, ConnectionAccepted},
			wantPresent:    true,
			wantReturnCode: ConnectionAccepted,
		},
		{
			name:           "refused identifier",
			body:           []byte{0x00, ConnectionRefusedIdentifier},
			wantReturnCode: ConnectionRefusedIdentifier,
		},
		{
			name:    "short body",
			body:    []byte{0x00},
			wantErr: true,
		},
		{
			name:    "long body",
			body:    []byte{0x00, 0x00, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &FixedHeader{Type: CONNACK, RemainingLength: len(tt.body)}

			connack, err := DecodeConnack(fh, tt.body)
			if tt.wantErr {
				if err == nil {
					t.Fatal("DecodeConnack() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeConnack() error = %v", err)
			}
			if connack.SessionPresent != tt.wantPresent {
				t.Errorf("SessionPresent = %v, want %v", connack.SessionPresent, tt.wantPresent)
			}
			if connack.ReturnCode != tt.wantReturnCode {
				t.Errorf("ReturnCode = %d, want %d", connack.ReturnCode, tt.wantReturnCode)
			}
		})
	}
}

func TestDecodeConnackWrongType(t *testing.T) {
	fh := &FixedHeader{Type: SUBACK}
	if _, err := DecodeConnack(fh, []byte{0x00, 0x00}); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeConnack() error = %v, want ErrMalformed", err)
	}
}

// =============================================================================
// PUBLISH Tests
// =============================================================================

func TestDecodePublishQoS1MessageID(t *testing.T) {
	// Topic "a/b", packet identifier 0x0102, payload "x".
	body := []byte{0x00, 0x03, 'a', '/', 'b', 0x01, 0x02, 'x'}
	fh := &FixedHeader{Type: PUBLISH, Flags: 0x02, RemainingLength: len(body)}

	pub, err := DecodePublish(fh, body)
	if err != nil {
		t.Fatalf("DecodePublish() error = %v", err)
	}
	if pub.QoS != 1 {
		t.Errorf("QoS = %d, want 1", pub.QoS)
	}
	if pub.MessageID != 0x0102 {
		t.Errorf("MessageID = %#x, want 0x0102", pub.MessageID)
	}
	if !bytes.Equal(pub.Payload, []byte("x")) {
		t.Errorf("payload = %#v, want \"x\"", pub.Payload)
	}
}

func TestDecodePublishMalformed(t *testing.T) {
	tests := []struct {
		name  string
		flags byte
		body  []byte
	}{
		{
			name:  "reserved qos 3",
			flags: 0x06,
			body:  []byte{0x00, 0x01, 'a'},
		},
		{
			name:  "truncated topic",
			flags: 0x00,
			body:  []byte{0x00, 0x05, 'a'},
		},
		{
			name:  "qos 1 without message id",
			flags: 0x02,
			body:  []byte{0x00, 0x01, 'a'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &FixedHeader{Type: PUBLISH, Flags: tt.flags, RemainingLength: len(tt.body)}
			if _, err := DecodePublish(fh, tt.body); !errors.Is(err, ErrMalformed) {
				t.Errorf("DecodePublish() error = %v, want ErrMalformed", err)
			}
		})
	}
}

// =============================================================================
// SUBACK / UNSUBACK Tests
// =============================================================================

func TestDecodeSuback(t *testing.T) {
	body := []byte{0x00, 0x2A, 0x00}
	fh := &FixedHeader{Type: SUBACK, RemainingLength: len(body)}

	suback, err := DecodeSuback(fh, body)
	if err != nil {
		t.Fatalf("DecodeSuback() error = %v", err)
	}
	if suback.MessageID != 42 {
		t.Errorf("MessageID = %d, want 42", suback.MessageID)
	}
	if len(suback.ReturnCodes) != 1 || suback.ReturnCodes[0] != 0x00 {
		t.Errorf("ReturnCodes = %#v, want [0x00]", suback.ReturnCodes)
	}
}

func TestDecodeSubackFailureCode(t *testing.T) {
	body := []byte{0x00, 0x01, SubackFailure}
	fh := &FixedHeader{Type: SUBACK, RemainingLength: len(body)}

	suback, err := DecodeSuback(fh, body)
	if err != nil {
		t.Fatalf("DecodeSuback() error = %v", err)
	}
	if suback.ReturnCodes[0] != SubackFailure {
		t.Errorf("ReturnCodes[0] = %#x, want %#x", suback.ReturnCodes[0], SubackFailure)
	}
}

func TestDecodeSubackShortBody(t *testing.T) {
	fh := &FixedHeader{Type: SUBACK, RemainingLength: 2}
	if _, err := DecodeSuback(fh, []byte{0x00, 0x01}); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeSuback() error = %v, want ErrMalformed", err)
	}
}

func TestDecodeUnsuback(t *testing.T) {
	fh := &FixedHeader{Type: UNSUBACK, RemainingLength: 2}

	unsuback, err := DecodeUnsuback(fh, []byte{0x00, 0x07})
	if err != nil {
		t.Fatalf("DecodeUnsuback() error = %v", err)
	}
	if unsuback.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", unsuback.MessageID)
	}
}

// =============================================================================
// Packet Type Tests
// =============================================================================

func TestTypeString(t *testing.T) {
	if CONNECT.String() != "CONNECT" {
		t.Errorf("CONNECT.String() = %q", CONNECT.String())
	}
	if PINGRESP.String() != "PINGRESP" {
		t.Errorf("PINGRESP.String() = %q", PINGRESP.String())
	}
	if Type(15).String() != "UNKNOWN" {
		t.Errorf("Type(15).String() = %q, want UNKNOWN", Type(15).String())
	}
}
