package client

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// fakeBroker speaks just enough of the wire protocol over an in-memory
// pipe to script broker behaviour for one connection.
//
// All methods run on the script goroutine and report failures with
// t.Errorf, which is safe off the test goroutine.
type fakeBroker struct {
	t    *testing.T
	conn net.Conn
}

// readPacket reads one frame, failing the test on error.
func (b *fakeBroker) readPacket() (*packet.FixedHeader, []byte, bool) {
	fh, body, err := packet.ReadPacket(b.conn)
	if err != nil {
		b.t.Errorf("broker: reading packet: %v", err)
		return nil, nil, false
	}
	return fh, body, true
}

// expect reads one frame and checks its type.
func (b *fakeBroker) expect(want packet.Type) (*packet.FixedHeader, []byte, bool) {
	fh, body, ok := b.readPacket()
	if !ok {
		return nil, nil, false
	}
	if fh.Type != want {
		b.t.Errorf("broker: got %s, want %s", fh.Type, want)
		return nil, nil, false
	}
	return fh, body, true
}

func (b *fakeBroker) write(frame []byte) {
	if _, err := b.conn.Write(frame); err != nil {
		b.t.Errorf("broker: writing: %v", err)
	}
}

// acceptConnect consumes the CONNECT and replies with an accepting
// CONNACK.
func (b *fakeBroker) acceptConnect() bool {
	if _, _, ok := b.expect(packet.CONNECT); !ok {
		return false
	}
	b.write([]byte{0x20, 0x02, 0x00, packet.ConnectionAccepted})
	return true
}

// refuseConnect consumes the CONNECT and replies with a refusing CONNACK.
func (b *fakeBroker) refuseConnect(code byte) {
	if _, _, ok := b.expect(packet.CONNECT); !ok {
		return
	}
	b.write([]byte{0x20, 0x02, 0x00, code})
}

// grantSubscribe consumes a SUBSCRIBE and acknowledges it with the given
// return code, echoing the request's message ID.
func (b *fakeBroker) grantSubscribe(code byte) {
	_, body, ok := b.expect(packet.SUBSCRIBE)
	if !ok {
		return
	}
	b.write([]byte{0x90, 0x03, body[0], body[1], code})
}

// ackUnsubscribe consumes an UNSUBSCRIBE and acknowledges it.
func (b *fakeBroker) ackUnsubscribe() {
	_, body, ok := b.expect(packet.UNSUBSCRIBE)
	if !ok {
		return
	}
	b.write([]byte{0xB0, 0x02, body[0], body[1]})
}

// sendPublish pushes a QoS 0 message at the client.
func (b *fakeBroker) sendPublish(topic string, payload []byte) {
	frame, err := packet.EncodePublish(topic, payload, 0, false)
	if err != nil {
		b.t.Errorf("broker: encoding PUBLISH: %v", err)
		return
	}
	b.write(frame)
}

func (b *fakeBroker) sendPingResp() {
	b.write([]byte{0xD0, 0x00})
}

// drain consumes frames until the client closes its end, so that client
// writes never block on an unread pipe.
func (b *fakeBroker) drain() {
	_, _ = io.Copy(io.Discard, b.conn)
}

// script is one broker conversation; it runs on its own goroutine per
// accepted dial.
type script func(b *fakeBroker)

// newTestClient builds a Client whose dial seam hands out in-memory pipes
// scripted by the given conversations, one per dial in order. Dialing
// more times than there are scripts fails the test.
func newTestClient(t *testing.T, opts Options, scripts ...script) (*Client, *sync.WaitGroup) {
	t.Helper()

	if opts.Host == "" {
		opts.Host = "broker.test"
	}
	if opts.Port == 0 {
		opts.Port = 8883
	}
	if opts.ClientID == "" {
		opts.ClientID = "tester"
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = 500 * time.Millisecond
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	dials := 0
	c.dial = func(_ context.Context, _ transport.Config) (transport.Stream, error) {
		if dials >= len(scripts) {
			t.Errorf("unexpected dial %d, only %d scripts provided", dials+1, len(scripts))
			return nil, ErrNotConnected
		}
		run := scripts[dials]
		dials++

		clientEnd, brokerEnd := net.Pipe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer brokerEnd.Close()
			run(&fakeBroker{t: t, conn: brokerEnd})
		}()
		return transport.NewConn(clientEnd), nil
	}

	return c, &wg
}
