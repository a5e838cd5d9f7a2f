//go:build integration

package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/ovidiuparvu/iotcore/internal/transport/transporttest"
)

// Integration tests running against an embedded broker over real TLS.
//
// Run with:
//   go test -tags=integration -v ./internal/client/...
//
// Note: these tests exercise timing-dependent behaviour (keep-alive,
// reconnection). Consider running with -count=1.

// startBroker runs an embedded broker on a TLS listener bound to a free
// localhost port, returning the port and the generated certificate files.
func startBroker(t *testing.T) (int, transporttest.Files) {
	t.Helper()

	files, err := transporttest.WriteCerts(t.TempDir())
	if err != nil {
		t.Fatalf("generating certificates: %v", err)
	}
	serverCert, err := tls.LoadX509KeyPair(files.ServerCert, files.ServerKey)
	if err != nil {
		t.Fatalf("loading server keypair: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	server := mochi.New(&mochi.Options{})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}
	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tls",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{serverCert},
		},
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}
	go func() {
		if err := server.Serve(); err != nil {
			t.Errorf("broker serve: %v", err)
		}
	}()
	t.Cleanup(func() { server.Close() })

	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)
	return port, files
}

func integrationOptions(port int, files transporttest.Files, clientID string) Options {
	return Options{
		Host:       "localhost",
		Port:       port,
		ClientID:   clientID,
		RootCAFile: files.RootCA,
	}
}

func TestIntegration_PublishSubscribeRoundTrip(t *testing.T) {
	port, files := startBroker(t)

	sub, err := New(integrationOptions(port, files, "iotcore-int-sub"))
	if err != nil {
		t.Fatalf("New(subscriber) error = %v", err)
	}
	if err := sub.Connect(context.Background()); err != nil {
		t.Fatalf("Connect(subscriber) error = %v", err)
	}
	defer sub.Disconnect()

	received := make(chan string, 1)
	err = sub.Subscribe("iotcore/int/round-trip", 0, func(_ string, payload []byte) error {
		select {
		case received <- string(payload):
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pub, err := New(integrationOptions(port, files, "iotcore-int-pub"))
	if err != nil {
		t.Fatalf("New(publisher) error = %v", err)
	}
	if err := pub.Connect(context.Background()); err != nil {
		t.Fatalf("Connect(publisher) error = %v", err)
	}
	defer pub.Disconnect()

	if err := pub.Publish("iotcore/int/round-trip", []byte("hello"), 0, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if err := sub.Yield(context.Background(), 100*time.Millisecond); err != nil {
			t.Fatalf("Yield() error = %v", err)
		}
		select {
		case payload := <-received:
			if payload != "hello" {
				t.Fatalf("payload = %q, want hello", payload)
			}
			return
		case <-deadline:
			t.Fatal("message not delivered within 5s")
		default:
		}
	}
}

func TestIntegration_KeepAliveSurvivesIdle(t *testing.T) {
	port, files := startBroker(t)

	opts := integrationOptions(port, files, "iotcore-int-keepalive")
	opts.KeepAlive = 1 * time.Second

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Disconnect()

	// Idle for several keep-alive intervals; pings sent from Yield must
	// keep the session alive.
	end := time.Now().Add(4 * time.Second)
	for time.Now().Before(end) {
		if err := c.Yield(context.Background(), 200*time.Millisecond); err != nil {
			t.Fatalf("Yield() error = %v", err)
		}
	}
	if !c.IsConnected() {
		t.Error("connection dropped during idle period")
	}
}

func TestIntegration_MutualTLS(t *testing.T) {
	port, files := startBroker(t)

	opts := integrationOptions(port, files, "iotcore-int-mtls")
	opts.CertFile = files.ClientCert
	opts.KeyFile = files.ClientKey

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.Disconnect()
}
