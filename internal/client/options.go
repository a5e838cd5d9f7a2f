package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ovidiuparvu/iotcore/internal/packet"
	"github.com/ovidiuparvu/iotcore/internal/transport"
)

// Connection constants.
const (
	// defaultHandshakeTimeout bounds the TCP connect plus TLS handshake.
	defaultHandshakeTimeout = 5 * time.Second

	// defaultKeepAlive is the keep-alive interval for the connection.
	defaultKeepAlive = 10 * time.Second

	// defaultCommandTimeout bounds synchronous acknowledgement waits
	// (CONNACK, SUBACK, UNSUBACK).
	defaultCommandTimeout = 2 * time.Second

	// clientIDPrefix is prepended to generated client identifiers.
	clientIDPrefix = "iotcore-"
)

// Options configures a Client. The zero value is not usable; Host is
// required and the remaining fields default via New.
type Options struct {
	// Host is the broker host name or address.
	Host string

	// Port is the broker TLS listener port (conventionally 8883).
	Port int

	// ClientID identifies this client to the broker. Generated when empty.
	ClientID string

	// RootCAFile is the PEM file holding the CA that signed the broker
	// certificate.
	RootCAFile string

	// CertFile and KeyFile are the optional mutual-TLS client pair.
	CertFile string
	KeyFile  string

	// ServerName overrides the host name used for certificate
	// verification. Empty means verify against Host.
	ServerName string

	// Insecure disables broker certificate verification. Development use
	// only.
	Insecure bool

	// HandshakeTimeout bounds the TCP connect plus TLS handshake.
	HandshakeTimeout time.Duration

	// KeepAlive is the session keep-alive interval.
	KeepAlive time.Duration

	// CleanSession asks the broker to discard prior session state.
	CleanSession bool

	// CommandTimeout bounds synchronous acknowledgement waits.
	CommandTimeout time.Duration

	// AutoReconnect enables automatic reconnection inside Yield.
	AutoReconnect bool

	// MaxReconnectAttempts limits retries per outage. Zero retries forever.
	MaxReconnectAttempts int

	// ReconnectInitialDelay is the first retry delay; doubles per failed
	// attempt up to ReconnectMaxDelay.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

// withDefaults returns a copy of o with zero fields replaced by the
// package defaults. A missing client ID gets a generated one so that two
// sample applications started from the same config do not collide on the
// broker.
func (o Options) withDefaults() Options {
	if o.ClientID == "" {
		o.ClientID = clientIDPrefix + uuid.NewString()
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = defaultKeepAlive
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	return o
}

// validate checks the options after defaults have been applied.
//
// Returns:
//   - error: wrapped ErrInvalidParams describing the first failing field
func (o Options) validate() error {
	if o.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidParams)
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidParams, o.Port)
	}
	if len(o.ClientID) > packet.MaxClientIDLength {
		return fmt.Errorf("%w: client ID exceeds %d bytes", ErrInvalidParams, packet.MaxClientIDLength)
	}
	return nil
}

// transportConfig maps the options onto the transport layer.
func (o Options) transportConfig() transport.Config {
	return transport.Config{
		Host:             o.Host,
		Port:             o.Port,
		RootCAFile:       o.RootCAFile,
		CertFile:         o.CertFile,
		KeyFile:          o.KeyFile,
		ServerName:       o.ServerName,
		HandshakeTimeout: o.HandshakeTimeout,
		Insecure:         o.Insecure,
	}
}
