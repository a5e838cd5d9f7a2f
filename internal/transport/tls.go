package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// tlsMinVersion is the minimum TLS version accepted for broker connections.
const tlsMinVersion = tls.VersionTLS12

// Config describes how to reach the broker and which TLS material to use.
//
// The three file paths are expected to be fully resolved by the caller
// (the sample configuration layer resolves them relative to its cert
// directory). RootCAFile is required; CertFile and KeyFile are optional as
// a pair and enable mutual TLS when both are set.
type Config struct {
	// Host is the broker host name or address.
	Host string

	// Port is the broker TLS listener port (conventionally 8883).
	Port int

	// RootCAFile is the PEM file holding the CA that signed the broker
	// certificate.
	RootCAFile string

	// CertFile is the PEM client certificate for mutual TLS.
	CertFile string

	// KeyFile is the PEM private key matching CertFile.
	KeyFile string

	// ServerName overrides the host name used for certificate
	// verification. Empty means verify against Host.
	ServerName string

	// HandshakeTimeout bounds the TCP connect plus TLS handshake.
	HandshakeTimeout time.Duration

	// Insecure disables broker certificate verification. Development use
	// only.
	Insecure bool
}

// LoadTLSConfig builds a *tls.Config from the PEM files named in cfg.
//
// Returns:
//   - *tls.Config: ready for use with Dial
//   - error: wrapped ErrBadCertificate if any file cannot be read or parsed
func LoadTLSConfig(cfg Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tlsMinVersion,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.RootCAFile != "" {
		pem, err := os.ReadFile(cfg.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading root CA: %w", ErrBadCertificate, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrBadCertificate, cfg.RootCAFile)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client keypair: %w", ErrBadCertificate, err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, fmt.Errorf("%w: client certificate and key must be configured together", ErrBadCertificate)
	}

	return tlsCfg, nil
}
