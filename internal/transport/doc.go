// Package transport provides the TLS byte stream the MQTT session core
// runs over.
//
// This package manages:
//   - Loading TLS material (root CA, client certificate, client key) from
//     PEM files, treated as opaque bytes up to crypto/tls
//   - Dialling the broker with a bounded TCP connect plus TLS handshake
//   - Read operations bounded by a caller-supplied timeout, so the session
//     core's cooperative yield loop can never block indefinitely
//
// The Stream interface is the seam the session core depends on; tests
// substitute an in-memory pipe for the real TLS connection.
//
// # Security Considerations
//
//   - TLS 1.2 is the minimum accepted protocol version
//   - Hostname verification is on by default; Insecure exists for
//     development brokers only
//   - Mutual TLS is used when a client certificate and key are configured
package transport
