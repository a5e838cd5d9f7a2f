// Package client provides the MQTT client façade used by the sample
// applications.
//
// This package manages:
//   - TLS connection establishment and teardown
//   - QoS 0 publishing
//   - Topic subscriptions with per-topic handlers
//   - Cooperative protocol processing via Yield
//   - Automatic and manual reconnection
//
// # Architecture
//
// The client is single-threaded by design: no background goroutines are
// spawned, and all protocol work (keep-alive pings, inbound message
// dispatch, reconnect attempts) happens inside Yield on the caller's
// goroutine. Applications alternate their own work with Yield calls:
//
//	c, err := client.New(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Disconnect()
//
//	err = c.Subscribe("sensors/random-number", 0, func(topic string, payload []byte) error {
//	    log.Printf("received %s on %s", payload, topic)
//	    return nil
//	})
//
//	for {
//	    if err := c.Yield(100 * time.Millisecond); err != nil {
//	        break
//	    }
//	    time.Sleep(time.Second)
//	}
//
// A Client must not be used from multiple goroutines concurrently.
//
// # Security Considerations
//
//   - TLS is mandatory; there is no plaintext transport
//   - Mutual TLS is enabled when a client certificate pair is configured
//   - Certificate verification can only be disabled explicitly (Insecure)
package client
