// Package session owns the MQTT connection lifecycle: the state machine,
// keep-alive bookkeeping and the reconnect policy.
//
// A Session moves between five states:
//
//	Disconnected → Connecting → Connected
//	                   ↓            ↓
//	                 Failed    Reconnecting (auto-reconnect enabled)
//
// The session performs no background work. All transitions happen on the
// caller's goroutine, driven by the client façade from its connect and
// yield paths. Timer decisions (keep-alive due, liveness expiry, retry
// due) take an explicit instant so the policy stays deterministic under
// test.
//
// Reconnect backoff doubles from the initial delay up to a cap and the
// attempt counter is unbounded by default; a maximum-attempts option turns
// repeated failure terminal. Retry pacing is non-blocking: the session
// records when the next attempt is allowed and the yield loop polls
// RetryDue, so no call ever sleeps on behalf of the caller.
//
// Sessions are not safe for concurrent use from multiple goroutines. This
// is a documented precondition of the cooperative model, not a guarantee
// the package provides.
package session
