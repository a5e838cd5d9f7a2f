package session

// State is the connection lifecycle state of a Session.
type State int

// Lifecycle states. Disconnected is the initial state; Failed is terminal
// until the caller explicitly retries.
const (
	// Disconnected means no transport is open and no reconnect is pending.
	Disconnected State = iota

	// Connecting means a CONNECT has been sent (or is about to be) and the
	// session is waiting for CONNACK.
	Connecting

	// Connected means the broker accepted the connection and traffic has
	// been seen within the liveness window.
	Connected

	// Reconnecting means the connection was lost with auto-reconnect
	// enabled and retry attempts are being paced by the backoff policy.
	Reconnecting

	// Failed means a connect attempt was rejected or timed out and
	// auto-reconnect did not apply.
	Failed
)

// stateNames maps states to their display names.
var stateNames = map[State]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Reconnecting: "reconnecting",
	Failed:       "failed",
}

// String returns the lowercase display name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
