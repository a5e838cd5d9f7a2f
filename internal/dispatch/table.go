package dispatch

// Handler is the callback signature for received messages.
//
// Handlers are invoked synchronously from the session's yield loop and
// should not block for extended periods; a blocked handler delays
// keep-alive processing.
//
// Parameters:
//   - topic: the concrete topic the message was published to
//   - payload: the raw message payload, valid only for the duration of
//     the call
//
// Returns:
//   - error: logged but otherwise ignored; it does not affect the session
type Handler func(topic string, payload []byte) error

// Logger is the logging surface the table needs. Compatible with
// *slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subscription holds the registered details for one topic filter.
type subscription struct {
	filter  string
	qos     byte
	handler Handler
}

// Table maps topic filters to handlers and routes inbound messages.
type Table struct {
	subscriptions map[string]subscription
	logger        Logger
}

// NewTable returns an empty dispatch table. The logger may be nil, in
// which case routing diagnostics are dropped.
func NewTable(logger Logger) *Table {
	return &Table{
		subscriptions: make(map[string]subscription),
		logger:        logger,
	}
}

// Add registers a handler for a topic filter. Registering a filter that is
// already present replaces the prior handler.
func (t *Table) Add(filter string, qos byte, handler Handler) {
	t.subscriptions[filter] = subscription{filter: filter, qos: qos, handler: handler}
}

// Remove deletes the registration for a filter. Removing an unknown filter
// is a no-op.
func (t *Table) Remove(filter string) {
	delete(t.subscriptions, filter)
}

// Clear removes every registration. Called on session teardown: with clean
// sessions the broker forgets subscriptions too, so the caller must
// resubscribe after reconnecting.
func (t *Table) Clear() {
	t.subscriptions = make(map[string]subscription)
}

// Count returns the number of registered filters.
func (t *Table) Count() int {
	return len(t.subscriptions)
}

// Has reports whether a handler is registered for the exact filter.
func (t *Table) Has(filter string) bool {
	_, ok := t.subscriptions[filter]
	return ok
}

// Each calls fn once per registered subscription, passing the filter and
// the QoS it was registered with. Iteration order is not defined. Used to
// replay subscriptions to the broker after a reconnect.
func (t *Table) Each(fn func(filter string, qos byte)) {
	for _, sub := range t.subscriptions {
		fn(sub.filter, sub.qos)
	}
}

// Route delivers a message to the handler registered for its topic.
//
// Lookup is by exact match. An unmatched topic is dropped with a
// diagnostic. Handler panics and errors are caught and logged so they
// cannot propagate into the session's control flow.
//
// Returns:
//   - bool: whether a handler was found for the topic
func (t *Table) Route(topic string, payload []byte) bool {
	sub, ok := t.subscriptions[topic]
	if !ok {
		if t.logger != nil {
			t.logger.Warn("dropping message with no matching subscription",
				"topic", topic,
				"payload_len", len(payload),
			)
		}
		return false
	}

	t.invoke(sub, topic, payload)
	return true
}

// invoke runs one handler with panic containment.
func (t *Table) invoke(sub subscription, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if t.logger != nil {
				t.logger.Error("message handler panic recovered",
					"topic", topic,
					"panic", r,
				)
			}
		}
	}()

	if err := sub.handler(topic, payload); err != nil {
		if t.logger != nil {
			t.logger.Warn("message handler returned error",
				"topic", topic,
				"error", err,
			)
		}
	}
}
