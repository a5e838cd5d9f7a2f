// Package dispatch routes incoming PUBLISH messages to registered
// subscription callbacks.
//
// The table maps topic filters to handlers by exact string match; wildcard
// filters are out of scope for this core, which subscribes to concrete
// topics only. Re-registering a filter replaces the previous handler, so
// handlers stay unique per filter.
//
// Handlers run synchronously on the caller's goroutine (the session's
// yield loop). A handler that panics or returns an error is logged and
// contained; one misbehaving handler must never break keep-alive
// processing. The table is not safe for concurrent use — it shares the
// session core's single-threaded cooperative model.
package dispatch
