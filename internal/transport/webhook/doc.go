// Package webhook delivers lifecycle events to an external HTTP endpoint.
//
// The notifier is a terminal.LifecycleSink: events are enqueued without
// blocking the session lifecycle, a background worker POSTs them with
// retries, and a circuit breaker backs off a failing endpoint. Queue
// overflow drops events and counts the loss rather than growing unboundedly.
package webhook
