// Package main is the entry point for the TermStream daemon.
//
// TermStream spawns shells behind pseudo-terminals and streams their output
// to any number of WebSocket subscribers, bridging the PTY's blocking I/O
// to an event-driven API.
//
// The daemon provides:
//   - REST control plane for session lifecycle (create, inspect, control,
//     restart, destroy)
//   - WebSocket data plane with ordered fan-out, scrollback replay, and
//     gap markers for slow consumers
//   - Named profiles, shell allowlisting, transcripts, and lifecycle
//     webhooks
//   - Prometheus metrics, rate limiting, and bearer token auth
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8700
//
//	# Development mode (colored logs, debug level)
//	./server -dev -profiles ./profiles.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (sessions destroyed, subscribers
//     notified)
package main
