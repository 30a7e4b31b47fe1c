// Package http implements the REST control plane: session creation,
// inspection, input, control operations, scrollback, transcripts, and
// observability endpoints. Domain errors map onto HTTP statuses in one
// place (errors.go); streaming happens over WebSocket in the ws package.
package http
