// Package ws provides the WebSocket data plane for session streams.
//
// Each connection on GET /sessions/:id/stream is one subscriber: buffered
// scrollback is replayed first, then sequenced output frames, gap markers,
// and lifecycle events flow out in order. Clients send input and control
// frames on the same connection.
//
// Message Types (Server → Client):
//   - output: sequenced base64 output chunk (replay flag for scrollback)
//   - gap: frames dropped for this subscriber, with the resume sequence
//   - lifecycle: session state transition
//   - error: a client frame was rejected (connection stays up)
//
// Message Types (Client → Server):
//   - input: bytes (base64), text, or a named special key
//   - control: resize, pause, resume, restart, kill
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, logger, metrics)
//	router.GET("/sessions/:id/stream", handler.Stream)
package ws
