// Package protocol defines the wire envelope exchanged with clients.
//
// All PTY payloads cross the transport as base64 inside a JSON envelope so
// arbitrary binary output (invalid UTF-8, NUL bytes, ANSI escapes) survives
// textual transports losslessly: Decode(Encode(b)) == b for every byte
// sequence.
//
// Message Types:
//   - output: sequenced terminal output frames
//   - gap: synthetic markers for frames dropped on a slow subscriber
//   - input: client input (raw base64, plain text, or a named special key)
//   - control: resize/pause/resume/restart/kill
//   - lifecycle: session state transitions
//   - error: error frames pushed to streaming clients
//
// Marshaling uses bytedance/sonic, which is API-compatible with
// encoding/json.
package protocol
