// Package terminal hosts PTY sessions and streams their output.
//
// Each session pairs one shell process with one PTY master handle. The
// handle is owned exclusively by a bridge running on dedicated goroutines:
// a read pump that turns blocking reads into sequenced frames, and an I/O
// loop that services control messages ahead of queued input. Nothing else
// ever touches the file descriptor.
//
// Output fans out to any number of subscribers through per-subscriber
// bounded buffers. A slow subscriber drops its oldest frames and receives a
// single gap marker instead of stalling the producer or other subscribers.
//
// The Manager owns the session table and the lifecycle state machine:
//
//	starting -> running -> {exited, failed}
//	running -> restarting -> running
//	running <-> paused
//
// Exited and failed sessions stay queryable until destroyed explicitly or
// reaped by the retention sweep.
package terminal
