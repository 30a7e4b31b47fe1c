package protocol

import (
	"time"
)

// Message type tags. Exactly one payload field on Message is set, selected
// by Type.
const (
	TypeOutput    = "output"
	TypeGap       = "gap"
	TypeInput     = "input"
	TypeControl   = "control"
	TypeLifecycle = "lifecycle"
	TypeError     = "error"
)

// Control message types.
const (
	ControlResize  = "resize"
	ControlPause   = "pause"
	ControlResume  = "resume"
	ControlRestart = "restart"
	ControlKill    = "kill"
)

// Lifecycle event names.
const (
	EventCreated   = "created"
	EventRunning   = "running"
	EventResized   = "resized"
	EventPaused    = "paused"
	EventResumed   = "resumed"
	EventRestarted = "restarted"
	EventExited    = "exited"
	EventFailed    = "failed"
	EventDestroyed = "destroyed"
)

// Message is the tagged wire envelope.
type Message struct {
	Type      string          `json:"type"`
	Output    *OutputFrame    `json:"output,omitempty"`
	Gap       *GapMarker      `json:"gap,omitempty"`
	Input     *InputFrame     `json:"input,omitempty"`
	Control   *ControlMessage `json:"control,omitempty"`
	Lifecycle *LifecycleEvent `json:"lifecycle,omitempty"`
	Error     *ErrorFrame     `json:"error,omitempty"`
}

// OutputFrame carries one sequenced chunk of terminal output. Payload is
// base64. Replay frames carry scrollback history delivered to a freshly
// attached subscriber; their Seq is the sequence live delivery resumes at.
type OutputFrame struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Payload   string    `json:"payload"`
	Replay    bool      `json:"replay,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// GapMarker reports frames dropped for a slow subscriber. ResumeSeq is the
// sequence number of the next frame the subscriber will receive.
type GapMarker struct {
	SessionID string    `json:"session_id"`
	Dropped   uint64    `json:"dropped"`
	ResumeSeq uint64    `json:"resume_seq"`
	Timestamp time.Time `json:"ts"`
}

// InputFrame carries client input. Exactly one of Data (base64 bytes), Text
// (plain UTF-8), or Key (a named special key, see keys.go) must be set.
type InputFrame struct {
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
}

// Bytes resolves the frame to the raw byte sequence written to the PTY.
func (f *InputFrame) Bytes() ([]byte, error) {
	set := 0
	if f.Data != "" {
		set++
	}
	if f.Text != "" {
		set++
	}
	if f.Key != "" {
		set++
	}
	if set != 1 {
		return nil, &Error{Field: "input", Reason: "exactly one of data, text, or key must be set"}
	}

	switch {
	case f.Data != "":
		return DecodePayload(f.Data)
	case f.Key != "":
		return KeySequence(f.Key)
	default:
		return []byte(f.Text), nil
	}
}

// ControlMessage is an out-of-band session control request. Rows and Cols
// are only meaningful for resize.
type ControlMessage struct {
	Type string `json:"type"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// Validate checks the control type and resize parameters.
func (m *ControlMessage) Validate() error {
	switch m.Type {
	case ControlResize:
		if m.Rows < 1 || m.Rows > 1000 || m.Cols < 1 || m.Cols > 1000 {
			return &Error{Field: "control", Reason: "resize dimensions must be between 1 and 1000"}
		}
		return nil
	case ControlPause, ControlResume, ControlRestart, ControlKill:
		if m.Rows != 0 || m.Cols != 0 {
			return &Error{Field: "control", Reason: "dimensions are only valid for resize"}
		}
		return nil
	default:
		return &Error{Field: "control", Reason: "unknown control type: " + m.Type}
	}
}

// LifecycleEvent notifies subscribers of a session state transition.
type LifecycleEvent struct {
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Rows      uint16    `json:"rows,omitempty"`
	Cols      uint16    `json:"cols,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// ErrorFrame is pushed to streaming clients when a request fails.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
