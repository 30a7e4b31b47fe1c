package terminal

import "time"

// ControlOp is a closed set of out-of-band session operations.
type ControlOp int

const (
	OpResize ControlOp = iota
	OpPause
	OpResume
	OpRestart
	OpKill
)

// String returns the wire name of the operation.
func (op ControlOp) String() string {
	switch op {
	case OpResize:
		return "resize"
	case OpPause:
		return "pause"
	case OpResume:
		return "resume"
	case OpRestart:
		return "restart"
	case OpKill:
		return "kill"
	default:
		return "unknown"
	}
}

// ControlMessage is one control request. Rows and Cols are set for resize
// only. reply carries the bridge's acknowledgment back to the caller.
type ControlMessage struct {
	Op    ControlOp
	Rows  uint16
	Cols  uint16
	reply chan error
}

// controlChannel delivers control messages to the bridge's I/O loop, which
// drains it with priority over queued input so a kill or resize is never
// starved behind buffered writes.
type controlChannel struct {
	ch chan ControlMessage
}

const controlQueueSize = 16

func newControlChannel() *controlChannel {
	return &controlChannel{ch: make(chan ControlMessage, controlQueueSize)}
}

// send enqueues a control message and waits for the bridge to acknowledge
// it, bounded by timeout. done aborts the wait when the bridge is gone.
func (c *controlChannel) send(msg ControlMessage, done <-chan struct{}, timeout time.Duration) error {
	msg.reply = make(chan error, 1)

	select {
	case c.ch <- msg:
	default:
		return &ResourceExhausted{Resource: "control queue", Limit: controlQueueSize}
	}

	select {
	case err := <-msg.reply:
		return err
	case <-done:
		return &RejectedInput{State: StateExited}
	case <-time.After(timeout):
		return &TimeoutError{Op: "control " + msg.Op.String(), Timeout: timeout}
	}
}
