package terminal

import (
	"time"

	"github.com/GriffinCanCode/TermStream/internal/shared/id"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventRunning   EventKind = "running"
	EventResized   EventKind = "resized"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventRestarted EventKind = "restarted"
	EventExited    EventKind = "exited"
	EventFailed    EventKind = "failed"
	EventDestroyed EventKind = "destroyed"
)

// Event is a lifecycle notification. Events are fanned out on subscriber
// streams (interleaved in order with output frames) and to registered
// sinks.
type Event struct {
	SessionID id.SessionID
	Kind      EventKind
	ExitCode  *int
	Reason    string
	Rows      uint16
	Cols      uint16
	Time      time.Time
}

// LifecycleSink receives lifecycle events out of band. Implementations must
// not block: the manager calls sinks inline on its lifecycle paths, so a
// sink that needs to do real work must hand off to its own queue.
type LifecycleSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to LifecycleSink.
type SinkFunc func(Event)

// OnEvent implements LifecycleSink.
func (f SinkFunc) OnEvent(ev Event) { f(ev) }
