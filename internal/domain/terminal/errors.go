package terminal

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for session lookup and stream termination.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrManagerClosed      = errors.New("manager is shut down")
)

// SpawnReason classifies why a session could not be created.
type SpawnReason string

const (
	SpawnNotFound         SpawnReason = "not_found"
	SpawnPermissionDenied SpawnReason = "permission_denied"
	SpawnInvalidDirectory SpawnReason = "invalid_directory"
)

// SpawnError reports a failed session spawn. No partial session is left in
// the table when it is returned.
type SpawnError struct {
	Reason SpawnReason
	Shell  string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spawn failed (%s): %s: %v", e.Reason, e.Shell, e.Err)
	}
	return fmt.Sprintf("spawn failed (%s): %s", e.Reason, e.Shell)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IOError wraps a PTY read or write failure. It is fatal to its session
// only; other sessions are unaffected.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("pty %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RejectedInput is returned when input or control is submitted to a session
// that is not accepting it.
type RejectedInput struct {
	State State
}

func (e *RejectedInput) Error() string {
	return fmt.Sprintf("input rejected: session is %s", e.State)
}

// ResourceExhausted is returned when a configured limit is hit: the session
// cap, an input queue, or a control queue.
type ResourceExhausted struct {
	Resource string
	Limit    int
}

func (e *ResourceExhausted) Error() string {
	return fmt.Sprintf("%s limit reached (%d)", e.Resource, e.Limit)
}

// TimeoutError reports that a bounded wait elapsed. For destroy, the forced
// kill still proceeds after the error is recorded.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Op, e.Timeout)
}
