package terminal

import (
	"time"

	"github.com/GriffinCanCode/TermStream/internal/shared/id"
)

// State is a session's position in the lifecycle state machine.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StatePaused
	StateRestarting
	StateExited
	StateFailed
	StateDestroyed
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateRestarting:
		return "restarting"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// transitions is the closed set of legal state changes. Destroy is legal
// from every state, so it is checked separately.
var transitions = map[State][]State{
	StateStarting:   {StateRunning, StateFailed},
	StateRunning:    {StatePaused, StateRestarting, StateExited, StateFailed},
	StatePaused:     {StateRunning, StateRestarting, StateExited, StateFailed},
	StateRestarting: {StateRunning, StateFailed},
	StateExited:     {StateRestarting},
	StateFailed:     {StateRestarting},
	StateDestroyed:  {},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s State) CanTransitionTo(next State) bool {
	if next == StateDestroyed {
		return s != StateDestroyed
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsInput reports whether input frames are accepted in this state.
// Paused sessions reject input; queueing during pause is a policy decision
// left to callers that want it.
func (s State) AcceptsInput() bool {
	return s == StateRunning
}

// Terminal reports whether the state is final until destroy.
func (s State) Terminal() bool {
	return s == StateExited || s == StateFailed
}

// CreateRequest describes a session to spawn. Zero-value dimensions and an
// empty shell resolve to configured defaults before validation.
type CreateRequest struct {
	Shell   string
	Args    []string
	Cwd     string
	Env     map[string]string
	Rows    uint16
	Cols    uint16
	Title   string
	Profile string
}

// Config tunes session behavior. The server layer maps the daemon
// configuration onto this.
type Config struct {
	DefaultShell     string
	DefaultRows      uint16
	DefaultCols      uint16
	MaxSessions      int
	InputQueueSize   int
	SubscriberBuffer int
	ScrollbackBytes  int
	ReadBufferBytes  int
	FlushInterval    time.Duration
	KillGrace        time.Duration
	Retention        time.Duration
}

// withDefaults fills unset fields with serviceable values.
func (c Config) withDefaults() Config {
	if c.DefaultShell == "" {
		c.DefaultShell = "/bin/sh"
	}
	if c.DefaultRows == 0 {
		c.DefaultRows = 24
	}
	if c.DefaultCols == 0 {
		c.DefaultCols = 80
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 64
	}
	if c.InputQueueSize <= 0 {
		c.InputQueueSize = 256
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 256
	}
	if c.ScrollbackBytes <= 0 {
		c.ScrollbackBytes = 128 * 1024
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = 32 * 1024
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 16 * time.Millisecond
	}
	if c.KillGrace <= 0 {
		c.KillGrace = 3 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 10 * time.Minute
	}
	return c
}

// Status is a read-only snapshot of a session. Building it never touches
// the PTY handle.
type Status struct {
	ID           id.SessionID `json:"id"`
	State        string       `json:"state"`
	Shell        string       `json:"shell"`
	Args         []string     `json:"args,omitempty"`
	Cwd          string       `json:"cwd"`
	Rows         uint16       `json:"rows"`
	Cols         uint16       `json:"cols"`
	PID          int          `json:"pid,omitempty"`
	Title        string       `json:"title,omitempty"`
	Profile      string       `json:"profile,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	ExitedAt     *time.Time   `json:"exited_at,omitempty"`
	ExitCode     *int         `json:"exit_code,omitempty"`
	UptimeMs     int64        `json:"uptime_ms"`
	LastActivity time.Time    `json:"last_activity"`
	Subscribers  int          `json:"subscribers"`
	Seq          uint64       `json:"seq"`
}

// Stats aggregates manager-level counters for observability endpoints.
type Stats struct {
	Sessions int            `json:"sessions"`
	ByState  map[string]int `json:"by_state"`
}
