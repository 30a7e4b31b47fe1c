package terminal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermStream/internal/domain/profile"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
	"github.com/GriffinCanCode/TermStream/internal/shared/paths"
	"github.com/GriffinCanCode/TermStream/internal/shared/validation"
)

// controlAckTimeout bounds how long a caller waits for the bridge to
// acknowledge resize/pause/resume.
const controlAckTimeout = 2 * time.Second

// session is one live table entry. The manager's table lock is held only
// for insert/remove/lookup; per-session mutation takes the session's own
// lock, never across blocking I/O.
type session struct {
	id        id.SessionID
	req       CreateRequest
	createdAt time.Time

	mu         sync.Mutex
	state      State
	bridge     *bridge
	seqr       *Sequencer
	rows, cols uint16
	startedAt  *time.Time
	exitedAt   *time.Time
	exitCode   *int
	failReason string

	fanout     *Fanout
	scrollback *Scrollback
	transcript *Transcript

	lastActivity atomic.Int64 // unix nanos

	restartMu   sync.Mutex
	destroyOnce sync.Once
	destroyed   chan struct{}
}

func (s *session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Manager owns the session table and drives the lifecycle state machine.
// The table lock guards only metadata mutation; spawn, kill, and all PTY
// I/O happen outside it, so one wedged session never blocks another.
type Manager struct {
	cfg     Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	allow   *profile.Allowlist

	layout           paths.Layout
	transcripts      bool
	transcriptRotate int64

	mu       sync.RWMutex
	sessions map[id.SessionID]*session
	closed   bool

	sinksMu sync.RWMutex
	sinks   []LifecycleSink

	reaperStop chan struct{}
	reaperOnce sync.Once
}

// NewManager creates the session manager and starts its retention reaper.
func NewManager(cfg Config, log *logging.Logger) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		log:        log.Named("terminal"),
		sessions:   make(map[id.SessionID]*session),
		reaperStop: make(chan struct{}),
	}
	go m.reaper()
	return m
}

// WithMetrics attaches the metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithAllowlist restricts spawnable shells.
func (m *Manager) WithAllowlist(allow *profile.Allowlist) *Manager {
	m.allow = allow
	return m
}

// WithTranscripts enables on-disk output transcripts under the layout's
// transcript directory, rotated and compressed above rotateBytes.
func (m *Manager) WithTranscripts(layout paths.Layout, rotateBytes int64) *Manager {
	m.layout = layout
	m.transcripts = true
	m.transcriptRotate = rotateBytes
	return m
}

// AddSink registers an out-of-band lifecycle consumer. Sinks must not
// block.
func (m *Manager) AddSink(sink LifecycleSink) {
	m.sinksMu.Lock()
	m.sinks = append(m.sinks, sink)
	m.sinksMu.Unlock()
}

// Create validates the request, spawns the shell under a fresh PTY, and
// registers the session. On failure no partial session is left behind.
func (m *Manager) Create(req CreateRequest) (Status, error) {
	resolved, err := m.resolve(req)
	if err != nil {
		return Status{}, err
	}
	if err := m.validateSpawn(resolved); err != nil {
		return Status{}, err
	}

	sid := id.NewSessionID()
	sess := &session{
		id:         sid,
		req:        resolved,
		createdAt:  time.Now(),
		state:      StateStarting,
		rows:       resolved.Rows,
		cols:       resolved.Cols,
		fanout:     NewFanout(sid, m.cfg.SubscriberBuffer),
		scrollback: NewScrollback(m.cfg.ScrollbackBytes),
		seqr:       NewSequencer(m.cfg.InputQueueSize),
		destroyed:  make(chan struct{}),
	}
	sess.touch()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Status{}, ErrManagerClosed
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return Status{}, &ResourceExhausted{Resource: "sessions", Limit: m.cfg.MaxSessions}
	}
	m.sessions[sid] = sess
	m.mu.Unlock()

	if m.transcripts {
		transcript, terr := OpenTranscript(m.layout, sid.String(), m.transcriptRotate)
		if terr != nil {
			m.log.Warn("transcript disabled for session", zap.String("session", sid.String()), zap.Error(terr))
		} else {
			sess.transcript = transcript
		}
	}

	bridge, err := m.startSessionBridge(sess)
	if err != nil {
		m.removeSession(sid)
		sess.fanout.Close()
		if sess.transcript != nil {
			sess.transcript.Close()
		}
		return Status{}, mapSpawnError(err, resolved.Shell)
	}

	now := time.Now()
	sess.mu.Lock()
	sess.bridge = bridge
	sess.startedAt = &now
	m.setStateLocked(sess, StateRunning)
	sess.mu.Unlock()

	m.log.Info("session created",
		zap.String("session", sid.String()),
		zap.String("shell", resolved.Shell),
		zap.Int("pid", bridge.pid()),
	)
	if m.metrics != nil {
		m.metrics.IncSessionsTotal()
	}

	m.emit(Event{SessionID: sid, Kind: EventCreated, Time: now})
	m.emit(Event{SessionID: sid, Kind: EventRunning, Time: now})

	return m.statusOf(sess), nil
}

// startSessionBridge spawns the PTY wired to this session's plumbing.
func (m *Manager) startSessionBridge(sess *session) (*bridge, error) {
	slog := m.log.ForSession(sess.id.String())
	return startBridge(
		sess.req,
		bridgeConfig{
			flushInterval: m.cfg.FlushInterval,
			maxChunk:      64 * 1024,
			readBuf:       m.cfg.ReadBufferBytes,
			pauseCap:      m.cfg.ScrollbackBytes,
		},
		sess.fanout,
		sess.scrollback,
		sess.transcript,
		sess.seqr,
		slog,
		func(code *int, ioErr error) { m.handleExit(sess, code, ioErr) },
		func(_ uint64, n int) {
			sess.touch()
			if m.metrics != nil {
				m.metrics.RecordOutputFrame(n)
			}
		},
	)
}

// resolve fills defaults and validates request fields.
func (m *Manager) resolve(req CreateRequest) (CreateRequest, error) {
	if req.Shell == "" {
		req.Shell = m.cfg.DefaultShell
	}
	if req.Cwd == "" {
		if home := os.Getenv("HOME"); home != "" {
			req.Cwd = home
		} else {
			req.Cwd = "/tmp"
		}
	}
	if req.Rows == 0 {
		req.Rows = m.cfg.DefaultRows
	}
	if req.Cols == 0 {
		req.Cols = m.cfg.DefaultCols
	}

	if err := validation.ValidateShell(req.Shell, true); err != nil {
		return req, err
	}
	if err := validation.ValidateDimensions(req.Rows, req.Cols); err != nil {
		return req, err
	}
	if err := validation.ValidateArgs(req.Args); err != nil {
		return req, err
	}
	if err := validation.ValidateEnv(req.Env); err != nil {
		return req, err
	}
	if err := validation.ValidateTitle(req.Title, false); err != nil {
		return req, err
	}
	return req, nil
}

// validateSpawn checks shell existence/permissions, the allowlist, and the
// working directory before anything is allocated.
func (m *Manager) validateSpawn(req CreateRequest) error {
	if m.allow != nil && !m.allow.Allowed(req.Shell) {
		return &SpawnError{Reason: SpawnPermissionDenied, Shell: req.Shell}
	}

	info, err := os.Stat(req.Shell)
	if errors.Is(err, fs.ErrNotExist) {
		return &SpawnError{Reason: SpawnNotFound, Shell: req.Shell, Err: err}
	}
	if err != nil {
		return &SpawnError{Reason: SpawnPermissionDenied, Shell: req.Shell, Err: err}
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return &SpawnError{Reason: SpawnPermissionDenied, Shell: req.Shell}
	}

	dir, err := os.Stat(req.Cwd)
	if err != nil || !dir.IsDir() {
		return &SpawnError{Reason: SpawnInvalidDirectory, Shell: req.Shell, Err: err}
	}

	return nil
}

// mapSpawnError classifies a pty start failure.
func mapSpawnError(err error, shell string) error {
	var spawn *SpawnError
	if errors.As(err, &spawn) {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &SpawnError{Reason: SpawnNotFound, Shell: shell, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &SpawnError{Reason: SpawnPermissionDenied, Shell: shell, Err: err}
	default:
		return &SpawnError{Reason: SpawnPermissionDenied, Shell: shell, Err: err}
	}
}

// Write submits input bytes to a Running session's FIFO.
func (m *Manager) Write(sid id.SessionID, data []byte) error {
	sess, err := m.lookup(sid)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	state := sess.state
	seqr := sess.seqr
	sess.mu.Unlock()

	if !state.AcceptsInput() {
		if m.metrics != nil {
			m.metrics.IncInputRejected()
		}
		return &RejectedInput{State: state}
	}

	if err := seqr.Submit(data); err != nil {
		return err
	}
	sess.touch()
	if m.metrics != nil {
		m.metrics.RecordInputBytes(len(data))
	}
	return nil
}

// Control applies an out-of-band operation. Kill and restart route to the
// manager-level paths; resize/pause/resume are acknowledged by the bridge.
func (m *Manager) Control(sid id.SessionID, msg ControlMessage) error {
	switch msg.Op {
	case OpKill:
		return m.Destroy(sid)
	case OpRestart:
		return m.Restart(sid)
	}

	sess, err := m.lookup(sid)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	state := sess.state
	bridge := sess.bridge
	sess.mu.Unlock()

	if state != StateRunning && state != StatePaused {
		return &RejectedInput{State: state}
	}

	switch msg.Op {
	case OpResize:
		if err := validation.ValidateDimensions(msg.Rows, msg.Cols); err != nil {
			return err
		}
		if err := bridge.control(msg, controlAckTimeout); err != nil {
			return err
		}
		now := time.Now()
		sess.mu.Lock()
		sess.rows, sess.cols = msg.Rows, msg.Cols
		sess.mu.Unlock()
		sess.touch()
		m.emit(Event{SessionID: sid, Kind: EventResized, Rows: msg.Rows, Cols: msg.Cols, Time: now})
		return nil

	case OpPause:
		if state == StatePaused {
			return nil
		}
		if err := bridge.control(msg, controlAckTimeout); err != nil {
			return err
		}
		sess.mu.Lock()
		m.setStateLocked(sess, StatePaused)
		sess.mu.Unlock()
		m.emit(Event{SessionID: sid, Kind: EventPaused, Time: time.Now()})
		return nil

	case OpResume:
		if state == StateRunning {
			return nil
		}
		if err := bridge.control(msg, controlAckTimeout); err != nil {
			return err
		}
		sess.mu.Lock()
		m.setStateLocked(sess, StateRunning)
		sess.mu.Unlock()
		m.emit(Event{SessionID: sid, Kind: EventResumed, Time: time.Now()})
		return nil

	default:
		return &RejectedInput{State: state}
	}
}

// Restart re-spawns the shell under the same session ID. Subscribers stay
// attached: they observe a restarted event, then sequence numbering resets
// to zero for the new epoch. Concurrent restarts coalesce on the restart
// lock. Supervised restart from Exited/Failed is allowed.
func (m *Manager) Restart(sid id.SessionID) error {
	sess, err := m.lookup(sid)
	if err != nil {
		return err
	}

	sess.restartMu.Lock()
	defer sess.restartMu.Unlock()

	sess.mu.Lock()
	if !sess.state.CanTransitionTo(StateRestarting) {
		state := sess.state
		sess.mu.Unlock()
		return &RejectedInput{State: state}
	}
	m.setStateLocked(sess, StateRestarting)
	oldBridge := sess.bridge
	oldSeqr := sess.seqr
	sess.mu.Unlock()

	oldSeqr.Close()
	if oldBridge != nil {
		if err := oldBridge.kill(m.cfg.KillGrace); err != nil {
			m.log.Warn("old process did not exit within grace",
				zap.String("session", sid.String()), zap.Error(err))
		}
	}

	// Epoch boundary: subscribers see the restarted marker before any
	// frame of the new epoch.
	now := time.Now()
	m.emit(Event{SessionID: sid, Kind: EventRestarted, Time: now})
	sess.fanout.ResetEpoch()
	sess.scrollback.Reset()

	sess.mu.Lock()
	sess.seqr = NewSequencer(m.cfg.InputQueueSize)
	sess.exitedAt = nil
	sess.exitCode = nil
	sess.failReason = ""
	sess.mu.Unlock()

	bridge, err := m.startSessionBridge(sess)
	if err != nil {
		sess.mu.Lock()
		m.setStateLocked(sess, StateFailed)
		sess.mu.Unlock()
		m.emit(Event{SessionID: sid, Kind: EventFailed, Reason: err.Error(), Time: time.Now()})
		return mapSpawnError(err, sess.req.Shell)
	}

	started := time.Now()
	sess.mu.Lock()
	sess.bridge = bridge
	sess.startedAt = &started
	m.setStateLocked(sess, StateRunning)
	sess.mu.Unlock()
	sess.touch()

	if m.metrics != nil {
		m.metrics.IncSessionRestarts()
	}
	m.log.Info("session restarted", zap.String("session", sid.String()), zap.Int("pid", bridge.pid()))
	m.emit(Event{SessionID: sid, Kind: EventRunning, Time: started})
	return nil
}

// Destroy kills the session's process, notifies subscribers, and releases
// every resource. Bounded by the kill grace; the process is force-killed
// and the handle reclaimed even if it refuses to exit. Racing destroys
// converge on one teardown.
func (m *Manager) Destroy(sid id.SessionID) error {
	sess, err := m.lookup(sid)
	if err != nil {
		return err
	}

	var killErr error
	sess.destroyOnce.Do(func() {
		sess.mu.Lock()
		bridge := sess.bridge
		seqr := sess.seqr
		sess.mu.Unlock()

		seqr.Close()
		if bridge != nil {
			killErr = bridge.kill(m.cfg.KillGrace)
		}

		sess.mu.Lock()
		m.setStateLocked(sess, StateDestroyed)
		sess.mu.Unlock()

		m.emit(Event{SessionID: sid, Kind: EventDestroyed, Time: time.Now()})
		sess.fanout.Close()
		if sess.transcript != nil {
			sess.transcript.Close()
		}
		m.removeSession(sid)
		close(sess.destroyed)

		m.log.Info("session destroyed", zap.String("session", sid.String()))
	})

	<-sess.destroyed
	return killErr
}

// handleExit is the bridge's exit callback: the child died on its own or
// the session hit a fatal I/O error.
func (m *Manager) handleExit(sess *session, code *int, ioErr error) {
	now := time.Now()

	sess.mu.Lock()
	if sess.state == StateDestroyed || sess.state == StateRestarting {
		sess.mu.Unlock()
		return
	}
	sess.exitedAt = &now
	sess.exitCode = code
	seqr := sess.seqr

	var ev Event
	if ioErr != nil {
		sess.failReason = ioErr.Error()
		m.setStateLocked(sess, StateFailed)
		ev = Event{SessionID: sess.id, Kind: EventFailed, Reason: ioErr.Error(), ExitCode: code, Time: now}
	} else {
		m.setStateLocked(sess, StateExited)
		ev = Event{SessionID: sess.id, Kind: EventExited, ExitCode: code, Time: now}
	}
	sess.mu.Unlock()

	seqr.Close()
	if sess.transcript != nil {
		sess.transcript.Close()
	}

	if ioErr != nil {
		m.log.Error("session failed", zap.String("session", sess.id.String()), zap.Error(ioErr))
	} else {
		m.log.Info("session exited",
			zap.String("session", sess.id.String()),
			zap.Any("exit_code", code),
		)
	}
	m.emit(ev)
}

// Subscribe attaches an output consumer. Buffered scrollback is replayed
// first so a late subscriber sees recent history before live frames.
func (m *Manager) Subscribe(sid id.SessionID) (*Subscription, error) {
	sess, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}
	return sess.fanout.Subscribe(sess.scrollback.Snapshot())
}

// Scrollback returns a copy of the session's recent raw output.
func (m *Manager) Scrollback(sid id.SessionID) ([]byte, error) {
	sess, err := m.lookup(sid)
	if err != nil {
		return nil, err
	}
	return sess.scrollback.Snapshot(), nil
}

// TranscriptPath returns the active transcript file for download, or
// ErrSessionNotFound / os.ErrNotExist when transcripts are off.
func (m *Manager) TranscriptPath(sid id.SessionID) (string, error) {
	sess, err := m.lookup(sid)
	if err != nil {
		return "", err
	}
	if sess.transcript == nil {
		return "", os.ErrNotExist
	}
	return sess.transcript.Path(), nil
}

// Status returns a read-only snapshot. Never touches the PTY handle.
func (m *Manager) Status(sid id.SessionID) (Status, error) {
	sess, err := m.lookup(sid)
	if err != nil {
		return Status{}, err
	}
	return m.statusOf(sess), nil
}

// List snapshots every session. Order is unspecified; callers sort.
func (m *Manager) List() []Status {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, m.statusOf(sess))
	}
	return out
}

// Stats aggregates session counts by state.
func (m *Manager) Stats() Stats {
	statuses := m.List()
	stats := Stats{
		Sessions: len(statuses),
		ByState:  make(map[string]int),
	}
	for _, st := range statuses {
		stats.ByState[st.State]++
	}
	return stats
}

// Shutdown destroys every session and stops the reaper. Used on daemon
// exit; bounded by ctx and the per-session kill grace.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.reaperOnce.Do(func() { close(m.reaperStop) })

	m.mu.Lock()
	m.closed = true
	ids := make([]id.SessionID, 0, len(m.sessions))
	for sid := range m.sessions {
		ids = append(ids, sid)
	}
	m.mu.Unlock()

	for _, sid := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.Destroy(sid); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.log.Warn("destroy during shutdown", zap.String("session", sid.String()), zap.Error(err))
		}
	}
	return nil
}

// reaper destroys terminal-state sessions older than the retention window.
func (m *Manager) reaper() {
	interval := m.cfg.Retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	cutoff := time.Now().Add(-m.cfg.Retention)

	m.mu.RLock()
	var expired []id.SessionID
	for sid, sess := range m.sessions {
		sess.mu.Lock()
		dead := sess.state.Terminal() && sess.exitedAt != nil && sess.exitedAt.Before(cutoff)
		sess.mu.Unlock()
		if dead {
			expired = append(expired, sid)
		}
	}
	m.mu.RUnlock()

	for _, sid := range expired {
		m.log.Info("reaping expired session", zap.String("session", sid.String()))
		if err := m.Destroy(sid); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.log.Warn("reap failed", zap.String("session", sid.String()), zap.Error(err))
		}
	}
}

// lookup finds a session by ID.
func (m *Manager) lookup(sid id.SessionID) (*session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) removeSession(sid id.SessionID) {
	m.mu.Lock()
	delete(m.sessions, sid)
	m.mu.Unlock()
}

// setStateLocked transitions a session's state. Caller holds sess.mu.
// Illegal transitions are programming errors; they are logged and refused.
func (m *Manager) setStateLocked(sess *session, next State) {
	if !sess.state.CanTransitionTo(next) {
		m.log.Error("illegal state transition refused",
			zap.String("session", sess.id.String()),
			zap.String("from", sess.state.String()),
			zap.String("to", next.String()),
		)
		return
	}
	prev := sess.state
	sess.state = next
	if m.metrics != nil {
		m.metrics.SessionStateChanged(prev.String(), next.String())
	}
}

// emit delivers a lifecycle event to the session's subscriber streams and
// to every registered sink. Sinks are non-blocking by contract.
func (m *Manager) emit(ev Event) {
	if sess, err := m.lookup(ev.SessionID); err == nil {
		sess.fanout.Announce(ev)
	} else if ev.Kind == EventDestroyed {
		// The destroyed event is announced before table removal; reaching
		// here means a racing emit after removal, which sinks still see.
		m.log.Debug("event after removal", zap.String("session", ev.SessionID.String()))
	}

	m.sinksMu.RLock()
	sinks := m.sinks
	m.sinksMu.RUnlock()
	for _, sink := range sinks {
		sink.OnEvent(ev)
	}
}

// statusOf snapshots a session.
func (m *Manager) statusOf(sess *session) Status {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := Status{
		ID:           sess.id,
		State:        sess.state.String(),
		Shell:        sess.req.Shell,
		Args:         sess.req.Args,
		Cwd:          sess.req.Cwd,
		Rows:         sess.rows,
		Cols:         sess.cols,
		Title:        sess.req.Title,
		Profile:      sess.req.Profile,
		CreatedAt:    sess.createdAt,
		StartedAt:    sess.startedAt,
		ExitedAt:     sess.exitedAt,
		ExitCode:     sess.exitCode,
		LastActivity: time.Unix(0, sess.lastActivity.Load()),
		Subscribers:  sess.fanout.Subscribers(),
		Seq:          sess.fanout.Seq(),
	}
	if sess.bridge != nil {
		st.PID = sess.bridge.pid()
	}
	if sess.startedAt != nil {
		end := time.Now()
		if sess.exitedAt != nil {
			end = *sess.exitedAt
		}
		st.UptimeMs = end.Sub(*sess.startedAt).Milliseconds()
	}
	return st
}
