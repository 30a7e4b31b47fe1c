package terminal

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermStream/internal/domain/profile"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
)

const testShell = "/bin/sh"

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testShell); err != nil {
		t.Skipf("%s not available: %v", testShell, err)
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.DefaultShell == "" {
		cfg.DefaultShell = testShell
	}
	if cfg.KillGrace == 0 {
		cfg.KillGrace = 2 * time.Second
	}
	m := NewManager(cfg, logging.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func waitForState(t *testing.T, m *Manager, sid id.SessionID, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := m.Status(sid)
		if err == nil && st.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	st, _ := m.Status(sid)
	t.Fatalf("session never reached %s (currently %s)", want, st.State)
}

// eventRecorder is a test sink capturing lifecycle events.
type eventRecorder struct {
	ch chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 64)}
}

func (r *eventRecorder) OnEvent(ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

func (r *eventRecorder) wait(t *testing.T, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("never observed %s event", kind)
		}
	}
}

func TestManagerCreateAndDestroy(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Greater(t, st.PID, 0)
	assert.Equal(t, uint16(24), st.Rows)
	assert.Equal(t, uint16(80), st.Cols)

	require.NoError(t, m.Destroy(st.ID))
	_, err = m.Status(st.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Second destroy of a removed session is a lookup miss.
	assert.ErrorIs(t, m.Destroy(st.ID), ErrSessionNotFound)
}

func TestManagerCreateShellNotFound(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Create(CreateRequest{Shell: "/nonexistent/shell"})
	var spawn *SpawnError
	require.ErrorAs(t, err, &spawn)
	assert.Equal(t, SpawnNotFound, spawn.Reason)
	assert.Empty(t, m.List(), "no partial session may remain")
}

func TestManagerCreateInvalidDirectory(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	_, err := m.Create(CreateRequest{Shell: testShell, Cwd: "/nonexistent/dir"})
	var spawn *SpawnError
	require.ErrorAs(t, err, &spawn)
	assert.Equal(t, SpawnInvalidDirectory, spawn.Reason)
}

func TestManagerCreateInvalidDimensions(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	_, err := m.Create(CreateRequest{Shell: testShell, Rows: 2000, Cols: 80})
	assert.Error(t, err)
}

func TestManagerSessionCap(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{MaxSessions: 1})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	_, err = m.Create(CreateRequest{Shell: testShell})
	var exhausted *ResourceExhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "sessions", exhausted.Resource)

	// Destroy frees the slot.
	require.NoError(t, m.Destroy(st.ID))
	_, err = m.Create(CreateRequest{Shell: testShell})
	assert.NoError(t, err)
}

func TestManagerAllowlist(t *testing.T) {
	requireShell(t)
	allow, err := profile.NewAllowlist([]string{"/usr/bin/fish"})
	require.NoError(t, err)

	m := newTestManager(t, Config{}).WithAllowlist(allow)

	_, err = m.Create(CreateRequest{Shell: testShell})
	var spawn *SpawnError
	require.ErrorAs(t, err, &spawn)
	assert.Equal(t, SpawnPermissionDenied, spawn.Reason)
}

func TestManagerEchoRoundTrip(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	sub, err := m.Subscribe(st.ID)
	require.NoError(t, err)
	defer sub.Close()

	const marker = "TERMSTREAM_ROUNDTRIP_OK"
	require.NoError(t, m.Write(st.ID, []byte("echo "+marker+"\n")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var collected strings.Builder
	for !strings.Contains(collected.String(), marker) {
		d, err := sub.Next(ctx)
		require.NoError(t, err, "marker must appear within the deadline")
		if d.Frame != nil {
			collected.Write(d.Frame.Data)
		}
	}
}

func TestManagerWriteRejectedAfterExit(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})
	rec := newEventRecorder()
	m.AddSink(rec)

	st, err := m.Create(CreateRequest{Shell: testShell, Args: []string{"-c", "exit 7"}})
	require.NoError(t, err)

	ev := rec.wait(t, EventExited, 5*time.Second)
	require.NotNil(t, ev.ExitCode)
	assert.Equal(t, 7, *ev.ExitCode)
	waitForState(t, m, st.ID, "exited")

	err = m.Write(st.ID, []byte("too late\n"))
	var rejected *RejectedInput
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StateExited, rejected.State)
}

func TestManagerDestroyedExactlyOnce(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})
	rec := newEventRecorder()
	m.AddSink(rec)

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	sub, err := m.Subscribe(st.ID)
	require.NoError(t, err)

	done := make(chan error, 2)
	go func() { done <- m.Destroy(st.ID) }()
	go func() { done <- m.Destroy(st.ID) }()
	for i := 0; i < 2; i++ {
		err := <-done
		if err != nil {
			assert.ErrorIs(t, err, ErrSessionNotFound)
		}
	}

	rec.wait(t, EventDestroyed, 5*time.Second)
	// No second destroyed event may arrive.
	select {
	case ev := <-rec.ch:
		assert.NotEqual(t, EventDestroyed, ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}

	// The subscriber drains and terminates; no frames after the event.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sawDestroyed := false
	for {
		d, err := sub.Next(ctx)
		if err != nil {
			assert.ErrorIs(t, err, ErrSubscriptionClosed)
			break
		}
		if sawDestroyed {
			assert.Nil(t, d.Frame, "no output frames after the destroyed event")
		}
		if d.Event != nil && d.Event.Kind == EventDestroyed {
			sawDestroyed = true
		}
	}
	assert.True(t, sawDestroyed)
}

func TestManagerRestartResetsEpoch(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})
	rec := newEventRecorder()
	m.AddSink(rec)

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	sub, err := m.Subscribe(st.ID)
	require.NoError(t, err)
	defer sub.Close()

	// Force some pre-restart output so the old epoch has frames.
	require.NoError(t, m.Write(st.ID, []byte("echo before\n")))
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, m.Restart(st.ID))
	rec.wait(t, EventRestarted, 5*time.Second)
	waitForState(t, m, st.ID, "running")

	require.NoError(t, m.Write(st.ID, []byte("echo after\n")))

	// After the restarted marker, sequence numbering restarts at zero.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sawRestart := false
	for {
		d, err := sub.Next(ctx)
		require.NoError(t, err)
		if d.Event != nil && d.Event.Kind == EventRestarted {
			sawRestart = true
			continue
		}
		if sawRestart && d.Frame != nil {
			assert.Equal(t, uint64(0), d.Frame.Seq)
			break
		}
	}
}

func TestManagerResize(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	require.NoError(t, m.Control(st.ID, ControlMessage{Op: OpResize, Rows: 50, Cols: 132}))
	got, err := m.Status(st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint16(50), got.Rows)
	assert.Equal(t, uint16(132), got.Cols)

	assert.Error(t, m.Control(st.ID, ControlMessage{Op: OpResize, Rows: 0, Cols: 80}))
	assert.Error(t, m.Control(st.ID, ControlMessage{Op: OpResize, Rows: 24, Cols: 5000}))
}

func TestManagerPauseResume(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	require.NoError(t, m.Control(st.ID, ControlMessage{Op: OpPause}))
	got, err := m.Status(st.ID)
	require.NoError(t, err)
	assert.Equal(t, "paused", got.State)

	// Paused sessions reject input.
	var rejected *RejectedInput
	require.ErrorAs(t, m.Write(st.ID, []byte("nope\n")), &rejected)

	require.NoError(t, m.Control(st.ID, ControlMessage{Op: OpResume}))
	got, err = m.Status(st.ID)
	require.NoError(t, err)
	assert.Equal(t, "running", got.State)
	assert.NoError(t, m.Write(st.ID, []byte("echo ok\n")))
}

func TestManagerLookupMiss(t *testing.T) {
	m := newTestManager(t, Config{})

	missing := id.NewSessionID()
	_, err := m.Status(missing)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Write(missing, []byte("x")), ErrSessionNotFound)
	assert.ErrorIs(t, m.Restart(missing), ErrSessionNotFound)
	_, err = m.Subscribe(missing)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerStats(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	for i := 0; i < 3; i++ {
		_, err := m.Create(CreateRequest{Shell: testShell})
		require.NoError(t, err)
	}

	stats := m.Stats()
	assert.Equal(t, 3, stats.Sessions)
	assert.Equal(t, 3, stats.ByState["running"])
}

func TestManagerShutdown(t *testing.T) {
	requireShell(t)
	m := NewManager(Config{DefaultShell: testShell, KillGrace: 2 * time.Second}, logging.NewNop())

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	_, err = m.Status(st.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Create(CreateRequest{Shell: testShell})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManagerScrollbackReplay(t *testing.T) {
	requireShell(t)
	m := newTestManager(t, Config{})

	st, err := m.Create(CreateRequest{Shell: testShell})
	require.NoError(t, err)

	const marker = "SCROLLBACK_MARKER"
	require.NoError(t, m.Write(st.ID, []byte("echo "+marker+"\n")))

	// Wait for the output to land in scrollback before subscribing late.
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := m.Scrollback(st.ID)
		require.NoError(t, err)
		if strings.Contains(string(data), marker) {
			break
		}
		require.True(t, time.Now().Before(deadline), "marker never reached scrollback")
		time.Sleep(10 * time.Millisecond)
	}

	sub, err := m.Subscribe(st.ID)
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := sub.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, d.Frame)
	assert.True(t, d.Frame.Replay)
	assert.Contains(t, string(d.Frame.Data), marker)
}
