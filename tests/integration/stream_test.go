//go:build integration
// +build integration

package integration

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/protocol"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
	"github.com/GriffinCanCode/TermStream/tests/helpers/testutil"
)

func terminalID(s string) id.SessionID { return id.SessionID(s) }

// dialStream opens a WebSocket subscriber for the session.
func dialStream(t *testing.T, base, sid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/sessions/" + sid + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readFrame reads and decodes one envelope, failing on timeout.
func readFrame(t *testing.T, ws *websocket.Conn, timeout time.Duration) (*protocol.Message, error) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Unmarshal(data)
	require.NoError(t, err, "malformed envelope: %s", data)
	return msg, nil
}

func sendFrame(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := protocol.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func createSession(t *testing.T, m *terminal.Manager) string {
	t.Helper()
	status, err := m.Create(terminal.CreateRequest{})
	require.NoError(t, err)
	return status.ID.String()
}

// Output sequence numbers must be contiguous for a subscriber that keeps up,
// regardless of how the PTY chunks the data.
func TestStreamContiguousSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testutil.RequireShell(t)

	srv, manager := testutil.NewServer(t)
	sid := createSession(t, manager)
	ws := dialStream(t, srv.URL, sid)

	script := "i=0; while [ $i -lt 200 ]; do echo line_$i; i=$((i+1)); done; echo stream_done\n"
	require.NoError(t, manager.Write(terminalID(sid), []byte(script)))

	var (
		output  strings.Builder
		frames  int
		nextSeq uint64
		haveSeq bool
	)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := readFrame(t, ws, time.Until(deadline))
		require.NoError(t, err)

		switch msg.Type {
		case protocol.TypeGap:
			t.Fatalf("keeping-up subscriber saw a gap: dropped=%d", msg.Gap.Dropped)
		case protocol.TypeOutput:
			if msg.Output.Replay {
				// Replay carries the seq live delivery resumes at.
				nextSeq = msg.Output.Seq
				haveSeq = true
			} else {
				if haveSeq {
					assert.Equal(t, nextSeq, msg.Output.Seq, "sequence not contiguous")
				}
				nextSeq = msg.Output.Seq + 1
				haveSeq = true
				frames++
			}

			raw, err := base64.StdEncoding.DecodeString(msg.Output.Payload)
			require.NoError(t, err)
			output.Write(raw)
		}

		if strings.Contains(output.String(), "stream_done") {
			break
		}
	}

	text := output.String()
	require.Contains(t, text, "stream_done", "loop output never completed")
	for i := 0; i < 200; i++ {
		assert.Contains(t, text, fmt.Sprintf("line_%d", i))
	}
	assert.Greater(t, frames, 1)
}

// A subscriber attaching after output was produced gets the scrollback as a
// replay frame before any live frames.
func TestStreamReplayOnAttach(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testutil.RequireShell(t)

	srv, manager := testutil.NewServer(t)
	sid := createSession(t, manager)

	marker := fmt.Sprintf("replay_%d", time.Now().UnixNano())
	require.NoError(t, manager.Write(terminalID(sid), []byte("echo "+marker+"\n")))

	ok := testutil.WaitFor(t, 3*time.Second, func() bool {
		data, err := manager.Scrollback(terminalID(sid))
		return err == nil && strings.Contains(string(data), marker)
	})
	require.True(t, ok, "marker never reached scrollback")

	ws := dialStream(t, srv.URL, sid)
	msg, err := readFrame(t, ws, 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeOutput, msg.Type)
	assert.True(t, msg.Output.Replay, "first frame after attach must be the replay")

	raw, err := base64.StdEncoding.DecodeString(msg.Output.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), marker)
}

func TestStreamInputAndControl(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testutil.RequireShell(t)

	srv, manager := testutil.NewServer(t)
	sid := createSession(t, manager)
	ws := dialStream(t, srv.URL, sid)

	// Input over the socket echoes back on the same socket
	marker := fmt.Sprintf("ws_echo_%d", time.Now().UnixNano())
	sendFrame(t, ws, &protocol.Message{
		Type:  protocol.TypeInput,
		Input: &protocol.InputFrame{Text: "echo " + marker + "\n"},
	})

	var output strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(output.String(), marker) {
		require.True(t, time.Now().Before(deadline), "echo never arrived; got: %q", output.String())
		msg, err := readFrame(t, ws, time.Until(deadline))
		require.NoError(t, err)
		if msg.Type == protocol.TypeOutput {
			raw, err := base64.StdEncoding.DecodeString(msg.Output.Payload)
			require.NoError(t, err)
			output.Write(raw)
		}
	}

	// Resize over the socket is reflected in status
	sendFrame(t, ws, &protocol.Message{
		Type:    protocol.TypeControl,
		Control: &protocol.ControlMessage{Type: protocol.ControlResize, Rows: 30, Cols: 100},
	})
	ok := testutil.WaitFor(t, 3*time.Second, func() bool {
		status, err := manager.Status(terminalID(sid))
		return err == nil && status.Rows == 30 && status.Cols == 100
	})
	assert.True(t, ok, "resize never applied")

	// Non-input frames from clients are answered with an error frame
	sendFrame(t, ws, &protocol.Message{
		Type:   protocol.TypeOutput,
		Output: &protocol.OutputFrame{Payload: ""},
	})
	deadline = time.Now().Add(3 * time.Second)
	for {
		msg, err := readFrame(t, ws, time.Until(deadline))
		require.NoError(t, err)
		if msg.Type == protocol.TypeError {
			assert.Equal(t, "protocol_error", msg.Error.Code)
			break
		}
	}
}

// Destroying a session delivers the destroyed event to subscribers and then
// closes the stream normally.
func TestStreamClosesOnDestroy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testutil.RequireShell(t)

	srv, manager := testutil.NewServer(t)
	sid := createSession(t, manager)
	ws := dialStream(t, srv.URL, sid)

	require.NoError(t, manager.Destroy(terminalID(sid)))

	sawDestroyed := false
	deadline := time.Now().Add(5 * time.Second)
	for {
		msg, err := readFrame(t, ws, time.Until(deadline))
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
				"expected normal closure, got: %v", err)
			break
		}
		if msg.Type == protocol.TypeLifecycle && msg.Lifecycle.Event == "destroyed" {
			sawDestroyed = true
		} else if sawDestroyed && msg.Type == protocol.TypeOutput {
			t.Fatal("output frame delivered after the destroyed event")
		}
	}
	assert.True(t, sawDestroyed, "destroyed event never delivered")
}

func TestStreamUnknownSession(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	srv, _ := testutil.NewServer(t)
	resp, err := http.Get(srv.URL + "/sessions/ghost/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
