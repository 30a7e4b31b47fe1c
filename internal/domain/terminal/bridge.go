package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
)

// readWake is how often a blocked PTY read re-checks for shutdown. The read
// deadline doubles as the flush tick for batched output.
const readWake = 20 * time.Millisecond

// bridge owns one PTY master handle and the shell process behind it. All
// reads and writes happen on its two goroutines; after start nothing else
// touches the descriptor. The read pump batches output into frames; the I/O
// loop services control messages before queued input.
type bridge struct {
	log *logging.Logger

	cmd  *exec.Cmd
	ptmx *os.File

	fanout     *Fanout
	scrollback *Scrollback
	transcript *Transcript
	seqr       *Sequencer
	ctl        *controlChannel

	flushInterval time.Duration
	maxChunk      int
	readBuf       int

	// paused buffers output instead of publishing; pauseBuf is capped at
	// the scrollback size so a paused session cannot grow unboundedly.
	pauseMu  sync.Mutex
	paused   bool
	pauseBuf []byte
	pauseCap int

	done    chan struct{} // closed by kill: both loops must exit
	reaped  chan struct{} // closed after cmd.Wait returns
	ioDone  chan struct{} // closed when the I/O loop exits
	killOnce  sync.Once
	closeOnce sync.Once
	reapOnce  sync.Once

	// onExit reports the child's fate exactly once: exit code when the
	// process terminated, ioErr when a read/write failure killed the
	// session. killed suppresses the transition (destroy owns it then).
	onExit func(exitCode *int, ioErr error)

	// onFrame observes every published frame for activity tracking and
	// metrics. May be nil.
	onFrame func(seq uint64, n int)

	exitCode *int
	exitMu   sync.Mutex
	killed   bool
}

type bridgeConfig struct {
	flushInterval time.Duration
	maxChunk      int
	readBuf       int
	pauseCap      int
}

// startBridge spawns the shell under a fresh PTY and starts the pumps. The
// returned bridge is the descriptor's sole owner.
func startBridge(
	req CreateRequest,
	cfg bridgeConfig,
	fanout *Fanout,
	scrollback *Scrollback,
	transcript *Transcript,
	seqr *Sequencer,
	log *logging.Logger,
	onExit func(*int, error),
	onFrame func(uint64, int),
) (*bridge, error) {
	cmd := exec.Command(req.Shell, req.Args...)
	cmd.Dir = req.Cwd
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	for key, value := range req.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: req.Rows,
		Cols: req.Cols,
	})
	if err != nil {
		return nil, err
	}

	b := &bridge{
		log:           log,
		cmd:           cmd,
		ptmx:          ptmx,
		fanout:        fanout,
		scrollback:    scrollback,
		transcript:    transcript,
		seqr:          seqr,
		ctl:           newControlChannel(),
		flushInterval: cfg.flushInterval,
		maxChunk:      cfg.maxChunk,
		readBuf:       cfg.readBuf,
		pauseCap:      cfg.pauseCap,
		done:          make(chan struct{}),
		reaped:        make(chan struct{}),
		ioDone:        make(chan struct{}),
		onExit:        onExit,
		onFrame:       onFrame,
	}

	go b.readLoop()
	go b.ioLoop()

	return b, nil
}

// pid returns the child process ID, or zero if unavailable.
func (b *bridge) pid() int {
	if b.cmd.Process != nil {
		return b.cmd.Process.Pid
	}
	return 0
}

// readLoop is the blocking read pump. The descriptor carries a short read
// deadline so a blocked read wakes every readWake tick to check for
// shutdown and flush pending output; os.ErrDeadlineExceeded is a normal
// wake, not an error.
func (b *bridge) readLoop() {
	buf := make([]byte, b.readBuf)
	var pending []byte
	lastFlush := time.Now()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		b.deliver(pending)
		pending = nil
		lastFlush = time.Now()
	}

	for {
		select {
		case <-b.done:
			flush()
			b.reap(nil)
			return
		default:
		}

		_ = b.ptmx.SetReadDeadline(time.Now().Add(readWake))
		n, err := b.ptmx.Read(buf)

		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) >= b.maxChunk {
				flush()
			}
		}

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if len(pending) > 0 && time.Since(lastFlush) >= b.flushInterval {
					flush()
				}
				continue
			}
			flush()
			if errors.Is(err, io.EOF) || isClosedPTY(err) {
				b.reap(nil)
			} else {
				b.reap(&IOError{Op: "read", Err: err})
			}
			return
		}

		if len(pending) > 0 && time.Since(lastFlush) >= b.flushInterval {
			flush()
		}
	}
}

// deliver publishes one chunk, or buffers it while paused.
func (b *bridge) deliver(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)

	b.pauseMu.Lock()
	if b.paused {
		room := b.pauseCap - len(b.pauseBuf)
		if room > 0 {
			if len(chunk) > room {
				chunk = chunk[len(chunk)-room:]
			}
			b.pauseBuf = append(b.pauseBuf, chunk...)
		}
		b.pauseMu.Unlock()
		return
	}
	b.pauseMu.Unlock()

	b.publish(chunk)
}

func (b *bridge) publish(chunk []byte) {
	seq := b.fanout.Publish(chunk, time.Now())
	b.scrollback.Write(chunk)
	if b.transcript != nil {
		if err := b.transcript.Write(chunk); err != nil {
			b.log.Warn("transcript write failed", zap.Error(err))
		}
	}
	if b.onFrame != nil {
		b.onFrame(seq, len(chunk))
	}
}

// ioLoop writes input and applies control. Control is drained first on
// every iteration so kill and resize are never starved behind buffered
// input.
func (b *bridge) ioLoop() {
	defer close(b.ioDone)

	for {
		// Priority pass: service all queued control before any input.
		select {
		case msg := <-b.ctl.ch:
			b.handleControl(msg)
			continue
		default:
		}

		select {
		case <-b.done:
			return
		case <-b.reaped:
			return
		case msg := <-b.ctl.ch:
			b.handleControl(msg)
		case data, ok := <-b.seqr.Chunks():
			if !ok {
				return
			}
			if err := b.writeAll(data); err != nil {
				b.log.Error("pty write failed", zap.Error(err))
				b.fail(&IOError{Op: "write", Err: err})
				return
			}
		}
	}
}

// writeAll writes a chunk fully, retrying partial writes and one transient
// failure before giving up.
func (b *bridge) writeAll(data []byte) error {
	retried := false
	for len(data) > 0 {
		n, err := b.ptmx.Write(data)
		data = data[n:]
		if err == nil {
			continue
		}
		if !retried && isTransient(err) {
			retried = true
			continue
		}
		return err
	}
	return nil
}

func (b *bridge) handleControl(msg ControlMessage) {
	var err error
	switch msg.Op {
	case OpResize:
		err = pty.Setsize(b.ptmx, &pty.Winsize{Rows: msg.Rows, Cols: msg.Cols})
	case OpPause:
		err = b.pause()
	case OpResume:
		err = b.resume()
	default:
		// Restart and kill are manager-level operations; the bridge only
		// sees them as its own shutdown.
	}

	if msg.reply != nil {
		msg.reply <- err
	}
}

func (b *bridge) pause() error {
	b.pauseMu.Lock()
	if b.paused {
		b.pauseMu.Unlock()
		return nil
	}
	b.paused = true
	b.pauseMu.Unlock()

	if b.cmd.Process != nil {
		return b.cmd.Process.Signal(syscall.SIGSTOP)
	}
	return nil
}

func (b *bridge) resume() error {
	b.pauseMu.Lock()
	if !b.paused {
		b.pauseMu.Unlock()
		return nil
	}
	b.paused = false
	buffered := b.pauseBuf
	b.pauseBuf = nil
	b.pauseMu.Unlock()

	if len(buffered) > 0 {
		b.publish(buffered)
	}
	if b.cmd.Process != nil {
		return b.cmd.Process.Signal(syscall.SIGCONT)
	}
	return nil
}

// control submits a control message and waits for its acknowledgment.
func (b *bridge) control(msg ControlMessage, timeout time.Duration) error {
	return b.ctl.send(msg, b.done, timeout)
}

// reap collects the child's exit status exactly once and reports the
// session's fate upward.
func (b *bridge) reap(ioErr error) {
	b.reapOnce.Do(func() {
		err := b.cmd.Wait()
		code := exitCodeOf(b.cmd, err)

		b.exitMu.Lock()
		b.exitCode = code
		killed := b.killed
		b.exitMu.Unlock()

		close(b.reaped)
		b.closeOnce.Do(func() { _ = b.ptmx.Close() })

		if !killed && b.onExit != nil {
			b.onExit(code, ioErr)
		}
	})
}

// kill forces the bridge down: signal the child, wake the blocked read,
// wait up to grace for the reap, escalate to SIGKILL, and reclaim the
// descriptor regardless of process cooperation. Returns TimeoutError when
// the grace elapsed before the child died (the kill still completed).
func (b *bridge) kill(grace time.Duration) error {
	var timedOut bool

	b.killOnce.Do(func() {
		b.exitMu.Lock()
		b.killed = true
		b.exitMu.Unlock()

		close(b.done)

		if b.cmd.Process != nil {
			_ = b.cmd.Process.Signal(syscall.SIGTERM)
		}

		select {
		case <-b.reaped:
		case <-time.After(grace):
			timedOut = true
			if b.cmd.Process != nil {
				_ = b.cmd.Process.Kill()
			}
			<-b.reaped
		}

		b.closeOnce.Do(func() { _ = b.ptmx.Close() })
	})

	// Racing kills converge here once the first one finishes.
	<-b.reaped
	<-b.ioDone

	if timedOut {
		return &TimeoutError{Op: "kill", Timeout: grace}
	}
	return nil
}

// fail tears the bridge down after a fatal I/O error on the write side.
func (b *bridge) fail(ioErr error) {
	// Wake and stop the read pump; reap reports the failure.
	b.exitMu.Lock()
	alreadyKilled := b.killed
	b.exitMu.Unlock()
	if alreadyKilled {
		return
	}

	if b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
	}
	b.reap(ioErr)
}

// exitCodeOf extracts the child's exit code from cmd.Wait's result.
func exitCodeOf(cmd *exec.Cmd, waitErr error) *int {
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		if code >= 0 {
			return &code
		}
		// Killed by signal: surface the conventional 128+signal code.
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			code = 128 + int(ws.Signal())
			return &code
		}
	}
	if waitErr == nil {
		zero := 0
		return &zero
	}
	return nil
}

// isClosedPTY reports reads that failed because the descriptor was closed
// or the slave side went away, both of which mean a normal end of stream.
func isClosedPTY(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.EBADF)
}

// isTransient reports write errors worth one retry.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}
