package terminal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"

	"github.com/GriffinCanCode/TermStream/internal/shared/paths"
)

// Transcript appends a session's raw output to disk. When the active file
// exceeds rotateBytes it is compressed to a numbered .log.gz alongside it
// and a fresh file is started.
type Transcript struct {
	mu          sync.Mutex
	file        *os.File
	layout      paths.Layout
	sessionID   string
	written     int64
	rotateBytes int64
	index       int
	closed      bool
}

// OpenTranscript creates or truncates the transcript for a session. The
// session ID doubles as the filename, so it is validated against path
// traversal first.
func OpenTranscript(layout paths.Layout, sessionID string, rotateBytes int64) (*Transcript, error) {
	if err := paths.ValidateSessionFilename(sessionID); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(layout.Transcripts(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	file, err := os.OpenFile(layout.Transcript(sessionID), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}

	return &Transcript{
		file:        file,
		layout:      layout,
		sessionID:   sessionID,
		rotateBytes: rotateBytes,
	}, nil
}

// Path returns the active transcript file path.
func (t *Transcript) Path() string {
	return t.layout.Transcript(t.sessionID)
}

// Write appends output, rotating first if the active file is over the
// threshold.
func (t *Transcript) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return os.ErrClosed
	}

	if t.rotateBytes > 0 && t.written >= t.rotateBytes {
		if err := t.rotate(); err != nil {
			return err
		}
	}

	n, err := t.file.Write(p)
	t.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

// rotate compresses the active file to the next .log.gz and starts fresh.
// Called with the lock held.
func (t *Transcript) rotate() error {
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript for rotation: %w", err)
	}

	active := t.layout.Transcript(t.sessionID)
	rotated := t.layout.TranscriptRotated(t.sessionID, t.index)
	if err := compressFile(active, rotated); err != nil {
		return err
	}
	t.index++

	file, err := os.OpenFile(active, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen transcript: %w", err)
	}
	t.file = file
	t.written = 0
	return nil
}

// Close flushes and closes the active file.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.file.Close()
}

// compressFile gzips src into dst and removes src.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s for compression: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finish compressing %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return os.Remove(src)
}

// SweepTranscripts deletes transcript files older than maxAge. Returns the
// number of files removed.
func SweepTranscripts(dir string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	var (
		mu      sync.Mutex
		removed int
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".log" && ext != ".gz" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}
		return nil
	})

	return removed, err
}
