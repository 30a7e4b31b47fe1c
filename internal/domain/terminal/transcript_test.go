package terminal

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermStream/internal/shared/paths"
)

func TestTranscriptAppends(t *testing.T) {
	layout := paths.NewLayout(t.TempDir())
	tr, err := OpenTranscript(layout, "sess_test", 0)
	require.NoError(t, err)

	require.NoError(t, tr.Write([]byte("hello ")))
	require.NoError(t, tr.Write([]byte("world")))
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(layout.Transcript("sess_test"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestTranscriptRejectsUnsafeName(t *testing.T) {
	layout := paths.NewLayout(t.TempDir())
	_, err := OpenTranscript(layout, "../escape", 0)
	assert.Error(t, err)
	_, err = OpenTranscript(layout, "/etc/passwd", 0)
	assert.Error(t, err)
}

func TestTranscriptRotatesAndCompresses(t *testing.T) {
	layout := paths.NewLayout(t.TempDir())
	tr, err := OpenTranscript(layout, "sess_rot", 10)
	require.NoError(t, err)

	first := bytes.Repeat([]byte("a"), 12)
	require.NoError(t, tr.Write(first))
	// Over the threshold now; the next write rotates first.
	require.NoError(t, tr.Write([]byte("second")))
	require.NoError(t, tr.Close())

	gz, err := os.Open(layout.TranscriptRotated("sess_rot", 0))
	require.NoError(t, err)
	defer gz.Close()

	r, err := gzip.NewReader(gz)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, first, decompressed)

	active, err := os.ReadFile(layout.Transcript("sess_rot"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(active))
}

func TestTranscriptWriteAfterClose(t *testing.T) {
	layout := paths.NewLayout(t.TempDir())
	tr, err := OpenTranscript(layout, "sess_closed", 0)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close()) // idempotent

	assert.ErrorIs(t, tr.Write([]byte("late")), os.ErrClosed)
}

func TestSweepTranscripts(t *testing.T) {
	layout := paths.NewLayout(t.TempDir())
	require.NoError(t, os.MkdirAll(layout.Transcripts(), 0o755))

	old := layout.Transcript("sess_old")
	require.NoError(t, os.WriteFile(old, []byte("stale"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fresh := layout.Transcript("sess_fresh")
	require.NoError(t, os.WriteFile(fresh, []byte("recent"), 0o644))

	removed, err := SweepTranscripts(layout.Transcripts(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepTranscriptsMissingDir(t *testing.T) {
	removed, err := SweepTranscripts("/nonexistent/path/for/test", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
