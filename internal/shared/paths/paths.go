package paths

import (
	"fmt"
	"path/filepath"
)

// Subdirectories under the data root
const (
	TranscriptsDir = "transcripts"
)

// Default locations
const (
	DefaultDataDir  = "/var/lib/termstream"
	DefaultProfiles = "profiles.yaml"
)

// Layout resolves paths inside a data root.
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at the given directory, falling back to
// the default root when empty.
func NewLayout(root string) Layout {
	if root == "" {
		root = DefaultDataDir
	}
	return Layout{Root: root}
}

// Transcripts returns the transcript directory
func (l Layout) Transcripts() string {
	return filepath.Join(l.Root, TranscriptsDir)
}

// Transcript returns the transcript file path for a session
func (l Layout) Transcript(sessionID string) string {
	return filepath.Join(l.Transcripts(), sessionID+".log")
}

// TranscriptRotated returns the rotated, compressed transcript path for a
// session and rotation index
func (l Layout) TranscriptRotated(sessionID string, index int) string {
	return filepath.Join(l.Transcripts(), fmt.Sprintf("%s.%d.log.gz", sessionID, index))
}

// Profiles returns the profile file path, resolving relative paths against
// the data root
func (l Layout) Profiles(configured string) string {
	if configured == "" {
		return filepath.Join(l.Root, DefaultProfiles)
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(l.Root, configured)
}

// StandardDirectories returns all directories that should exist under the
// root
func (l Layout) StandardDirectories() []string {
	return []string{
		l.Root,
		l.Transcripts(),
	}
}

// ValidateSessionFilename checks that a session ID is safe for path
// construction
func ValidateSessionFilename(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if filepath.IsAbs(sessionID) {
		return fmt.Errorf("session ID cannot be an absolute path")
	}
	if filepath.Clean(sessionID) != sessionID || filepath.Base(sessionID) != sessionID {
		return fmt.Errorf("session ID contains invalid path components")
	}
	return nil
}
