package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStoreYAML(t *testing.T) {
	path := writeProfiles(t, "profiles.yaml", `
profiles:
  dev:
    shell: /bin/bash
    args: ["-l"]
    cwd: /tmp
    env:
      EDITOR: vim
    rows: 40
    cols: 120
    title: Dev Shell
  minimal:
    shell: /bin/sh
`)

	store, err := LoadStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []string{"dev", "minimal"}, store.Names())

	dev, ok := store.Resolve("dev")
	require.True(t, ok)
	assert.Equal(t, "/bin/bash", dev.Shell)
	assert.Equal(t, []string{"-l"}, dev.Args)
	assert.Equal(t, "/tmp", dev.Cwd)
	assert.Equal(t, "vim", dev.Env["EDITOR"])
	assert.Equal(t, uint16(40), dev.Rows)
	assert.Equal(t, uint16(120), dev.Cols)
	assert.Equal(t, "Dev Shell", dev.Title)

	_, ok = store.Resolve("missing")
	assert.False(t, ok)
}

func TestLoadStoreTOML(t *testing.T) {
	path := writeProfiles(t, "profiles.toml", `
[profiles.ops]
shell = "/bin/zsh"
args = ["-i"]
rows = 50
cols = 200

[profiles.ops.env]
PAGER = "less"
`)

	store, err := LoadStore(path)
	require.NoError(t, err)

	ops, ok := store.Resolve("ops")
	require.True(t, ok)
	assert.Equal(t, "/bin/zsh", ops.Shell)
	assert.Equal(t, []string{"-i"}, ops.Args)
	assert.Equal(t, "less", ops.Env["PAGER"])
	assert.Equal(t, uint16(50), ops.Rows)
}

func TestLoadStoreMissingFile(t *testing.T) {
	store, err := LoadStore(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestLoadStoreUnsupportedExtension(t *testing.T) {
	path := writeProfiles(t, "profiles.ini", "[profiles]")
	_, err := LoadStore(path)
	assert.Error(t, err)
}

func TestLoadStoreInvalidName(t *testing.T) {
	path := writeProfiles(t, "profiles.yaml", `
profiles:
  "Bad Name!":
    shell: /bin/sh
`)
	_, err := LoadStore(path)
	assert.Error(t, err)
}

func TestLoadStoreInvalidEnvKey(t *testing.T) {
	path := writeProfiles(t, "profiles.yaml", `
profiles:
  dev:
    shell: /bin/sh
    env:
      "1BAD": value
`)
	_, err := LoadStore(path)
	assert.Error(t, err)
}

func TestLoadStoreMalformedYAML(t *testing.T) {
	path := writeProfiles(t, "profiles.yaml", "profiles: [not a map")
	_, err := LoadStore(path)
	assert.Error(t, err)
}
