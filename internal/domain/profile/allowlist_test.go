package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlistEmptyAllowsAll(t *testing.T) {
	allow, err := NewAllowlist(nil)
	require.NoError(t, err)
	assert.True(t, allow.Empty())
	assert.True(t, allow.Allowed("/bin/sh"))
	assert.True(t, allow.Allowed("/anything/at/all"))
}

func TestAllowlistGlobs(t *testing.T) {
	allow, err := NewAllowlist([]string{"/bin/*sh", "/usr/local/**/fish"})
	require.NoError(t, err)

	assert.True(t, allow.Allowed("/bin/bash"))
	assert.True(t, allow.Allowed("/bin/zsh"))
	assert.True(t, allow.Allowed("/bin/sh"))
	assert.True(t, allow.Allowed("/usr/local/opt/fish/fish"))

	assert.False(t, allow.Allowed("/usr/bin/bash"))
	assert.False(t, allow.Allowed("/bin/python3"))
}

func TestAllowlistExactPath(t *testing.T) {
	allow, err := NewAllowlist([]string{"/bin/sh"})
	require.NoError(t, err)
	assert.True(t, allow.Allowed("/bin/sh"))
	assert.False(t, allow.Allowed("/bin/bash"))
}

func TestAllowlistInvalidPattern(t *testing.T) {
	_, err := NewAllowlist([]string{"/bin/[invalid"})
	var patternErr *PatternError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, "/bin/[invalid", patternErr.Pattern)
}
