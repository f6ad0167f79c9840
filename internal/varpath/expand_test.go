package varpath

import (
	"testing"

	"github.com/km0e/dv/internal/dverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSubstitution(t *testing.T) {
	vars := Vars{"HOME": "/home/alice", "os": "linux"}
	out, err := Expand("${HOME}/.config", vars)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.config", out)
}

func TestExpandUnknownVariable(t *testing.T) {
	_, err := Expand("${NOPE}/x", Vars{})
	require.Error(t, err)
	assert.Equal(t, dverr.UnknownVariable, dverr.Of(err))
}

func TestExpandPassthrough(t *testing.T) {
	out, err := Expand("plain/path", Vars{})
	require.NoError(t, err)
	assert.Equal(t, "plain/path", out)
}

func TestNormalizeTilde(t *testing.T) {
	vars := Vars{"HOME": "/home/bob"}
	out, err := Normalize("~/dotfiles", vars)
	require.NoError(t, err)
	assert.Equal(t, "/home/bob/dotfiles", out)

	out, err = Normalize("~", vars)
	require.NoError(t, err)
	assert.Equal(t, "/home/bob", out)
}

func TestNormalizeTildeNoHome(t *testing.T) {
	_, err := Normalize("~/dotfiles", Vars{})
	require.Error(t, err)
	assert.Equal(t, dverr.UnknownHome, dverr.Of(err))
}

func TestNormalizeMountPrefix(t *testing.T) {
	vars := Vars{"mount": "/mnt/remote"}
	out, err := Normalize("etc/hosts", vars)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/remote/etc/hosts", out)
}

func TestNormalizeRootShortCircuits(t *testing.T) {
	vars := Vars{"mount": "/mnt/remote", "HOME": "/home/alice"}
	out, err := Normalize("/etc/hosts", vars)
	require.NoError(t, err)
	assert.Equal(t, "/etc/hosts", out)
}

func TestNormalizeIdempotent(t *testing.T) {
	vars := Vars{"mount": "/mnt/remote", "HOME": "/home/alice"}
	for _, p := range []string{"etc/hosts", "~/dotfiles", "/abs/path", "${HOME}/x"} {
		once, err := Normalize(p, vars)
		require.NoError(t, err)
		twice, err := Normalize(once, vars)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalize not idempotent for %q", p)
	}
}
