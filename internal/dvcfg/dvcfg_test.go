package dvcfg

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlagsOverridesDefault(t *testing.T) {
	c := New()
	flags := pflag.NewFlagSet("dv", pflag.ContinueOnError)
	c.AddFlags(flags)

	require.NoError(t, flags.Parse([]string{"--dry-run", "--db", "/tmp/custom.db"}))
	assert.True(t, c.DryRun)
	assert.Equal(t, "/tmp/custom.db", c.DBPath)
}

func TestEnsureDirsCreatesCacheAndDBParent(t *testing.T) {
	base := t.TempDir()
	c := &Config{
		CacheDir: filepath.Join(base, "cache"),
		DBPath:   filepath.Join(base, "state", "dv.db"),
	}
	require.NoError(t, c.EnsureDirs())

	assert.DirExists(t, c.CacheDir)
	assert.DirExists(t, filepath.Join(base, "state"))
}
