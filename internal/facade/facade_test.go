package facade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km0e/dv/internal/user"
	"github.com/km0e/dv/internal/user/local"
	"github.com/km0e/dv/internal/varpath"
)

func TestExistMatchesFileAttributesPresence(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))
	missing := filepath.Join(dir, "missing")

	f := New(local.New(), varpath.Vars{"os": "linux"})
	ctx := context.Background()

	ok, err := f.Exist(ctx, present)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Exist(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMtimeNilWhenMissing(t *testing.T) {
	dir := t.TempDir()
	f := New(local.New(), varpath.Vars{"os": "linux"})
	mtime, err := f.GetMtime(context.Background(), filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Nil(t, mtime)
}

func TestCheckPathDistinguishesDirAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	f := New(local.New(), varpath.Vars{"os": "linux"})
	ctx := context.Background()

	info, err := f.CheckPath(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, user.CheckDir, info.Kind)

	info, err = f.CheckPath(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, user.CheckFile, info.Kind)
}

func TestCheckDirFailsOnFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	f := New(local.New(), varpath.Vars{"os": "linux"})
	_, err := f.CheckDir(context.Background(), file)
	assert.Error(t, err)
}

func TestNormalizeAppliedExactlyOnceThroughMountPrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	f := New(local.New(), varpath.Vars{"os": "linux", "mount": dir})
	ok, err := f.Exist(context.Background(), "f")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRmIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	f := New(local.New(), varpath.Vars{"os": "linux"})
	ctx := context.Background()
	assert.NoError(t, f.Rm(ctx, filepath.Join(dir, "never-existed")))
}
