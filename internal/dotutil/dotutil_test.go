package dotutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/sync"
	"github.com/km0e/dv/internal/user/local"
	"github.com/km0e/dv/internal/varpath"
)

type memDB struct {
	rows map[[2]string][2]string
}

func newMemDB() *memDB { return &memDB{rows: map[[2]string][2]string{}} }

func (m *memDB) Get(ctx context.Context, device, key string) (string, string, bool, error) {
	row, ok := m.rows[[2]string{device, key}]
	return row[0], row[1], ok, nil
}

func (m *memDB) Set(ctx context.Context, device, key, version, latest string) error {
	m.rows[[2]string{device, key}] = [2]string{version, latest}
	return nil
}

func (m *memDB) Del(ctx context.Context, device, key string) error {
	delete(m.rows, [2]string{device, key})
	return nil
}

func (m *memDB) Close() error { return nil }

func newFacade(t *testing.T) *facade.Facade {
	t.Helper()
	return facade.New(local.New(), varpath.Vars{"os": "linux"})
}

func TestLoadSchemaParsesAppsAndOs(t *testing.T) {
	doc := `
name = "default"

[schema.fish.linux.paths]
default = ["~/.config/fish", "/etc/fish"]
`
	schema, err := LoadSchema(doc)
	require.NoError(t, err)
	assert.Equal(t, "default", schema.Name)

	paths, ok := schema.SearchCompatible("fish", osclass.Linux(osclass.DistroUbuntu))
	require.True(t, ok)
	assert.Equal(t, []string{"~/.config/fish", "/etc/fish"}, paths.Paths["default"])
}

func TestLoadSourceParsesAppsAndOs(t *testing.T) {
	doc := `
name = "dotfiles"

[schema.fish.linux.paths]
default = "fish"
`
	source, err := LoadSource(doc, newFacade(t), "/dotfiles")
	require.NoError(t, err)
	assert.Equal(t, "dotfiles", source.Name)

	paths, ok := source.searchCompatible("fish", osclass.Linux(osclass.DistroDebian))
	require.True(t, ok)
	assert.Equal(t, "fish", paths.Paths["default"])
}

// TestSyncCopiesFromSourceToFirstWorkingCandidate exercises the full
// catalog-driven flow: one app, one alias, a single destination candidate,
// Opts=[Upload] forcing the copy (source exists, destination doesn't).
func TestSyncCopiesFromSourceToFirstWorkingCandidate(t *testing.T) {
	srcRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "fish"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "fish", "config.fish"), []byte("set -x X 1"), 0o644))

	dstRoot := t.TempDir()
	dstCandidate := filepath.Join(dstRoot, "config.fish")

	schemaDoc := `
name = "default"

[schema.fish.linux.paths]
default = ["` + dstCandidate + `"]
`
	sourceDoc := `
name = "dotfiles"

[schema.fish.linux.paths]
default = "fish/config.fish"
`
	schema, err := LoadSchema(schemaDoc)
	require.NoError(t, err)
	source, err := LoadSource(sourceDoc, newFacade(t), srcRoot)
	require.NoError(t, err)

	du := New()
	du.AddSchema(schema)
	du.AddSource(source)

	db := newMemDB()
	err = du.Sync(context.Background(), newFacade(t), "this", db, nil, osclass.Linux(osclass.DistroUbuntu), []App{
		{Name: "fish", Opts: []sync.Opt{sync.Upload}},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(dstCandidate)
	require.NoError(t, err)
	assert.Equal(t, "set -x X 1", string(content))
}

// TestSyncFailsWhenAppMissingFromSchema surfaces a clear error rather than
// silently doing nothing.
func TestSyncFailsWhenAppMissingFromSchema(t *testing.T) {
	srcRoot := t.TempDir()
	sourceDoc := `
name = "dotfiles"

[schema.fish.linux.paths]
default = "fish/config.fish"
`
	source, err := LoadSource(sourceDoc, newFacade(t), srcRoot)
	require.NoError(t, err)

	du := New()
	du.AddSchema(&Schema{Name: "empty", Apps: map[string]map[osclass.Os]AppPaths{}})
	du.AddSource(source)

	err = du.Sync(context.Background(), newFacade(t), "this", newMemDB(), nil, osclass.Linux(osclass.DistroUbuntu), []App{
		{Name: "fish", Opts: []sync.Opt{sync.Upload}},
	})
	assert.Error(t, err)
}
