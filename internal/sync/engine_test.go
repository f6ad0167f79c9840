package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/interactor"
	"github.com/km0e/dv/internal/kv"
	"github.com/km0e/dv/internal/user/local"
	"github.com/km0e/dv/internal/varpath"
)

// memDB is a minimal in-process kv.DB used across the engine tests.
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
	if key == "" {
		for k := range m.rows {
			if k[0] == device {
				delete(m.rows, k)
			}
		}
		return nil
	}
	delete(m.rows, [2]string{device, key})
	return nil
}

func (m *memDB) Close() error { return nil }

// fixedPrompter always returns the same index, recording every call it saw.
type fixedPrompter struct {
	index int
	calls []string
}

func (p *fixedPrompter) Confirm(ctx context.Context, message string, options []interactor.Option) (int, error) {
	p.calls = append(p.calls, message)
	return p.index, nil
}

func newLocalFacade(t *testing.T) *facade.Facade {
	t.Helper()
	return facade.New(local.New(), varpath.Vars{"os": "linux"})
}

func setMtime(t *testing.T, path string, ts time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, ts, ts))
}

// S1 — first-time copy: src exists, dst missing. A pair with no dst at all
// classifies via select_src ({Upload, DeleteSrc}), not select_both, so the
// matching opt here is Upload (Overwrite only ever appears when both sides
// already exist — see classifyPair).
func TestScanExecuteFirstTimeCopy(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcFile := filepath.Join(srcDir, "f0")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0o644))
	dstFile := filepath.Join(dstDir, "f0")

	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: newMemDB()}
	ctx := context.Background()

	entries, err := eng.Scan(ctx, srcFile, dstFile, []Opt{Upload})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Upload, entries[0].Opt)

	require.NoError(t, eng.Execute(ctx, entries))

	content, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	version, latest, found, err := eng.DB.Get(ctx, "this", dstFile)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, version)
	assert.NotEmpty(t, latest)
}

// S2 — unchanged: db already reflects current mtimes on both sides, so
// candidates are empty and nothing is scanned into the plan.
func TestScanUnchangedProducesNoEntries(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcFile := filepath.Join(srcDir, "f0")
	dstFile := filepath.Join(dstDir, "f0")
	require.NoError(t, os.WriteFile(srcFile, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(dstFile, []byte("b"), 0o644))

	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)
	setMtime(t, srcFile, t1)
	setMtime(t, dstFile, t2)

	db := newMemDB()
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "this", dstFile, kv.FormatInt64(t1.Unix()), kv.FormatInt64(t2.Unix())))

	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: db}
	entries, err := eng.Scan(ctx, srcFile, dstFile, []Opt{Overwrite, Update})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// S3 — both changed, opts=[] forces a prompt; the interactor picks overwrite.
func TestScanBothChangedPromptsAndOverwrites(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcFile := filepath.Join(srcDir, "f0")
	dstFile := filepath.Join(dstDir, "f0")
	require.NoError(t, os.WriteFile(srcFile, []byte("new-src"), 0o644))
	require.NoError(t, os.WriteFile(dstFile, []byte("new-dst"), 0o644))
	setMtime(t, srcFile, time.Unix(3000, 0))
	setMtime(t, dstFile, time.Unix(4000, 0))

	db := newMemDB()
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "this", dstFile, kv.FormatInt64(1000), kv.FormatInt64(2000)))

	prompter := &fixedPrompter{index: 0} // first candidate bit in fixed enum order == Overwrite
	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: db, Prompter: prompter}

	entries, err := eng.Scan(ctx, srcFile, dstFile, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Overwrite, entries[0].Opt)
	assert.Len(t, prompter.calls, 1)

	require.NoError(t, eng.Execute(ctx, entries))
	content, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, "new-src", string(content))
}

// S4 — delete right: src missing, dst present, Opts=[DeleteDst].
func TestScanExecuteDeleteDst(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcFile := filepath.Join(srcDir, "f0")
	dstFile := filepath.Join(dstDir, "f0")
	require.NoError(t, os.WriteFile(dstFile, []byte("x"), 0o644))

	db := newMemDB()
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "this", dstFile, "1", "2"))

	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: db}
	entries, err := eng.Scan(ctx, srcFile, dstFile, []Opt{DeleteDst})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DeleteDst, entries[0].Opt)

	require.NoError(t, eng.Execute(ctx, entries))
	_, err = os.Stat(dstFile)
	assert.True(t, os.IsNotExist(err))
	_, _, found, err := db.Get(ctx, "this", dstFile)
	require.NoError(t, err)
	assert.False(t, found)
}

// Boundary: a directory sync with only left-side files yields all UPLOAD
// entries when Opts=[Upload].
func TestScanDirectoryUploadOnly(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b"), []byte("b"), 0o644))

	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: newMemDB()}
	entries, err := eng.Scan(context.Background(), srcDir, dstDir, []Opt{Upload})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, Upload, e.Opt)
	}
}

// Boundary: Opts containing a single zero-value element always resolves to
// skip, regardless of the candidate state.
func TestScanOptsZeroElementAlwaysSkips(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcFile := filepath.Join(srcDir, "f0")
	dstFile := filepath.Join(dstDir, "f0")
	require.NoError(t, os.WriteFile(srcFile, []byte("x"), 0o644))

	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: newMemDB()}
	entries, err := eng.Scan(context.Background(), srcFile, dstFile, []Opt{0})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Boundary: both sides missing is a MismatchedKinds error.
func TestScanBothMissingFails(t *testing.T) {
	dir := t.TempDir()
	eng := &Engine{Src: newLocalFacade(t), Dst: newLocalFacade(t), DstUID: "this", DB: newMemDB()}
	_, err := eng.Scan(context.Background(), filepath.Join(dir, "a"), filepath.Join(dir, "b"), []Opt{Overwrite})
	assert.Error(t, err)
}
