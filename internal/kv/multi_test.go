package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory DB used to exercise MultiDB without a real sqlite
// file; failRead optionally forces Get to error, for the degraded-mode test.
type memDB struct {
	rows     map[[2]string][2]string
	failRead bool
}

func newMemDB() *memDB { return &memDB{rows: map[[2]string][2]string{}} }

func (m *memDB) Get(ctx context.Context, device, key string) (string, string, bool, error) {
	if m.failRead {
		return "", "", false, errors.New("backend unavailable")
	}
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

func TestMultiDBReadSkipsFailingBackend(t *testing.T) {
	ctx := context.Background()
	bad := &memDB{failRead: true}
	good := newMemDB()
	require.NoError(t, good.Set(ctx, "dev", "k", "1", "2"))

	multi := NewMultiDB(bad, good)
	version, latest, ok, err := multi.Get(ctx, "dev", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", version)
	assert.Equal(t, "2", latest)
}

func TestMultiDBWriteFansOutToAllBackends(t *testing.T) {
	ctx := context.Background()
	a, b := newMemDB(), newMemDB()
	multi := NewMultiDB(a, b)
	require.NoError(t, multi.Set(ctx, "dev", "k", "3", "4"))

	for _, backend := range []*memDB{a, b} {
		version, latest, ok, err := backend.Get(ctx, "dev", "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "3", version)
		assert.Equal(t, "4", latest)
	}
}

func TestMultiDBDeleteAllRowsForDevice(t *testing.T) {
	ctx := context.Background()
	a := newMemDB()
	require.NoError(t, a.Set(ctx, "dev", "k1", "1", "1"))
	require.NoError(t, a.Set(ctx, "dev", "k2", "1", "1"))
	multi := NewMultiDB(a)
	require.NoError(t, multi.Del(ctx, "dev", ""))

	_, _, ok, err := a.Get(ctx, "dev", "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAsParsesBothFields(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	require.NoError(t, db.Set(ctx, "dev", "k", "10", "20"))
	version, latest, ok, err := GetAs(ctx, db, "dev", "k", ParseInt64)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), version)
	assert.Equal(t, int64(20), latest)
}

func TestGetAsFailsOnUnparsableField(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	require.NoError(t, db.Set(ctx, "dev", "k", "not-a-number", "20"))
	_, _, ok, err := GetAs(ctx, db, "dev", "k", ParseInt64)
	assert.True(t, ok)
	assert.Error(t, err)
}
