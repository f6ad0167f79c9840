package kv

import (
	"context"

	"github.com/km0e/dv/internal/dvlog"
)

// MultiDB fans a KV operation out over several backends (spec §4.4): reads
// try each backend in order and return the first hit, logging and skipping
// a backend whose read errors; writes and deletes go to every backend and
// abort on the first error.
type MultiDB struct {
	backends []DB
}

var _ DB = (*MultiDB)(nil)

// NewMultiDB wraps backends, in priority order for reads.
func NewMultiDB(backends ...DB) *MultiDB {
	return &MultiDB{backends: backends}
}

func (m *MultiDB) Get(ctx context.Context, device, key string) (string, string, bool, error) {
	for _, b := range m.backends {
		version, latest, ok, err := b.Get(ctx, device, key)
		if err != nil {
			dvlog.Errorf(device, "kv backend read failed, skipping: %v", err)
			continue
		}
		if ok {
			return version, latest, true, nil
		}
	}
	return "", "", false, nil
}

func (m *MultiDB) Set(ctx context.Context, device, key, version, latest string) error {
	for _, b := range m.backends {
		if err := b.Set(ctx, device, key, version, latest); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiDB) Del(ctx context.Context, device, key string) error {
	for _, b := range m.backends {
		if err := b.Del(ctx, device, key); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiDB) Close() error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
