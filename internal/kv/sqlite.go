package kv

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/km0e/dv/internal/dverr"
)

// schema is the single table spec §6 mandates. Created on open if absent.
const schema = `CREATE TABLE IF NOT EXISTS cache (
	device  TEXT NOT NULL,
	key     TEXT NOT NULL,
	version TEXT NOT NULL,
	latest  TEXT NOT NULL,
	PRIMARY KEY (device, key)
)`

// SQLite is the concrete single-table backend (spec §4.4, §6), driven by
// the pure-Go modernc.org/sqlite driver (the only sqlite driver anywhere in
// the example pack). The connection is guarded by a mutex, so Get, Set,
// Del and Close each run their single statement one at a time.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

var _ DB = (*SQLite)(nil)

// Open opens (creating if absent) a sqlite-backed KV store at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dverr.Wrap(dverr.Sqlite, "open "+path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, dverr.Wrap(dverr.Sqlite, "create schema", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, device, key string) (string, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `SELECT version, latest FROM cache WHERE device = ? AND key = ?`, device, key)
	var version, latest string
	switch err := row.Scan(&version, &latest); err {
	case nil:
		return version, latest, true, nil
	case sql.ErrNoRows:
		return "", "", false, nil
	default:
		return "", "", false, dverr.Wrap(dverr.Sqlite, "get "+device+"/"+key, err)
	}
}

func (s *SQLite) Set(ctx context.Context, device, key, version, latest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (device, key, version, latest) VALUES (?, ?, ?, ?)`,
		device, key, version, latest)
	if err != nil {
		return dverr.Wrap(dverr.Sqlite, "set "+device+"/"+key, err)
	}
	return nil
}

func (s *SQLite) Del(ctx context.Context, device, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if key == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache WHERE device = ?`, device)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache WHERE device = ? AND key = ?`, device, key)
	}
	if err != nil {
		return dverr.Wrap(dverr.Sqlite, "del "+device+"/"+key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return dverr.Wrap(dverr.Sqlite, "close", err)
	}
	return nil
}
