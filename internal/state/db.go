// Package state keeps cipipe's per-user run history in SQLite.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Parallel cipipe invocations on one CI host share the file; a writer waits
// this long for the lock before giving up.
const busyTimeout = 5 * time.Second

// DB is a handle on the state database.
type DB struct {
	sql *sql.DB
}

// Open opens the state database at path, creating the file and its directory
// when missing. The caller closes the handle.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("state db: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("state db: %w", err)
	}

	// modernc.org/sqlite takes pragmas as repeated _pragma parameters
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state db %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("state db %s: %w", path, err)
	}

	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
