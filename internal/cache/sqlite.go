package cache

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

type sqliteConn struct {
	db  *sql.DB
	now func() time.Time
}

var _ Conn = (*sqliteConn)(nil)

// OpenSQLite opens an embedded sqlite cache store and returns a Client over
// it. All pool slots share the single database handle: a local file cannot
// drop its connection the way a network store can, so the failover walk is
// effectively a no-op here, but the client behaves identically otherwise.
func OpenSQLite(dsn string, poolSize int, ttl time.Duration) (*Client, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("cache: pool size must be positive, got %d", poolSize)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: opening sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: creating sqlite schema: %w", err)
	}

	conns := make([]Conn, poolSize)
	for i := range conns {
		conns[i] = &sqliteConn{db: db, now: time.Now}
	}
	return New(conns, ttl), nil
}

func (c *sqliteConn) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if c.now().UnixMilli() >= expiresAt {
		// Lazy expiry; the delete is best effort.
		_, _ = c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return "", false, nil
	}
	return value, true, nil
}

func (c *sqliteConn) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl).UnixMilli()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

func (c *sqliteConn) Dropped(err error) bool {
	return errors.Is(err, driver.ErrBadConn)
}

// Close is a no-op on all but one slot since the handle is shared; sql.DB
// tolerates repeated Close calls.
func (c *sqliteConn) Close() error {
	return c.db.Close()
}
