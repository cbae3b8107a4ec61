package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

type postgresConn struct {
	pool *pgxpool.Pool
}

var _ Conn = (*postgresConn)(nil)

// DialPostgres establishes poolSize independent postgres connections in
// parallel, each backed by its own single-connection pgxpool so that slots
// fail and recover independently. Like DialRedis, construction is
// all-or-nothing.
func DialPostgres(ctx context.Context, dsn string, poolSize int, ttl time.Duration) (*Client, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("cache: pool size must be positive, got %d", poolSize)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid postgres dsn: %w", err)
	}
	cfg.MaxConns = 1

	conns := make([]Conn, poolSize)
	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		i := i
		g.Go(func() error {
			pool, err := pgxpool.NewWithConfig(gctx, cfg)
			if err != nil {
				return fmt.Errorf("cache: dialing postgres connection %d: %w", i, err)
			}
			if err := pool.Ping(gctx); err != nil {
				pool.Close()
				return fmt.Errorf("cache: dialing postgres connection %d: %w", i, err)
			}
			conns[i] = &postgresConn{pool: pool}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, conn := range conns {
			if conn != nil {
				_ = conn.Close()
			}
		}
		return nil, err
	}

	if _, err := conns[0].(*postgresConn).pool.Exec(ctx, postgresSchema); err != nil {
		for _, conn := range conns {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("cache: creating postgres schema: %w", err)
	}

	return New(conns, ttl), nil
}

func (c *postgresConn) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.pool.QueryRow(ctx,
		`SELECT value FROM cache_entries WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *postgresConn) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES ($1, $2, now() + $3)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, ttl,
	)
	return err
}

func (c *postgresConn) Dropped(err error) bool {
	return transportDropped(err)
}

func (c *postgresConn) Close() error {
	c.pool.Close()
	return nil
}
