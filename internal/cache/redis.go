package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type redisConn struct {
	rdb *goredis.Client
}

var _ Conn = (*redisConn)(nil)

// DialRedis establishes poolSize independent redis connections in parallel
// and returns a Client over them. Construction is all-or-nothing: if any
// connection fails to dial, every already-dialed connection is closed and an
// error is returned. Each slot is its own client limited to a single socket,
// so the pool, not the driver, decides how many connections exist; go-redis
// reconnects a dropped socket in the background, which is what makes skipping
// a slot for just one call a sound recovery strategy.
func DialRedis(ctx context.Context, redisURL string, poolSize int, ttl time.Duration) (*Client, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("cache: pool size must be positive, got %d", poolSize)
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis url: %w", err)
	}
	opts.PoolSize = 1

	conns := make([]Conn, poolSize)
	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		i := i
		g.Go(func() error {
			rdb := goredis.NewClient(opts)
			if err := rdb.Ping(gctx).Err(); err != nil {
				_ = rdb.Close()
				return fmt.Errorf("cache: dialing redis connection %d: %w", i, err)
			}
			conns[i] = &redisConn{rdb: rdb}
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

	return New(conns, ttl), nil
}

func (c *redisConn) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisConn) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (c *redisConn) Dropped(err error) bool {
	return transportDropped(err)
}

func (c *redisConn) Close() error {
	return c.rdb.Close()
}
