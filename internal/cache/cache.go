// Package cache implements the fault-tolerant result cache: a fixed pool of
// pre-established cache store connections with explicit linear failover. Each
// logical get or put walks the pool from slot zero, skipping connections that
// fail with a connection-dropped error and giving up only once every slot has
// dropped. Any other store error fails the operation immediately.
package cache

import (
	"context"
	"time"

	"github.com/sievesearch/sieve/internal/metrics"
)

// DefaultTTL is how long a cached result set stays retrievable after a write.
const DefaultTTL = 60 * time.Second

// Client is a pooled cache client. It is safe for concurrent use: the
// failover cursor is local to each call and walks a read-only view of the
// pool, so concurrent operations never observe each other's retry state.
type Client struct {
	pool []Conn
	ttl  time.Duration
}

// New builds a Client over an already-dialed pool. The pool slice is not
// copied; callers hand over ownership. A zero ttl means DefaultTTL.
func New(pool []Conn, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{pool: pool, ttl: ttl}
}

// PoolSize returns the number of connections held by the client.
func (c *Client) PoolSize() int { return len(c.pool) }

// Get looks up the cached result set for url. A hit returns the stored value
// with ok == true; a miss returns ok == false and a nil error. Both are
// ordinary outcomes the caller must distinguish from the error cases.
func (c *Client) Get(ctx context.Context, url string) (value string, ok bool, err error) {
	key := Key(url)
	for cursor := 0; cursor < len(c.pool); cursor++ {
		conn := c.pool[cursor]
		value, ok, err = conn.Get(ctx, key)
		if err == nil {
			return value, ok, nil
		}
		if !conn.Dropped(err) {
			return "", false, &BackendError{Key: key, Err: err}
		}
		metrics.CacheFailovers.Inc()
	}
	return "", false, ErrPoolExhausted
}

// Put stores the serialized result set for url with the configured TTL,
// using the same per-call failover walk as Get.
func (c *Client) Put(ctx context.Context, url, value string) error {
	key := Key(url)
	for cursor := 0; cursor < len(c.pool); cursor++ {
		conn := c.pool[cursor]
		err := conn.SetEx(ctx, key, value, c.ttl)
		if err == nil {
			return nil
		}
		if !conn.Dropped(err) {
			return &BackendError{Key: key, Err: err}
		}
		metrics.CacheFailovers.Inc()
	}
	return ErrPoolExhausted
}

// Close closes every pool connection, returning the first error encountered.
func (c *Client) Close() error {
	var first error
	for _, conn := range c.pool {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
