package cache

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Conn is a single slot in the connection pool. Implementations wrap one
// underlying cache store handle and are expected to perform their own
// background reconnection, so a slot that drops during one call may be healthy
// again on the next.
type Conn interface {
	// Get fetches the value stored under key. A missing or expired key is
	// reported as ok == false with a nil error, never as an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetEx stores value under key with the given time to live.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Dropped classifies an error returned by this connection: true means the
	// transport is no longer usable and the caller should fail over to the
	// next pool slot, false means a protocol-level failure that must not be
	// retried.
	Dropped(err error) bool

	Close() error
}

// transportDropped is the shared classification for network-backed stores.
// It matches the closed/reset/broken-pipe class of failures; timeouts and
// protocol errors are deliberately excluded.
func transportDropped(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !opErr.Timeout()
	}
	return false
}
