package cache

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned when every connection in the pool failed with a
// connection-dropped error during a single logical get or put. The next call
// starts over from the first slot, so this is not a sticky condition.
var ErrPoolExhausted = errors.New("cache: connection pool exhausted, all pooled connections dropped")

// BackendError wraps any cache store failure that is not a connection drop.
// These fail the operation immediately without touching further pool slots.
type BackendError struct {
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache: backend error for key %s: %v", e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
