package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrEmptyResultSet means the upstream legitimately returned zero matches for
// the query. It is a terminal, non-retryable outcome, not a fault: callers
// should treat it as "no results from this backend".
var ErrEmptyResultSet = errors.New("engine: upstream returned no results")

// UnexpectedError reports an internal construction failure, such as a
// malformed extraction pattern or an unbuildable request. These are
// programming-time invariant violations, so the error carries enough detail
// to diagnose without logs.
type UnexpectedError struct {
	Engine string
	Reason string
	Err    error
}

func (e *UnexpectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine %s: %s: %v", e.Engine, e.Reason, e.Err)
	}
	return fmt.Sprintf("engine %s: %s", e.Engine, e.Reason)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// RequestError wraps a network-class failure from the upstream fetch. The
// underlying transport error propagates unmodified.
type RequestError struct {
	Engine string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("engine %s: request to %s failed: %v", e.Engine, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because the caller-supplied
// timeout elapsed.
func (e *RequestError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// BlockedError means the upstream served a bot challenge or block page
// instead of results. Parsing such a page would only yield garbage.
type BlockedError struct {
	Engine string
	Source string // e.g. "Cloudflare", "DuckDuckGo"
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("engine %s: blocked by %s challenge page", e.Engine, e.Source)
}
