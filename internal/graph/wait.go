// internal/graph/wait.go
//
// Bounded consistency wait for eventually consistent reads.
//
// Context
// -------
// A write issued through one relay connection is not immediately visible to
// reads on another.  WaitGet retries a Get with exponential backoff inside
// a fixed window before the caller declares NotFound.  The caller supplies
// an accept predicate so it can keep waiting on a node that exists but has
// not finished syncing its payload ("document with no payload" is distinct
// from "no document at all").

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrWaitExpired reports that the wait window closed without an acceptable
// read.  Consumers map this to their NotFound.
var ErrWaitExpired = errors.New("graph: wait window expired")

// WaitGet polls s.Get(path) until accept returns true or window elapses.
// accept receives nil raw JSON for absent or tombstoned nodes.  Transport
// errors keep the retry loop going; only the window bounds it.
func WaitGet(ctx context.Context, s Store, path string, window time.Duration, accept func(json.RawMessage) bool) (json.RawMessage, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 150 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = window

	var result json.RawMessage
	op := func() error {
		raw, err := s.Get(ctx, path)
		if err != nil {
			return err
		}
		if !accept(raw) {
			return ErrWaitExpired // retried until the policy gives up
		}
		result = raw
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, ErrWaitExpired) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrWaitExpired
		}
		return nil, err
	}
	return result, nil
}
