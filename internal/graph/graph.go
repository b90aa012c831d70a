// internal/graph/graph.go
//
// Graph-database boundary: path-addressed get/put plus subscriptions.
//
// Context
// -------
// All Site Records and Name Mapping Records live in an eventually
// consistent, path-addressed store shared with external publishers.  This
// package defines the minimal contract the rest of the repo programs
// against, and the Subscription type that replaces ad-hoc callback wiring:
// a cancellable handle yielding (key, value-or-tombstone) events until
// explicitly unsubscribed.
//
// Two implementations exist: Client (HTTP relay, client.go) and
// MemoryStore (in-process, memory.go) for tests and dry runs.
//
// Notes
// -----
// • A nil value passed to Put is an explicit tombstone.
// • Get returns nil raw JSON for both "never written" and "tombstoned";
//   consumers must treat the two identically.

package graph

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnreachable reports that the backing store could not be contacted.
var ErrUnreachable = errors.New("graph: store unreachable")

// Store is the path-addressed contract shared by all implementations.
type Store interface {
	// Put writes value (JSON-marshalled) at path.  A nil value writes an
	// explicit tombstone.
	Put(ctx context.Context, path string, value any) error

	// Get returns the raw JSON at path, or nil when the path was never
	// written or holds a tombstone.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Subscribe streams current children of path and every future update
	// until the subscription is cancelled.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Event is one update observed under a subscribed path.
type Event struct {
	Key       string          // child key relative to the subscribed path
	Data      json.RawMessage // nil when Tombstone is set
	Tombstone bool
}

// Subscription is a cancellable event stream.  Events stops delivering after
// Unsubscribe returns; the channel is closed by the producer.
type Subscription struct {
	Events <-chan Event
	cancel context.CancelFunc
}

// NewSubscription wraps a producer-owned channel and its cancel function.
// Implementations construct subscriptions through this helper so callers
// always get the same unsubscribe semantics.
func NewSubscription(events <-chan Event, cancel context.CancelFunc) *Subscription {
	return &Subscription{Events: events, cancel: cancel}
}

// Unsubscribe stops the stream.  Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}
