// internal/graph/memory.go
//
// In-process Store with last-write-wins semantics.
//
// Context
// -------
// MemoryStore backs unit tests and CLI dry runs.  It mirrors the relay's
// observable behaviour: last write wins per path, tombstones read back as
// absent, and subscribers receive both a snapshot of existing children and
// every later update.  There is no artificial propagation delay; tests that
// exercise the consistency wait inject their own.

package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is safe for concurrent use.  Zero value is unusable;
// construct with NewMemoryStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
	subs map[int]*memSub
	next int
}

type memSub struct {
	prefix string
	ch     chan Event
	done   chan struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]json.RawMessage),
		subs: make(map[int]*memSub),
	}
}

// Put marshals value at path, or tombstones the path when value is nil.
func (m *MemoryStore) Put(ctx context.Context, path string, value any) error {
	var raw json.RawMessage
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("graph: marshal %s: %w", path, err)
		}
		raw = b
	}

	m.mu.Lock()
	if raw == nil {
		delete(m.data, path)
	} else {
		m.data[path] = raw
	}
	subs := make([]*memSub, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.notify(path, raw)
	}
	return nil
}

// Get returns the raw JSON at path, nil for absent or tombstoned paths.
func (m *MemoryStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[path], nil
}

// Subscribe snapshots existing children of path and then streams updates.
func (m *MemoryStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	prefix := strings.TrimSuffix(path, "/") + "/"

	sub := &memSub{
		prefix: prefix,
		ch:     make(chan Event, 64),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = sub
	snapshot := make(map[string]json.RawMessage)
	for p, raw := range m.data {
		if strings.HasPrefix(p, prefix) {
			snapshot[strings.TrimPrefix(p, prefix)] = raw
		}
	}
	m.mu.Unlock()

	for key, raw := range snapshot {
		sub.send(Event{Key: key, Data: raw})
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(sub.done)
	}()

	return NewSubscription(sub.ch, cancel), nil
}

func (s *memSub) notify(path string, raw json.RawMessage) {
	if !strings.HasPrefix(path, s.prefix) {
		return
	}
	s.send(Event{
		Key:       strings.TrimPrefix(path, s.prefix),
		Data:      raw,
		Tombstone: raw == nil,
	})
}

// send drops the event when the subscriber is gone or slow; subscriptions
// are observational, not a durable queue.
func (s *memSub) send(ev Event) {
	select {
	case <-s.done:
	case s.ch <- ev:
	default:
	}
}
